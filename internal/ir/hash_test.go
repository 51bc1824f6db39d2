package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardingHashDeterminism(t *testing.T) {
	h1, err := ShardingHash(IRInt(1001))
	require.NoError(t, err)
	h2, err := ShardingHash(IRInt(1001))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, err := ShardingHash(IRString("1001"))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3, "int and string keys hash differently")
}

func TestShardingHashNormalizesStrings(t *testing.T) {
	h1, err := ShardingHash(IRString("e\u0301"))
	require.NoError(t, err)
	h2, err := ShardingHash(IRString("\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestDescriptorFingerprint(t *testing.T) {
	f1, err := DescriptorFingerprint("sharding", "hash_mod", map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)
	f2, err := DescriptorFingerprint("sharding", "hash_mod", map[string]string{"b": "2", "a": "1"})
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 64, "SHA-256 hex is 64 characters")

	f3, err := DescriptorFingerprint("encryption", "hash_mod", map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)
	assert.NotEqual(t, f1, f3)
}

func TestPlanHash(t *testing.T) {
	plan := &ExecutionPlan{
		Table: "t_order",
		Units: []RouteUnit{{DataSource: "ds_0", Table: "t_order_0"}},
		Literals: []RewrittenLiteral{
			{Column: "status", Value: nil, Placeholder: 0},
		},
	}
	h1, err := PlanHash(plan)
	require.NoError(t, err)

	plan.Units[0].Table = "t_order_1"
	h2, err := PlanHash(plan)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
