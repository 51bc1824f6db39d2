package algo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sluice/internal/ir"
)

func TestCacheSharesIdenticalDescriptors(t *testing.T) {
	c, err := NewCache(testRegistry(), 8)
	require.NoError(t, err)

	a, err := c.Get(testCapability, NewDescriptor("COUNTER", NewProps("count", "2")))
	require.NoError(t, err)
	b, err := c.Get(testCapability, NewDescriptor("counter", PropsFromMap(map[string]string{"count": "2"})))
	require.NoError(t, err)
	assert.Same(t, a, b)

	d, err := c.Get(testCapability, NewDescriptor("COUNTER", NewProps("count", "3")))
	require.NoError(t, err)
	assert.NotSame(t, a, d)
	assert.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	c, err := NewCache(testRegistry(), 0)
	require.NoError(t, err)

	_, err = c.Get(testCapability, NewDescriptor("COUNTER", NewProps("count", "0")))
	assert.ErrorIs(t, err, ir.ErrAlgorithmConfiguration)
	assert.Equal(t, 0, c.Len())
}
