package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sluice/internal/ir"
	"github.com/roach88/sluice/internal/rule"
)

func loadAndRun(t *testing.T, path string) *Result {
	t.Helper()
	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)
	return result
}

func TestRun_OrderRouting(t *testing.T) {
	result := loadAndRun(t, "testdata/scenarios/order-routing.yaml")

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 7)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, []string{"ds_1.t_order_0"}, result.Trace[0].Units)
	assert.Equal(t, ir.ReasonValueOutOfRange, result.Trace[4].Error)
	assert.Nil(t, result.Trace[4].Units)
}

func TestRun_UserEncryption(t *testing.T) {
	result := loadAndRun(t, "testdata/scenarios/user-encryption.yaml")

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 4)
	assert.Equal(t, []ir.IRValue{ir.IRString("alice"), ir.IRString("test")}, result.Trace[1].Values)
	assert.Equal(t, string(ir.KindEncryption), result.Trace[3].Error)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:  "mismatch",
		Rules: "testdata/rules.yaml",
		Steps: []Step{
			{
				Op:     OpRoute,
				Facts:  &ir.StatementFacts{Table: "t_order", ShardingValues: []ir.ShardingValue{{Column: "user_id", Role: ir.RoleEqual, Value: ir.IRInt(1)}}},
				Expect: &Expect{Units: []string{"ds_0.t_order_0"}},
			},
			{
				Op:     OpWrite,
				Facts:  &ir.StatementFacts{Table: "t_user", EncryptedLiterals: []ir.EncryptedLiteral{{Column: "pwd", Value: ir.IRString("test"), Placeholder: -1}}},
				Expect: &Expect{Columns: []string{"pwd"}, Values: []any{"test"}},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "steps[0] (route t_order): expected units [ds_0.t_order_0]")
	assert.Contains(t, result.Errors[1], "expected columns [pwd], got [pwd_cipher]")
	assert.Contains(t, result.Errors[2], `expected values ["test"], got ["dSpPiyENQGDUXMKFMJPGWA=="]`)
}

func TestRun_UnexpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:  "unexpected",
		Rules: "testdata/rules.yaml",
		Steps: []Step{
			{Op: OpRoute, Facts: &ir.StatementFacts{Table: "t_log"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Equal(t, ir.ReasonMissingHint, result.Trace[0].Error)
}

func TestRun_ExpectedErrorByKind(t *testing.T) {
	scenario := &Scenario{
		Name:  "by-kind",
		Rules: "testdata/rules.yaml",
		Steps: []Step{
			{Op: OpRoute, Facts: &ir.StatementFacts{Table: "t_log"}, Expect: &Expect{Error: "routing"}},
			{Op: OpRoute, Facts: &ir.StatementFacts{Table: "t_config"}, Expect: &Expect{Error: "NO_TARGET"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[1] (route t_config): expected error NO_TARGET, got no error")
}

func TestRun_BadRules(t *testing.T) {
	_, err := Run(&Scenario{Name: "x", Rules: "testdata/missing.yaml"})
	assert.ErrorContains(t, err, "failed to build coordinator")
}

func TestRunWith_BadRowValue(t *testing.T) {
	coord, err := rule.BuildFile("testdata/rules.yaml")
	require.NoError(t, err)

	_, err = RunWith(coord, &Scenario{Steps: []Step{{
		Op:   OpRead,
		Read: &ReadStep{Table: "t_user", Columns: []ir.ResultColumn{{Name: "x"}}, Row: []any{1.5}},
	}}})
	assert.ErrorContains(t, err, "floats are not allowed")
}

func TestErrorLabel(t *testing.T) {
	assert.Equal(t, "NO_TARGET", ErrorLabel(ir.NewRoutingError(ir.ReasonNoTarget, "x")))
	assert.Equal(t, "ENCRYPTION", ErrorLabel(ir.NewEncryptionError(nil, "x")))
	assert.Equal(t, "ERROR", ErrorLabel(assert.AnError))
}
