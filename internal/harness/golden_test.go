package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sluice/internal/ir"
)

func TestRunWithGolden_OrderRouting(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/order-routing.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_UserEncryption(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/user-encryption.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshotIsCanonical(t *testing.T) {
	result := &Result{Trace: []TraceEvent{
		{Seq: 1, Op: OpRead, Table: "t_user", Columns: []string{"a"}, Values: []ir.IRValue{nil}},
		{Seq: 2, Op: OpRoute, Table: "t_log", Error: "MISSING_HINT", Message: "ROUTING/MISSING_HINT: no hint"},
	}}

	data, err := Snapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"snap","trace":[{"columns":["a"],"op":"read","seq":1,"table":"t_user","values":[null]},{"error":"MISSING_HINT","op":"route","seq":2,"table":"t_log"}]}`,
		string(data))

	again, err := Snapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}
