package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sluice/internal/ir"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	routeErr := ir.Annotate(ir.NewRoutingError(ir.ReasonValueOutOfRange, "value 5000 outside ranges"), "t_user", "user_id", "BOUNDARY_RANGE")
	err := formatter.Error(routeErr)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, routeErr)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRouting, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "VALUE_OUT_OF_RANGE")

	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ROUTING", details["kind"])
	assert.Equal(t, "t_user", details["table"])
	assert.Equal(t, "user_id", details["column"])
	assert.NotContains(t, details, "property")
}

func TestOutputFormatter_ErrorKeepsExitCode(t *testing.T) {
	formatter := &OutputFormatter{Format: "json", Writer: io.Discard}

	err := formatter.Error(NewExitError(ExitCommandError, "bad input"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("all scenarios passed")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "all scenarios passed")
}

func TestOutputFormatter_TextRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(RouteResult{Table: "t_order", Units: []string{"ds_0.t_order_0", "ds_1.t_order_0"}}))
	assert.Equal(t, "ds_0.t_order_0\nds_1.t_order_0\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error(ir.NewConfigError("aes-key-value", "missing key"))
	require.Error(t, err)
	assert.Contains(t, buf.String(), "Error [E003]")
	assert.Contains(t, buf.String(), "missing key")
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config", ir.NewConfigError("sharding-count", "must be positive"), ErrCodeConfiguration},
		{"routing", ir.NewRoutingError(ir.ReasonNoTarget, "no target"), ErrCodeRouting},
		{"encryption", ir.NewEncryptionError(errors.New("bad padding"), "decrypt failed"), ErrCodeEncryption},
		{"replication", ir.NewReplicationError(errors.New("refused"), "acquire"), ErrCodeReplication},
		{"command", NewExitError(ExitCommandError, "bad flag"), ErrCodeInvalidInput},
		{"generic", errors.New("boom"), ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "wrap", errors.New("inner"))))
}

func TestExitError(t *testing.T) {
	inner := errors.New("inner")
	err := WrapExitError(ExitFailure, "outer", inner)
	assert.Equal(t, "outer: inner", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "plain", NewExitError(ExitFailure, "plain").Error())
}

func TestReported(t *testing.T) {
	formatter := &OutputFormatter{Format: "text", Writer: io.Discard}

	assert.False(t, Reported(errors.New("boom")))
	assert.False(t, Reported(NewExitError(ExitCommandError, "bad flag")))
	assert.True(t, Reported(formatter.Error(errors.New("boom"))))
	assert.True(t, Reported(formatter.Error(NewExitError(ExitCommandError, "bad flag"))))
}
