package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/sluice/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (routing error, scenarios failed, slot error)
	ExitCommandError = 2 // Command error (bad flags, missing rule file, unreadable store)
)

// ExitError carries the exit code a command failure should produce.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	reported bool // already written to the command's output
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// Reported reports whether err was already written to the command's output.
func Reported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.reported
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Error codes reported in JSON output.
const (
	ErrCodeGeneric       = "E001"
	ErrCodeInvalidInput  = "E002"
	ErrCodeConfiguration = "E003"
	ErrCodeRouting       = "E004"
	ErrCodeEncryption    = "E005"
	ErrCodeReplication   = "E006"
	ErrCodeTestFailed    = "E_TEST_FAILED"
)

// ErrorCode maps err onto an error code by its kind.
func ErrorCode(err error) string {
	switch ir.KindOf(err) {
	case ir.KindAlgorithmConfiguration, ir.KindUnknownAlgorithmType:
		return ErrCodeConfiguration
	case ir.KindRouting:
		return ErrCodeRouting
	case ir.KindEncryption:
		return ErrCodeEncryption
	case ir.KindUnsupportedSourceVersion, ir.KindReplicationResource:
		return ErrCodeReplication
	}
	if GetExitCode(err) == ExitCommandError {
		return ErrCodeInvalidInput
	}
	return ErrCodeGeneric
}

// textRenderer is implemented by results with a human-readable form.
type textRenderer interface {
	renderText(w io.Writer)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return encodeJSON(f.Writer, CLIResponse{Status: "ok", Data: data})
	}
	if r, ok := data.(textRenderer); ok {
		r.renderText(f.Writer)
		return nil
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error reports err in the configured format and returns it wrapped with
// exit code ExitFailure unless it already carries one.
func (f *OutputFormatter) Error(err error) error {
	code := ErrorCode(err)
	if f.Format == "json" {
		var details any
		var e *ir.Error
		if errors.As(err, &e) {
			details = errorDetails(e)
		}
		if encErr := encodeJSON(f.Writer, CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error(), Details: details},
		}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %v\n", code, err)
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		exitErr = WrapExitError(ExitFailure, "command failed", err)
		err = exitErr
	}
	exitErr.reported = true
	return err
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errorDetails(e *ir.Error) map[string]string {
	d := make(map[string]string)
	for k, v := range map[string]string{
		"kind":       string(e.Kind),
		"reason":     e.Reason,
		"capability": e.Capability,
		"algorithm":  e.Algorithm,
		"property":   e.Property,
		"table":      e.Table,
		"column":     e.Column,
	} {
		if v != "" {
			d[k] = v
		}
	}
	return d
}
