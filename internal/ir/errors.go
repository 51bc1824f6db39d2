package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes failures raised by routing, encryption and CDC code.
type ErrorKind string

const (
	// KindAlgorithmConfiguration indicates an algorithm rejected its
	// properties at initialization.
	KindAlgorithmConfiguration ErrorKind = "ALGORITHM_CONFIGURATION"

	// KindUnknownAlgorithmType indicates no provider is registered for the
	// requested capability and type name.
	KindUnknownAlgorithmType ErrorKind = "UNKNOWN_ALGORITHM_TYPE"

	// KindRouting indicates a statement could not be mapped onto targets.
	KindRouting ErrorKind = "ROUTING"

	// KindEncryption indicates a value could not be encrypted or decrypted.
	KindEncryption ErrorKind = "ENCRYPTION"

	// KindUnsupportedSourceVersion indicates the replication source runs a
	// server version with no known position dialect.
	KindUnsupportedSourceVersion ErrorKind = "UNSUPPORTED_SOURCE_VERSION"

	// KindReplicationResource indicates a replication slot could not be
	// created, inspected or dropped.
	KindReplicationResource ErrorKind = "REPLICATION_RESOURCE"
)

// Routing failure reasons.
const (
	ReasonValueOutOfRange      = "VALUE_OUT_OF_RANGE"
	ReasonMissingHint          = "MISSING_HINT"
	ReasonNoTarget             = "NO_TARGET"
	ReasonInvalidShardingValue = "INVALID_SHARDING_VALUE"
	ReasonRangeNotSupported    = "RANGE_NOT_SUPPORTED"
)

// Error is the structured error shared by every sluice component.
// Fields beyond Kind and Message are filled in as the error travels outward:
// an algorithm knows the property, the coordinator adds table and column.
type Error struct {
	Kind       ErrorKind
	Reason     string
	Message    string
	Capability string
	Algorithm  string
	Property   string
	Table      string
	Column     string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		b.WriteString("/")
		b.WriteString(e.Reason)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)

	var ctx []string
	for _, kv := range [][2]string{
		{"capability", e.Capability},
		{"algorithm", e.Algorithm},
		{"property", e.Property},
		{"table", e.Table},
		{"column", e.Column},
	} {
		if kv[1] != "" {
			ctx = append(ctx, kv[0]+"="+kv[1])
		}
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind, and by reason when the sentinel has one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Sentinels for errors.Is.
var (
	ErrAlgorithmConfiguration = &Error{Kind: KindAlgorithmConfiguration}
	ErrUnknownAlgorithmType   = &Error{Kind: KindUnknownAlgorithmType}
	ErrRouting                = &Error{Kind: KindRouting}
	ErrValueOutOfRange        = &Error{Kind: KindRouting, Reason: ReasonValueOutOfRange}
	ErrMissingHint            = &Error{Kind: KindRouting, Reason: ReasonMissingHint}
	ErrNoTarget               = &Error{Kind: KindRouting, Reason: ReasonNoTarget}
	ErrInvalidShardingValue   = &Error{Kind: KindRouting, Reason: ReasonInvalidShardingValue}
	ErrRangeNotSupported      = &Error{Kind: KindRouting, Reason: ReasonRangeNotSupported}
	ErrEncryption             = &Error{Kind: KindEncryption}
	ErrUnsupportedSource      = &Error{Kind: KindUnsupportedSourceVersion}
	ErrReplicationResource    = &Error{Kind: KindReplicationResource}
)

// NewConfigError reports a property an algorithm rejected during Init.
func NewConfigError(property, format string, args ...any) *Error {
	return &Error{
		Kind:     KindAlgorithmConfiguration,
		Property: property,
		Message:  fmt.Sprintf(format, args...),
	}
}

// NewRoutingError reports a routing failure with the given reason.
func NewRoutingError(reason, format string, args ...any) *Error {
	return &Error{
		Kind:    KindRouting,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewEncryptionError reports a cipher failure, wrapping its cause.
func NewEncryptionError(err error, format string, args ...any) *Error {
	return &Error{
		Kind:    KindEncryption,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// NewReplicationError reports a failed replication-slot operation.
func NewReplicationError(err error, format string, args ...any) *Error {
	return &Error{
		Kind:    KindReplicationResource,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRoutingError returns true if err is any routing failure.
func IsRoutingError(err error) bool {
	return KindOf(err) == KindRouting
}

// IsConfigError returns true if err is an algorithm configuration failure.
func IsConfigError(err error) bool {
	return KindOf(err) == KindAlgorithmConfiguration
}

// Annotate fills empty context fields on the first *Error in err's chain.
// The error is copied so errors shared between callers are never mutated.
// Errors of other types are returned unchanged.
func Annotate(err error, table, column, algorithm string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	cp := *e
	if cp.Table == "" {
		cp.Table = table
	}
	if cp.Column == "" {
		cp.Column = column
	}
	if cp.Algorithm == "" {
		cp.Algorithm = algorithm
	}
	return &cp
}
