package ardent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/ardent/dialect/sql"
)

// Kind classifies the failures reported by models.
type Kind uint8

// Failure kinds.
const (
	// KindConfiguration reports a table, column or primary key that could not
	// be resolved, or a model used in a way its configuration does not allow.
	KindConfiguration Kind = iota + 1
	// KindEmptyPayload reports a write whose payload is empty after sanitization.
	KindEmptyPayload
	// KindAdapterFailure reports an error returned by the query builder or the driver.
	KindAdapterFailure
	// KindUndefinedOperation reports a dynamic call to an operation that
	// neither the model nor the query builder defines.
	KindUndefinedOperation
)

// String returns the description of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindEmptyPayload:
		return "empty payload"
	case KindAdapterFailure:
		return "adapter failure"
	case KindUndefinedOperation:
		return "undefined operation"
	default:
		return "unknown error"
	}
}

// Sentinel errors matched by errors.Is against an *Error of the same kind.
var (
	// ErrConfiguration is matched by errors of KindConfiguration.
	ErrConfiguration = errors.New("ardent: configuration error")

	// ErrEmptyPayload is matched by errors of KindEmptyPayload.
	ErrEmptyPayload = errors.New("ardent: empty payload")

	// ErrAdapterFailure is matched by errors of KindAdapterFailure.
	ErrAdapterFailure = errors.New("ardent: adapter failure")

	// ErrUndefinedOperation is matched by errors of KindUndefinedOperation.
	ErrUndefinedOperation = errors.New("ardent: undefined operation")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindEmptyPayload:
		return ErrEmptyPayload
	case KindAdapterFailure:
		return ErrAdapterFailure
	case KindUndefinedOperation:
		return ErrUndefinedOperation
	}
	return nil
}

// Error is the error type returned by model operations.
type Error struct {
	Kind  Kind   // Failure kind
	Op    string // Operation (e.g. "create", "batch_save", "columns")
	Table string // Table the operation was bound to, if resolved
	Err   error  // Underlying error, if any
}

// Error returns the error string.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("ardent: ")
	if e.Table != "" {
		sb.WriteString(e.Table)
		sb.WriteString(": ")
	}
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel error of the same kind.
// This allows errors.Is(err, ErrEmptyPayload) to return true.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
	}
	return target != nil && target == e.Kind.sentinel()
}

// NewConfigurationError returns a new configuration error for the operation.
func NewConfigurationError(op, table string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Table: table, Err: err}
}

// NewEmptyPayloadError returns a new empty payload error for the operation.
func NewEmptyPayloadError(op, table string) *Error {
	return &Error{Kind: KindEmptyPayload, Op: op, Table: table}
}

// NewAdapterError returns a new adapter failure wrapping err.
func NewAdapterError(op, table string, err error) *Error {
	return &Error{Kind: KindAdapterFailure, Op: op, Table: table, Err: err}
}

// NewUndefinedOperationError returns a new error naming the undefined operation.
func NewUndefinedOperationError(name, table string) *Error {
	return &Error{Kind: KindUndefinedOperation, Op: name, Table: table}
}

// Errorf returns an error of the given kind with a formatted cause.
func Errorf(kind Kind, op, table, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Table: table, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsConfiguration returns true if the error is a configuration error.
func IsConfiguration(err error) bool {
	return err != nil && errors.Is(err, ErrConfiguration)
}

// IsEmptyPayload returns true if the error reports an empty sanitized payload.
func IsEmptyPayload(err error) bool {
	return err != nil && errors.Is(err, ErrEmptyPayload)
}

// IsAdapterFailure returns true if the error was reported by the query builder or driver.
func IsAdapterFailure(err error) bool {
	return err != nil && errors.Is(err, ErrAdapterFailure)
}

// IsUndefinedOperation returns true if the error reports an undefined dynamic operation.
func IsUndefinedOperation(err error) bool {
	return err != nil && errors.Is(err, ErrUndefinedOperation)
}

// IsConstraintError returns true if the error resulted from a database
// constraint violation reported by the MySQL, PostgreSQL or SQLite driver.
func IsConstraintError(err error) bool {
	return sql.IsConstraintError(err)
}

// IsUniqueConstraintError returns true if the error resulted from a
// uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return sql.IsUniqueConstraintError(err)
}
