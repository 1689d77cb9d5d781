package repositories

import "fmt"

// ErrorKind classifies a persistence failure.
type ErrorKind string

const (
	ErrorKindUnknown     ErrorKind = "unknown"
	ErrorKindNotFound    ErrorKind = "not_found"
	ErrorKindConflict    ErrorKind = "conflict"
	ErrorKindUnavailable ErrorKind = "unavailable"
)

// Error is the RepositoryError used by backends that have no native error type.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

var _ RepositoryError = (*Error)(nil)

// NewError builds a classified repository error for op.
func NewError(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// NotFound is shorthand for a not-found failure of op on the given key.
func NotFound(op string, key any) *Error {
	return &Error{Op: op, Kind: ErrorKindNotFound, Err: fmt.Errorf("%v not found", key)}
}

// Conflict is shorthand for a uniqueness failure of op on the given key.
func Conflict(op string, key any) *Error {
	return &Error{Op: op, Kind: ErrorKindConflict, Err: fmt.Errorf("%v already exists", key)}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) IsNotFound() bool    { return e != nil && e.Kind == ErrorKindNotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.Kind == ErrorKindConflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.Kind == ErrorKindUnavailable }
