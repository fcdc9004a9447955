package roster

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups that match no record. It is a normal
// result, not a failure of the store.
var ErrNotFound = errors.New("student not found")

// ValidationError reports user input rejected before it reaches a Store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IOError reports a failure of the underlying storage medium during save or load.
type IOError struct {
	Op   string // "save" or "load"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// DecodeError reports a load source whose content is not a record sequence.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsIO reports whether err is, or wraps, an *IOError.
func IsIO(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsDecode reports whether err is, or wraps, a *DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
