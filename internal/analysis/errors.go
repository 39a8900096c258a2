// Package analysis scores recorded practice attempts against a reference score.
package analysis

import (
	"errors"
	"fmt"
)

// Precondition classes. Test with errors.Is.
var (
	ErrNoMarkerPresses   = errors.New("session has no marker presses")
	ErrAttemptOutOfRange = errors.New("attempt index out of range")
	ErrInvalidConfig     = errors.New("invalid analysis config")
)

// PreconditionError rejects a whole call. Index is the attempt that failed, or -1.
type PreconditionError struct {
	Index int
	Err   error
}

func (e *PreconditionError) Error() string {
	if e.Index < 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("attempt %d: %v", e.Index, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// IsPrecondition reports whether err is a caller error rather than a data or I/O failure.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
