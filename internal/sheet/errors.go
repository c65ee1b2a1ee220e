package sheet

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRange      = errors.New("index out of range")
	ErrInvalidColumn   = errors.New("invalid column")
	ErrNoRows          = errors.New("no rows to delete")
	ErrOverlap         = errors.New("merge region overlaps an existing region")
	ErrInvalidRegion   = errors.New("invalid merge region")
	ErrDuplicateHeader = errors.New("duplicate header label")
	ErrNotMerged       = errors.New("no merge region at coordinate")
)

// EditError is returned by a failed command. The sheet is left as it was
// before the command was invoked.
type EditError struct {
	Op    string
	Index int
	Err   error
}

func (e *EditError) Error() string {
	return fmt.Sprintf("%s at %d: %v", e.Op, e.Index, e.Err)
}

func (e *EditError) Unwrap() error { return e.Err }

func editErr(op string, index int, err error) error {
	return &EditError{Op: op, Index: index, Err: err}
}
