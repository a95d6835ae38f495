package bronze

import (
	"errors"
	"fmt"
)

// ErrSerialization matches every *SerializationError via errors.Is.
var ErrSerialization = errors.New("serialization failure")

// SerializationError reports the position of a record that has no JSON
// representation.
type SerializationError struct {
	Index int
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serializing record %d: %v", e.Index, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }
