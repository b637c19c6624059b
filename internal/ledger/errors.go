package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrSerialization is matched by every *SerializationError.
	ErrSerialization = errors.New("payload is not canonically serializable")

	// ErrIntegrity is matched by every *IntegrityError.
	ErrIntegrity = errors.New("ledger integrity violation")

	// ErrIndexOutOfRange is returned by Get for an index outside the chain.
	ErrIndexOutOfRange = errors.New("block index out of range")
)

// SerializationError reports a payload that has no canonical encoding.
// An Append that fails this way leaves the chain unchanged.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize payload: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }

// IntegrityError describes the first broken invariant found while walking a
// chain.
type IntegrityError struct {
	Index  int
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("block %d: %s", e.Index, e.Reason)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }
