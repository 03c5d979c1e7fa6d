package itemledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no entry carries the requested record id.
	ErrNotFound = errors.New("item not found")

	// ErrDuplicateID is returned by Append when unique ids are enforced and
	// a live entry already carries the record id.
	ErrDuplicateID = errors.New("item id already exists")

	// ErrCorruptChain is wrapped by every ChainError.
	ErrCorruptChain = errors.New("ledger chain is corrupt")

	// ErrPersistence wraps failures of the backing store. The in-memory
	// sequence has been rolled back when it is returned.
	ErrPersistence = errors.New("ledger persistence failed")

	// ErrEmpty is returned by Latest on a ledger without entries.
	ErrEmpty = errors.New("ledger is empty")
)

// ChainError describes the first inconsistency found by Verify.
type ChainError struct {
	Index  int
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("entry %d: %s", e.Index, e.Reason)
}

// Unwrap lets errors.Is(err, ErrCorruptChain) match.
func (e *ChainError) Unwrap() error { return ErrCorruptChain }
