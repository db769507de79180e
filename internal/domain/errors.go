package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an identity that was required but absent.
	ErrNotFound = errors.New("entity not found")

	// ErrStaleReference reports an entity reference whose identity cannot
	// be resolved anywhere: not in the tracking context and not in the
	// store.
	ErrStaleReference = errors.New("stale entity reference")

	// ErrInvalidField reports an order-by attribute that does not exist on
	// the requested kind.
	ErrInvalidField = errors.New("invalid order field")

	// ErrClosed reports an operation against a session that has already
	// committed or aborted.
	ErrClosed = errors.New("session closed")

	// ErrNotTracked reports a relationship operation on an entity the
	// session is not tracking.
	ErrNotTracked = errors.New("entity not tracked by this session")

	// ErrRemoved reports a mutation of an entity already marked for
	// removal.
	ErrRemoved = errors.New("entity marked for removal")
)

// PersistenceError reports a store failure that aborted a session. The
// session rolls its transaction back before surfacing it, so no partial
// effects remain in the store.
type PersistenceError struct {
	Op  string // the write that failed, e.g. "insert city"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
