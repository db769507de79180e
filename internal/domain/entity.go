package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies one of the two entity kinds.
type Kind string

const (
	KindCity    Kind = "city"
	KindCitizen Kind = "citizen"
)

// State is the lifecycle position of an entity relative to a session.
type State int

const (
	// StateUnbound marks an entity constructed but never submitted to a
	// session; it has no identity yet.
	StateUnbound State = iota
	// StateTracked marks an entity registered with an open session.
	StateTracked
	// StateDetached marks an entity whose tracking session has closed; it
	// keeps its identity and last-known values.
	StateDetached
	// StateRemoved marks an entity deleted by a committed session. It must
	// not be mutated further.
	StateRemoved
)

// String returns a readable name for the state.
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateTracked:
		return "tracked"
	case StateDetached:
		return "detached"
	case StateRemoved:
		return "removed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// meta carries the per-entity bookkeeping shared by both kinds: a stable
// handle assigned at construction (identity for set membership before the
// store assigns a surrogate key) and the lifecycle state.
type meta struct {
	handle string
	state  State
}

func newMeta(state State) meta {
	return meta{handle: uuid.NewString(), state: state}
}

// State reports the entity's current lifecycle state.
func (m *meta) State() State { return m.state }

// identityKey builds the tracking-context key for an entity: the surrogate
// key when assigned, the construction handle otherwise.
func identityKey(kind Kind, id int64, handle string) string {
	if id != 0 {
		return fmt.Sprintf("%s:%d", kind, id)
	}
	return string(kind) + ":" + handle
}

// orderFields whitelists the scalar attributes each kind can be ordered by.
var orderFields = map[Kind]map[string]struct{}{
	KindCity: {
		"id":         {},
		"name":       {},
		"country":    {},
		"population": {},
	},
	KindCitizen: {
		"id":         {},
		"first_name": {},
		"last_name":  {},
		"age":        {},
	},
}

// ValidateOrderField rejects order-by attributes that do not exist on the
// kind. An empty field means unordered and is always valid. Validation
// happens before any store access.
func ValidateOrderField(kind Kind, field string) error {
	if field == "" {
		return nil
	}
	fields, ok := orderFields[kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidField, kind)
	}
	if _, ok := fields[field]; !ok {
		return fmt.Errorf("%w: %q is not a sortable attribute of %s", ErrInvalidField, field, kind)
	}
	return nil
}
