package domain

import (
	"context"
	"fmt"
)

// ResolveCity maps a city reference that may be unbound, detached, or
// already tracked to the single tracked instance for that identity.
//
// An unbound reference is registered as a new tracked instance and
// returned unchanged, with no store lookup. A reference whose identity is
// already tracked yields the tracked instance: the caller's copy is not
// consulted further, its attribute values are ignored. Otherwise the store
// is queried by identity; when found, the persisted values become a new
// tracked instance and the caller's scalar edits are applied onto it; when
// absent, the reference is stale.
func (s *Session) ResolveCity(ctx context.Context, ref *City) (*City, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: nil city reference", ErrStaleReference)
	}
	if tracked, ok := s.cities[ref.key()]; ok {
		return tracked, nil
	}
	if !ref.Persisted() {
		s.registerCity(ref)
		return ref, nil
	}
	loaded, err := s.loadCity(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		return nil, fmt.Errorf("%w: city %d", ErrStaleReference, ref.ID)
	}
	loaded.Name = ref.Name
	loaded.Country = ref.Country
	loaded.Population = ref.Population
	return loaded, nil
}

// ResolveCitizen is the citizen counterpart of ResolveCity. Only scalar
// attributes are ever copied from the caller's reference; the
// back-reference moves exclusively through the relationship synchronizer.
func (s *Session) ResolveCitizen(ctx context.Context, ref *Citizen) (*Citizen, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: nil citizen reference", ErrStaleReference)
	}
	if tracked, ok := s.citizens[ref.key()]; ok {
		return tracked, nil
	}
	if !ref.Persisted() {
		s.registerCitizen(ref)
		return ref, nil
	}
	loaded, err := s.loadCitizen(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		return nil, fmt.Errorf("%w: citizen %d", ErrStaleReference, ref.ID)
	}
	loaded.FirstName = ref.FirstName
	loaded.LastName = ref.LastName
	loaded.Age = ref.Age
	return loaded, nil
}
