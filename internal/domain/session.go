package domain

import (
	"context"
	"fmt"
	"sort"
)

type sessionState int

const (
	sessionOpen sessionState = iota
	sessionCommitting
	sessionClosed
)

// Session is a bounded unit of work. All entities resolved or created
// through it share one tracking context; Commit flushes every tracked
// entity atomically and Abort discards all intermediate writes. A session
// owns exactly one store transaction, acquired at Begin and released on
// both outcomes.
type Session struct {
	tx    Tx
	state sessionState

	// identity map: at most one tracked instance per persisted identity.
	cities   map[string]*City
	citizens map[string]*Citizen

	// tracked relationship graph. Only the synchronizer (relation.go) and
	// loadCity wire these; both sides always move together.
	children map[*City]map[*Citizen]struct{}
	parents  map[*Citizen]*City

	// registration order keeps flushes deterministic.
	cityOrder    []*City
	citizenOrder []*Citizen

	removedCities   []*City
	removedCitizens []*Citizen
}

// Begin opens a session backed by its own store transaction.
func Begin(ctx context.Context, store Store) (*Session, error) {
	tx, err := store.Begin(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "begin", Err: err}
	}
	return &Session{
		tx:       tx,
		cities:   make(map[string]*City),
		citizens: make(map[string]*Citizen),
		children: make(map[*City]map[*Citizen]struct{}),
		parents:  make(map[*Citizen]*City),
	}, nil
}

func (s *Session) ensureOpen() error {
	if s.state != sessionOpen {
		return ErrClosed
	}
	return nil
}

func (s *Session) registerCity(c *City) {
	c.state = StateTracked
	s.cities[c.key()] = c
	s.cityOrder = append(s.cityOrder, c)
	if s.children[c] == nil {
		s.children[c] = make(map[*Citizen]struct{})
	}
}

func (s *Session) registerCitizen(z *Citizen) {
	z.state = StateTracked
	s.citizens[z.key()] = z
	s.citizenOrder = append(s.citizenOrder, z)
}

func (s *Session) link(c *City, z *Citizen) {
	s.children[c][z] = struct{}{}
	s.parents[z] = c
	z.CityID = c.ID // zero until the city is first flushed
}

func (s *Session) unlink(c *City, z *Citizen) {
	delete(s.children[c], z)
	delete(s.parents, z)
	z.CityID = 0
}

// GetCity returns the tracked instance for the identity, loading and
// registering it together with its citizens when first seen. It returns
// (nil, nil) when the identity is absent from the store.
func (s *Session) GetCity(ctx context.Context, id int64) (*City, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, nil
	}
	if c, ok := s.cities[identityKey(KindCity, id, "")]; ok {
		return c, nil
	}
	return s.loadCity(ctx, id)
}

// GetCitizen returns the tracked instance for the identity, loading it
// (and, eagerly, its city) when first seen. It returns (nil, nil) when the
// identity is absent from the store.
func (s *Session) GetCitizen(ctx context.Context, id int64) (*Citizen, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, nil
	}
	if z, ok := s.citizens[identityKey(KindCitizen, id, "")]; ok {
		return z, nil
	}
	return s.loadCitizen(ctx, id)
}

func (s *Session) loadCity(ctx context.Context, id int64) (*City, error) {
	c, err := s.tx.FindCity(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "find city", Err: err}
	}
	if c == nil {
		return nil, nil
	}
	s.registerCity(c)
	rows, err := s.tx.CitizensOf(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "list citizens of city", Err: err}
	}
	for _, row := range rows {
		z, ok := s.citizens[row.key()]
		if !ok {
			z = row
			s.registerCitizen(z)
		}
		// The tracking context is authoritative over the stored link: a
		// citizen already claimed by a city, or already relationship-edited
		// in this session, keeps its in-session truth.
		if s.parents[z] == nil && z.state != StateRemoved {
			s.link(c, z)
		}
	}
	return c, nil
}

func (s *Session) loadCitizen(ctx context.Context, id int64) (*Citizen, error) {
	z, err := s.tx.FindCitizen(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "find citizen", Err: err}
	}
	if z == nil {
		return nil, nil
	}
	s.registerCitizen(z)
	if z.CityID != 0 {
		// Relationships load eagerly: pulling in the city wires this
		// citizen into its tracked collection.
		if _, err := s.GetCity(ctx, z.CityID); err != nil {
			return nil, err
		}
	}
	return z, nil
}

// ParentOf returns the city currently claiming the citizen within this
// session, or nil.
func (s *Session) ParentOf(z *Citizen) *City { return s.parents[z] }

// CitizensIn returns the city's tracked collection as a sorted snapshot.
func (s *Session) CitizensIn(c *City) []*Citizen {
	set := s.children[c]
	out := make([]*Citizen, 0, len(set))
	for z := range set {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.ID != 0 && b.ID != 0:
			return a.ID < b.ID
		case a.ID != b.ID:
			return a.ID != 0
		default:
			return a.handle < b.handle
		}
	})
	return out
}

// RemoveCity marks the city for deletion at commit. Citizens still
// attached at this moment are removed with it; citizens detached earlier
// are unaffected (the orphan rule).
func (s *Session) RemoveCity(c *City) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if c == nil || s.cities[c.key()] != c {
		return fmt.Errorf("%w: city", ErrNotTracked)
	}
	if c.state == StateRemoved {
		return nil
	}
	for _, z := range s.CitizensIn(c) {
		s.unlink(c, z)
		z.state = StateRemoved
		s.removedCitizens = append(s.removedCitizens, z)
	}
	delete(s.children, c)
	c.state = StateRemoved
	s.removedCities = append(s.removedCities, c)
	return nil
}

// RemoveCitizen marks the citizen for deletion at commit, detaching it
// from its city first so the collection stays consistent.
func (s *Session) RemoveCitizen(z *Citizen) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if z == nil || s.citizens[z.key()] != z {
		return fmt.Errorf("%w: citizen", ErrNotTracked)
	}
	if z.state == StateRemoved {
		return nil
	}
	if p := s.parents[z]; p != nil {
		s.unlink(p, z)
	}
	z.state = StateRemoved
	s.removedCitizens = append(s.removedCitizens, z)
	return nil
}

// Commit flushes every tracked entity and applies the queued deletions in
// one atomic store transaction. On any failure the transaction rolls back,
// identities assigned during the failed flush are revoked in memory, and a
// PersistenceError surfaces with no partial effects surviving. Either way
// the session closes and every tracked instance detaches.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	s.state = sessionCommitting

	var assignedCities []*City
	var assignedCitizens []*Citizen
	revoke := func() {
		for _, c := range assignedCities {
			c.ID = 0
		}
		for _, z := range assignedCitizens {
			z.ID = 0
		}
	}

	if err := s.flush(ctx, &assignedCities, &assignedCitizens); err != nil {
		_ = s.tx.Rollback()
		revoke()
		s.finish(false)
		return err
	}
	if err := s.tx.Commit(); err != nil {
		revoke()
		s.finish(false)
		return &PersistenceError{Op: "commit", Err: err}
	}
	s.finish(true)
	return nil
}

// Abort discards the session without flushing. It is a no-op once the
// session has closed, so it is safe to defer alongside Commit.
func (s *Session) Abort() error {
	if s.state == sessionClosed {
		return nil
	}
	err := s.tx.Rollback()
	s.finish(false)
	if err != nil {
		return &PersistenceError{Op: "rollback", Err: err}
	}
	return nil
}

// flush writes the whole tracking context: every tracked entity is assumed
// dirty. Cities go first so citizen rows can carry their foreign keys;
// deletions run last, citizens before cities.
func (s *Session) flush(ctx context.Context, assignedCities *[]*City, assignedCitizens *[]*Citizen) error {
	for _, c := range s.cityOrder {
		if c.state == StateRemoved {
			continue
		}
		if !c.Persisted() {
			id, err := s.tx.InsertCity(ctx, c)
			if err != nil {
				return &PersistenceError{Op: "insert city", Err: err}
			}
			c.ID = id
			*assignedCities = append(*assignedCities, c)
		} else if err := s.tx.UpdateCity(ctx, c); err != nil {
			return &PersistenceError{Op: "update city", Err: err}
		}
	}
	for _, z := range s.citizenOrder {
		if z.state == StateRemoved {
			continue
		}
		if p := s.parents[z]; p != nil {
			z.CityID = p.ID
		} else {
			z.CityID = 0
		}
		if !z.Persisted() {
			id, err := s.tx.InsertCitizen(ctx, z)
			if err != nil {
				return &PersistenceError{Op: "insert citizen", Err: err}
			}
			z.ID = id
			*assignedCitizens = append(*assignedCitizens, z)
		} else if err := s.tx.UpdateCitizen(ctx, z); err != nil {
			return &PersistenceError{Op: "update citizen", Err: err}
		}
	}
	for _, z := range s.removedCitizens {
		if !z.Persisted() {
			continue
		}
		if err := s.tx.DeleteCitizen(ctx, z.ID); err != nil {
			return &PersistenceError{Op: "delete citizen", Err: err}
		}
	}
	for _, c := range s.removedCities {
		if !c.Persisted() {
			continue
		}
		if err := s.tx.DeleteCity(ctx, c.ID); err != nil {
			return &PersistenceError{Op: "delete city", Err: err}
		}
	}
	return nil
}

// finish discards the tracking context. Every tracked instance detaches
// (or reverts to unbound if it never gained an identity); removal sticks
// only when the commit succeeded.
func (s *Session) finish(committed bool) {
	for _, c := range s.cityOrder {
		switch {
		case c.state == StateRemoved && committed:
			// stays removed
		case c.Persisted():
			c.state = StateDetached
		default:
			c.state = StateUnbound
		}
	}
	for _, z := range s.citizenOrder {
		switch {
		case z.state == StateRemoved && committed:
			// stays removed
		case z.Persisted():
			z.state = StateDetached
		default:
			z.state = StateUnbound
		}
	}
	s.cities, s.citizens = nil, nil
	s.children, s.parents = nil, nil
	s.cityOrder, s.citizenOrder = nil, nil
	s.removedCities, s.removedCitizens = nil, nil
	s.state = sessionClosed
}
