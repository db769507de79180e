package domain

import (
	"context"
	"fmt"
)

// Attach adds the citizen to the city's collection and points the citizen
// back at it. If another city currently claims the citizen, that link is
// severed first: moving between cities is implicit, never an error.
// Attaching an already attached citizen to the same city is a no-op.
func (s *Session) Attach(c *City, z *Citizen) error {
	if err := s.relationArgs(c, z); err != nil {
		return err
	}
	if cur := s.parents[z]; cur == c {
		return nil
	} else if cur != nil {
		s.unlink(cur, z)
	}
	s.link(c, z)
	return nil
}

// Detach removes the citizen from the city's collection and clears its
// back-reference. Detachment alone never deletes the citizen; it is a
// no-op when the citizen is not in the collection.
func (s *Session) Detach(c *City, z *Citizen) error {
	if err := s.relationArgs(c, z); err != nil {
		return err
	}
	if s.parents[z] != c {
		return nil
	}
	s.unlink(c, z)
	return nil
}

// ReplaceAll reconciles the city's collection against the given member
// set. Members are resolved by identity first, since inputs may be
// detached copies or brand-new citizens; then current members missing from
// the set are detached before any attachment happens, so a citizen moving
// between two cities in one call is never claimed by both at once.
func (s *Session) ReplaceAll(ctx context.Context, c *City, members []*Citizen) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if c == nil || s.cities[c.key()] != c {
		return fmt.Errorf("%w: city", ErrNotTracked)
	}

	resolved := make([]*Citizen, 0, len(members))
	keep := make(map[*Citizen]struct{}, len(members))
	for _, m := range members {
		z, err := s.ResolveCitizen(ctx, m)
		if err != nil {
			return err
		}
		if _, dup := keep[z]; dup {
			continue
		}
		keep[z] = struct{}{}
		resolved = append(resolved, z)
	}

	for _, cur := range s.CitizensIn(c) {
		if _, ok := keep[cur]; !ok {
			if err := s.Detach(c, cur); err != nil {
				return err
			}
		}
	}
	for _, z := range resolved {
		if err := s.Attach(c, z); err != nil {
			return err
		}
	}
	return nil
}

// relationArgs guards a synchronizer call: both entities must be tracked
// by this session (resolve first) and not marked for removal.
func (s *Session) relationArgs(c *City, z *Citizen) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if c == nil || s.cities[c.key()] != c {
		return fmt.Errorf("%w: city", ErrNotTracked)
	}
	if z == nil || s.citizens[z.key()] != z {
		return fmt.Errorf("%w: citizen", ErrNotTracked)
	}
	if c.state == StateRemoved || z.state == StateRemoved {
		return ErrRemoved
	}
	return nil
}
