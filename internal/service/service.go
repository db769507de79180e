package service

import (
	"context"
	"fmt"
	"log/slog"

	"civica/internal/domain"
)

// Manager provides the CRUD operations of the application over sessions.
type Manager struct {
	store domain.Store
	log   *slog.Logger
}

// NewManager creates a new manager over the given store.
func NewManager(store domain.Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, log: log}
}

// CreateCity persists a new city and returns its detached snapshot.
func (m *Manager) CreateCity(ctx context.Context, name, country string, population int) (*domain.City, error) {
	sess, err := domain.Begin(ctx, m.store)
	if err != nil {
		return nil, err
	}
	defer sess.Abort()

	city, err := sess.ResolveCity(ctx, domain.NewCity(name, country, population))
	if err != nil {
		return nil, err
	}
	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}

	m.log.Info("city created", "id", city.ID, "name", city.Name)
	return city, nil
}

// CreateCitizen persists a new, unattached citizen and returns its
// detached snapshot. Attachment happens through UpdateCity.
func (m *Manager) CreateCitizen(ctx context.Context, first, last string, age int) (*domain.Citizen, error) {
	sess, err := domain.Begin(ctx, m.store)
	if err != nil {
		return nil, err
	}
	defer sess.Abort()

	citizen, err := sess.ResolveCitizen(ctx, domain.NewCitizen(first, last, age))
	if err != nil {
		return nil, err
	}
	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}

	m.log.Info("citizen created", "id", citizen.ID, "first_name", citizen.FirstName, "last_name", citizen.LastName)
	return citizen, nil
}

// UpdateCitizen rewrites a citizen's scalar attributes. Updating an
// absent identity is an error.
func (m *Manager) UpdateCitizen(ctx context.Context, id int64, first, last string, age int) (*domain.Citizen, error) {
	sess, err := domain.Begin(ctx, m.store)
	if err != nil {
		return nil, err
	}
	defer sess.Abort()

	citizen, err := sess.GetCitizen(ctx, id)
	if err != nil {
		return nil, err
	}
	if citizen == nil {
		return nil, fmt.Errorf("citizen %d: %w", id, domain.ErrNotFound)
	}
	citizen.FirstName = first
	citizen.LastName = last
	citizen.Age = age

	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}

	m.log.Info("citizen updated", "id", id)
	return citizen, nil
}

// UpdateCity rewrites a city's scalar attributes and reconciles its
// collection against the given citizen identity set. Citizens named in
// the set but absent everywhere are stale references; citizens currently
// attached but missing from the set are detached, not deleted.
func (m *Manager) UpdateCity(ctx context.Context, id int64, name, country string, population int, citizenIDs []int64) (*domain.City, error) {
	sess, err := domain.Begin(ctx, m.store)
	if err != nil {
		return nil, err
	}
	defer sess.Abort()

	city, err := sess.GetCity(ctx, id)
	if err != nil {
		return nil, err
	}
	if city == nil {
		return nil, fmt.Errorf("city %d: %w", id, domain.ErrNotFound)
	}
	city.Name = name
	city.Country = country
	city.Population = population

	members := make([]*domain.Citizen, 0, len(citizenIDs))
	for _, cid := range citizenIDs {
		citizen, err := sess.GetCitizen(ctx, cid)
		if err != nil {
			return nil, err
		}
		if citizen == nil {
			return nil, fmt.Errorf("citizen %d: %w", cid, domain.ErrStaleReference)
		}
		members = append(members, citizen)
	}
	if err := sess.ReplaceAll(ctx, city, members); err != nil {
		return nil, err
	}
	city.Citizens = sess.CitizensIn(city)

	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}

	m.log.Info("city updated", "id", id, "citizens", len(citizenIDs))
	return city, nil
}

// Delete removes the entity of the given kind. Deleting an absent
// identity is a no-op. Deleting a city removes its currently attached
// citizens with it; previously detached citizens are untouched.
func (m *Manager) Delete(ctx context.Context, kind domain.Kind, id int64) error {
	sess, err := domain.Begin(ctx, m.store)
	if err != nil {
		return err
	}
	defer sess.Abort()

	switch kind {
	case domain.KindCity:
		city, err := sess.GetCity(ctx, id)
		if err != nil {
			return err
		}
		if city == nil {
			return sess.Abort()
		}
		if err := sess.RemoveCity(city); err != nil {
			return err
		}
	case domain.KindCitizen:
		citizen, err := sess.GetCitizen(ctx, id)
		if err != nil {
			return err
		}
		if citizen == nil {
			return sess.Abort()
		}
		if err := sess.RemoveCitizen(citizen); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidField, kind)
	}

	if err := sess.Commit(ctx); err != nil {
		return err
	}

	m.log.Info("entity deleted", "kind", string(kind), "id", id)
	return nil
}

// ListCities returns detached snapshots of every city, collections
// populated. The order field is validated before the store is touched.
func (m *Manager) ListCities(ctx context.Context, orderBy string) ([]*domain.City, error) {
	if err := domain.ValidateOrderField(domain.KindCity, orderBy); err != nil {
		return nil, err
	}

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cities, err := tx.ListCities(ctx, orderBy)
	if err != nil {
		return nil, err
	}
	citizens, err := tx.ListCitizens(ctx, "id")
	if err != nil {
		return nil, err
	}

	byCity := make(map[int64][]*domain.Citizen)
	for _, z := range citizens {
		if z.CityID != 0 {
			byCity[z.CityID] = append(byCity[z.CityID], z)
		}
	}
	for _, c := range cities {
		c.Citizens = byCity[c.ID]
	}
	return cities, nil
}

// ListCitizens returns detached snapshots of every citizen. The order
// field is validated before the store is touched.
func (m *Manager) ListCitizens(ctx context.Context, orderBy string) ([]*domain.Citizen, error) {
	if err := domain.ValidateOrderField(domain.KindCitizen, orderBy); err != nil {
		return nil, err
	}

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	return tx.ListCitizens(ctx, orderBy)
}

// GetCitizen returns one citizen's detached snapshot, or (nil, nil) when
// the identity is absent.
func (m *Manager) GetCitizen(ctx context.Context, id int64) (*domain.Citizen, error) {
	sess, err := domain.Begin(ctx, m.store)
	if err != nil {
		return nil, err
	}
	defer sess.Abort()

	return sess.GetCitizen(ctx, id)
}

// GetCityWithCitizens returns one city with its collection populated, or
// (nil, nil) when the identity is absent.
func (m *Manager) GetCityWithCitizens(ctx context.Context, id int64) (*domain.City, error) {
	sess, err := domain.Begin(ctx, m.store)
	if err != nil {
		return nil, err
	}
	defer sess.Abort()

	city, err := sess.GetCity(ctx, id)
	if err != nil {
		return nil, err
	}
	if city == nil {
		return nil, nil
	}
	city.Citizens = sess.CitizensIn(city)
	return city, nil
}
