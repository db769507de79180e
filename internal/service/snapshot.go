package service

import (
	"context"
	"fmt"

	"civica/internal/codec"
	"civica/internal/domain"
)

// Export produces a dataset snapshot of every city and citizen, read in
// one transaction.
func (m *Manager) Export(ctx context.Context) (*codec.Dataset, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cities, err := tx.ListCities(ctx, "id")
	if err != nil {
		return nil, err
	}
	citizens, err := tx.ListCitizens(ctx, "id")
	if err != nil {
		return nil, err
	}

	ds := &codec.Dataset{
		Cities:   make([]codec.CityRecord, 0, len(cities)),
		Citizens: make([]codec.CitizenRecord, 0, len(citizens)),
	}
	for _, c := range cities {
		ds.Cities = append(ds.Cities, codec.CityRecord{
			ID:         c.ID,
			Name:       c.Name,
			Country:    c.Country,
			Population: c.Population,
		})
	}
	for _, z := range citizens {
		ds.Citizens = append(ds.Citizens, codec.CitizenRecord{
			ID:        z.ID,
			FirstName: z.FirstName,
			LastName:  z.LastName,
			Age:       z.Age,
			CityID:    z.CityID,
		})
	}
	return ds, nil
}

// Import applies a dataset through one unit of work: records with an ID
// update the stored entity of that identity, records without one insert.
// A record referencing an unknown identity aborts the whole import with
// nothing applied.
func (m *Manager) Import(ctx context.Context, ds *codec.Dataset) error {
	sess, err := domain.Begin(ctx, m.store)
	if err != nil {
		return err
	}
	defer sess.Abort()

	// City IDs in the file resolve to tracked instances so citizen
	// records can attach by reference.
	citiesByFileID := make(map[int64]*domain.City, len(ds.Cities))
	for _, rec := range ds.Cities {
		ref := domain.NewCity(rec.Name, rec.Country, rec.Population)
		if rec.ID != 0 {
			ref = domain.RestoreCity(rec.ID, rec.Name, rec.Country, rec.Population)
		}
		city, err := sess.ResolveCity(ctx, ref)
		if err != nil {
			return fmt.Errorf("import city %q: %w", rec.Name, err)
		}
		if rec.ID != 0 {
			citiesByFileID[rec.ID] = city
		}
	}

	for _, rec := range ds.Citizens {
		ref := domain.NewCitizen(rec.FirstName, rec.LastName, rec.Age)
		if rec.ID != 0 {
			ref = domain.RestoreCitizen(rec.ID, rec.FirstName, rec.LastName, rec.Age, 0)
		}
		citizen, err := sess.ResolveCitizen(ctx, ref)
		if err != nil {
			return fmt.Errorf("import citizen %q %q: %w", rec.FirstName, rec.LastName, err)
		}
		if rec.CityID == 0 {
			if p := sess.ParentOf(citizen); p != nil {
				if err := sess.Detach(p, citizen); err != nil {
					return err
				}
			}
			continue
		}
		city, ok := citiesByFileID[rec.CityID]
		if !ok {
			city, err = sess.GetCity(ctx, rec.CityID)
			if err != nil {
				return err
			}
			if city == nil {
				return fmt.Errorf("import citizen %q %q: city %d: %w", rec.FirstName, rec.LastName, rec.CityID, domain.ErrStaleReference)
			}
		}
		if err := sess.Attach(city, citizen); err != nil {
			return err
		}
	}

	if err := sess.Commit(ctx); err != nil {
		return err
	}

	m.log.Info("dataset imported", "cities", len(ds.Cities), "citizens", len(ds.Citizens))
	return nil
}
