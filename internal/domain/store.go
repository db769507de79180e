package domain

import "context"

// Store is the storage collaborator consumed by sessions. The interface
// lives in the domain package so infrastructure implementations depend on
// the domain, not the other way around.
type Store interface {
	// Begin opens an exclusive transaction. Every session owns exactly one
	// and releases it on both commit and abort paths.
	Begin(ctx context.Context) (Tx, error)

	// Close releases the underlying connection pool.
	Close() error
}

// Tx is a single storage transaction over the two entity tables. Find
// methods return (nil, nil) when the identity is absent. Restored entities
// are detached until a session registers them.
type Tx interface {
	FindCity(ctx context.Context, id int64) (*City, error)
	FindCitizen(ctx context.Context, id int64) (*Citizen, error)

	// CitizensOf returns every citizen whose back-reference points at the
	// given city.
	CitizensOf(ctx context.Context, cityID int64) ([]*Citizen, error)

	InsertCity(ctx context.Context, c *City) (int64, error)
	InsertCitizen(ctx context.Context, z *Citizen) (int64, error)
	UpdateCity(ctx context.Context, c *City) error
	UpdateCitizen(ctx context.Context, z *Citizen) error
	DeleteCity(ctx context.Context, id int64) error
	DeleteCitizen(ctx context.Context, id int64) error

	// ListCities and ListCitizens scan one kind, optionally ordered by a
	// scalar attribute already validated through ValidateOrderField.
	ListCities(ctx context.Context, orderBy string) ([]*City, error)
	ListCitizens(ctx context.Context, orderBy string) ([]*Citizen, error)

	Commit() error
	Rollback() error
}
