// Package sqlite implements domain.Store over a SQLite database using the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"civica/internal/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Store implements domain.Store backed by a single SQLite database.
type Store struct {
	db *sql.DB
}

var _ domain.Store = (*Store)(nil)

// New opens (creating if necessary) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: keeps pragmas effective across the whole pool and
	// makes ":memory:" behave as a single database.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		country TEXT NOT NULL,
		population INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS citizens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		age INTEGER NOT NULL DEFAULT 0,
		city_id INTEGER REFERENCES cities(id),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_citizens_city ON citizens(city_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Begin opens an exclusive transaction for one unit of work.
func (s *Store) Begin(ctx context.Context) (domain.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Tx implements domain.Tx over a single sql.Tx.
type Tx struct {
	tx *sql.Tx
}

var _ domain.Tx = (*Tx)(nil)

// FindCity retrieves a single city by ID, (nil, nil) when absent.
func (t *Tx) FindCity(ctx context.Context, id int64) (*domain.City, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+cityColumns+` FROM cities WHERE id = ?`, id)
	c, err := scanCity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find city: %w", err)
	}
	return c, nil
}

// FindCitizen retrieves a single citizen by ID, (nil, nil) when absent.
func (t *Tx) FindCitizen(ctx context.Context, id int64) (*domain.Citizen, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+citizenColumns+` FROM citizens WHERE id = ?`, id)
	z, err := scanCitizen(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find citizen: %w", err)
	}
	return z, nil
}

// CitizensOf returns every citizen whose back-reference points at cityID.
func (t *Tx) CitizensOf(ctx context.Context, cityID int64) ([]*domain.Citizen, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+citizenColumns+` FROM citizens WHERE city_id = ? ORDER BY id`, cityID)
	if err != nil {
		return nil, fmt.Errorf("query citizens of city: %w", err)
	}
	defer rows.Close()
	return collectCitizens(rows)
}

// InsertCity persists a new city row and returns its assigned ID.
func (t *Tx) InsertCity(ctx context.Context, c *domain.City) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO cities (name, country, population) VALUES (?, ?, ?)
	`, c.Name, c.Country, c.Population)
	if err != nil {
		return 0, fmt.Errorf("insert city: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert city: %w", err)
	}
	return id, nil
}

// InsertCitizen persists a new citizen row and returns its assigned ID.
func (t *Tx) InsertCitizen(ctx context.Context, z *domain.Citizen) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO citizens (first_name, last_name, age, city_id) VALUES (?, ?, ?, ?)
	`, z.FirstName, z.LastName, z.Age, int64ToNull(z.CityID))
	if err != nil {
		return 0, fmt.Errorf("insert citizen: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert citizen: %w", err)
	}
	return id, nil
}

// UpdateCity rewrites a persisted city row. Updating an absent identity is
// an error.
func (t *Tx) UpdateCity(ctx context.Context, c *domain.City) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE cities SET name = ?, country = ?, population = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, c.Name, c.Country, c.Population, c.ID)
	if err != nil {
		return fmt.Errorf("update city: %w", err)
	}
	return requireRow(res, "city", c.ID)
}

// UpdateCitizen rewrites a persisted citizen row, back-reference included.
// Updating an absent identity is an error.
func (t *Tx) UpdateCitizen(ctx context.Context, z *domain.Citizen) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE citizens SET first_name = ?, last_name = ?, age = ?, city_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, z.FirstName, z.LastName, z.Age, int64ToNull(z.CityID), z.ID)
	if err != nil {
		return fmt.Errorf("update citizen: %w", err)
	}
	return requireRow(res, "citizen", z.ID)
}

// DeleteCity removes a city row; absent rows are a no-op.
func (t *Tx) DeleteCity(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM cities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete city: %w", err)
	}
	return nil
}

// DeleteCitizen removes a citizen row; absent rows are a no-op.
func (t *Tx) DeleteCitizen(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM citizens WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete citizen: %w", err)
	}
	return nil
}

// ListCities scans all cities, optionally ordered by a whitelisted column.
func (t *Tx) ListCities(ctx context.Context, orderBy string) ([]*domain.City, error) {
	clause, err := orderClause(cityOrderColumns, orderBy)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT `+cityColumns+` FROM cities`+clause)
	if err != nil {
		return nil, fmt.Errorf("query cities: %w", err)
	}
	defer rows.Close()

	var out []*domain.City
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cities: %w", err)
	}
	return out, nil
}

// ListCitizens scans all citizens, optionally ordered by a whitelisted
// column.
func (t *Tx) ListCitizens(ctx context.Context, orderBy string) ([]*domain.Citizen, error) {
	clause, err := orderClause(citizenOrderColumns, orderBy)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT `+citizenColumns+` FROM citizens`+clause)
	if err != nil {
		return nil, fmt.Errorf("query citizens: %w", err)
	}
	defer rows.Close()
	return collectCitizens(rows)
}

// Commit makes the transaction's writes durable.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback discards the transaction's writes.
func (t *Tx) Rollback() error { return t.tx.Rollback() }
