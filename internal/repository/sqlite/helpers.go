package sqlite

import (
	"database/sql"
	"fmt"

	"civica/internal/domain"
)

// cityColumns is the SELECT column list for city queries. Order must match
// scanCity exactly.
const cityColumns = `id, name, country, population`

// citizenColumns is the SELECT column list for citizen queries. Order must
// match scanCitizen exactly.
const citizenColumns = `id, first_name, last_name, age, city_id`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCity reads one city row into a detached domain entity.
func scanCity(row rowScanner) (*domain.City, error) {
	var (
		id         int64
		name       string
		country    string
		population int
	)
	if err := row.Scan(&id, &name, &country, &population); err != nil {
		return nil, err
	}
	return domain.RestoreCity(id, name, country, population), nil
}

// scanCitizen reads one citizen row into a detached domain entity.
func scanCitizen(row rowScanner) (*domain.Citizen, error) {
	var (
		id        int64
		firstName string
		lastName  string
		age       int
		cityID    sql.NullInt64
	)
	if err := row.Scan(&id, &firstName, &lastName, &age, &cityID); err != nil {
		return nil, err
	}
	return domain.RestoreCitizen(id, firstName, lastName, age, nullToInt64(cityID)), nil
}

// collectCitizens drains a citizen result set.
func collectCitizens(rows *sql.Rows) ([]*domain.Citizen, error) {
	var out []*domain.Citizen
	for rows.Next() {
		z, err := scanCitizen(rows)
		if err != nil {
			return nil, fmt.Errorf("scan citizen: %w", err)
		}
		out = append(out, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate citizens: %w", err)
	}
	return out, nil
}

// nullToInt64 converts sql.NullInt64 to int64, zero when NULL.
func nullToInt64(ni sql.NullInt64) int64 {
	if ni.Valid {
		return ni.Int64
	}
	return 0
}

// int64ToNull converts an identity value to sql.NullInt64, NULL when zero.
func int64ToNull(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

// cityOrderColumns and citizenOrderColumns whitelist ORDER BY targets.
// Attribute names double as column names; the indirection exists so a
// query can never interpolate caller input directly.
var cityOrderColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"country":    "country",
	"population": "population",
}

var citizenOrderColumns = map[string]string{
	"id":         "id",
	"first_name": "first_name",
	"last_name":  "last_name",
	"age":        "age",
}

// orderClause renders the optional ORDER BY clause from a whitelisted
// attribute name.
func orderClause(columns map[string]string, orderBy string) (string, error) {
	if orderBy == "" {
		return "", nil
	}
	col, ok := columns[orderBy]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidField, orderBy)
	}
	return " ORDER BY " + col, nil
}

// requireRow enforces that an UPDATE touched an existing identity.
func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s %d: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}
