package domain

// City is the parent entity. It owns a named collection of citizens;
// membership is a set keyed by identity, never by reference.
type City struct {
	meta

	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Country    string `json:"country"`
	Population int    `json:"population"`

	// Citizens is a snapshot populated by read operations. It is not the
	// tracked collection: sessions maintain the live set internally and
	// only the relationship synchronizer mutates it.
	Citizens []*Citizen `json:"citizens,omitempty"`
}

// NewCity constructs an unbound city that has not been persisted yet.
func NewCity(name, country string, population int) *City {
	return &City{
		meta:       newMeta(StateUnbound),
		Name:       name,
		Country:    country,
		Population: population,
	}
}

// RestoreCity materializes a persisted city row as a detached entity.
// Store implementations use it when scanning rows.
func RestoreCity(id int64, name, country string, population int) *City {
	return &City{
		meta:       newMeta(StateDetached),
		ID:         id,
		Name:       name,
		Country:    country,
		Population: population,
	}
}

// Persisted reports whether the store has assigned this city an identity.
func (c *City) Persisted() bool { return c.ID != 0 }

func (c *City) key() string { return identityKey(KindCity, c.ID, c.handle) }
