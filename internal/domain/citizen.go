package domain

// Citizen is the child entity. CityID is the back-reference to the owning
// city; zero means unattached. The reference is an identity value, not a
// pointer, so the stored graph stays acyclic.
type Citizen struct {
	meta

	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Age       int    `json:"age"`
	CityID    int64  `json:"city_id,omitempty"`
}

// NewCitizen constructs an unbound citizen that has not been persisted yet.
func NewCitizen(firstName, lastName string, age int) *Citizen {
	return &Citizen{
		meta:      newMeta(StateUnbound),
		FirstName: firstName,
		LastName:  lastName,
		Age:       age,
	}
}

// RestoreCitizen materializes a persisted citizen row as a detached entity.
// Store implementations use it when scanning rows.
func RestoreCitizen(id int64, firstName, lastName string, age int, cityID int64) *Citizen {
	return &Citizen{
		meta:      newMeta(StateDetached),
		ID:        id,
		FirstName: firstName,
		LastName:  lastName,
		Age:       age,
		CityID:    cityID,
	}
}

// Persisted reports whether the store has assigned this citizen an identity.
func (z *Citizen) Persisted() bool { return z.ID != 0 }

// Attached reports whether the citizen currently points at a city.
func (z *Citizen) Attached() bool { return z.CityID != 0 }

func (z *Citizen) key() string { return identityKey(KindCitizen, z.ID, z.handle) }
