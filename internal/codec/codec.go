// Package codec translates datasets between wire formats and the records
// the service layer persists.
package codec

import (
	"fmt"
	"io"
)

// Dataset is the portable snapshot of a whole database: every city and
// every citizen, relationships expressed through the citizen's city_id.
type Dataset struct {
	Cities   []CityRecord    `json:"cities" yaml:"cities"`
	Citizens []CitizenRecord `json:"citizens" yaml:"citizens"`
}

// CityRecord is the flat wire form of a city.
type CityRecord struct {
	ID         int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string `json:"name" yaml:"name"`
	Country    string `json:"country" yaml:"country"`
	Population int    `json:"population" yaml:"population"`
}

// CitizenRecord is the flat wire form of a citizen. CityID zero means
// unattached.
type CitizenRecord struct {
	ID        int64  `json:"id,omitempty" yaml:"id,omitempty"`
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
	Age       int    `json:"age" yaml:"age"`
	CityID    int64  `json:"city_id,omitempty" yaml:"city_id,omitempty"`
}

// Importer interface for reading datasets from various formats
type Importer interface {
	Parse(r io.Reader) (*Dataset, error)
	Format() string
}

// Exporter interface for writing datasets to various formats
type Exporter interface {
	Export(ds *Dataset, w io.Writer) error
	Format() string
}

// ImporterFor returns the importer registered for the format name.
func ImporterFor(format string) (Importer, error) {
	switch format {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported import format %q", format)
	}
}

// ExporterFor returns the exporter registered for the format name.
func ExporterFor(format string) (Exporter, error) {
	switch format {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
