package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse imports a dataset from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*Dataset, error) {
	var ds Dataset
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&ds); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &ds, nil
}

// Export writes a dataset as YAML
func (c *YAMLCodec) Export(ds *Dataset, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(ds); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}
