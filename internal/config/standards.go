package config

import (
	"fmt"
	"os"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

type standardsFile struct {
	Standards map[string]domain.StandardsEntry `yaml:"standards"`
}

// LoadStandards reads a YAML standards table. An empty path yields the
// built-in table. The file must define every tracked metal:
//
//	standards:
//	  lead: {permissible_limit: 0.01, ideal_value: 0, health_risk_weight: 1}
//	  ...
func LoadStandards(path string) (*domain.StandardsTable, error) {
	if path == "" {
		return domain.DefaultStandards(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read standards file: %w", err)
	}
	return ParseStandards(data)
}

// ParseStandards decodes a YAML standards document.
func ParseStandards(data []byte) (*domain.StandardsTable, error) {
	var f standardsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode standards: %w", err)
	}
	if len(f.Standards) == 0 {
		return nil, fmt.Errorf("decode standards: %w: no entries", domain.ErrMissingStandard)
	}
	t, err := domain.NewStandardsTableFromNames(f.Standards)
	if err != nil {
		return nil, fmt.Errorf("build standards table: %w", err)
	}
	return t, nil
}
