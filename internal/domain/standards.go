package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownMetal is returned for a metal identifier outside the tracked set.
	ErrUnknownMetal = errors.New("unknown metal")

	// ErrMissingStandard is returned when a standards table lacks a tracked metal.
	ErrMissingStandard = errors.New("missing standard")

	// ErrDegenerateStandard is returned for an entry that would make an index
	// undefined: Si <= 0, Ii < 0, Ii >= Si, or a non-positive weight.
	ErrDegenerateStandard = errors.New("degenerate standard")
)

// StandardsEntry is the reference data for one metal.
type StandardsEntry struct {
	PermissibleLimit float64 `json:"permissible_limit" yaml:"permissible_limit"` // Si
	IdealValue       float64 `json:"ideal_value" yaml:"ideal_value"`             // Ii
	HealthRiskWeight float64 `json:"health_risk_weight" yaml:"health_risk_weight"`
}

func (e StandardsEntry) validate() error {
	switch {
	case !(e.PermissibleLimit > 0):
		return fmt.Errorf("permissible limit must be > 0, got %g", e.PermissibleLimit)
	case e.IdealValue < 0:
		return fmt.Errorf("ideal value must be >= 0, got %g", e.IdealValue)
	case !(e.IdealValue < e.PermissibleLimit):
		return fmt.Errorf("ideal value %g must be below permissible limit %g", e.IdealValue, e.PermissibleLimit)
	case !(e.HealthRiskWeight > 0):
		return fmt.Errorf("health risk weight must be > 0, got %g", e.HealthRiskWeight)
	}
	return nil
}

// StandardsTable holds exactly one validated entry per tracked metal. It is
// built once at startup and never mutated, so it is safe for concurrent reads.
type StandardsTable struct {
	entries [metalCount]StandardsEntry
}

// NewStandardsTable validates entries and builds a table. Every tracked metal
// must be present and well-formed.
func NewStandardsTable(entries map[Metal]StandardsEntry) (*StandardsTable, error) {
	t := &StandardsTable{}
	for m := range entries {
		if !m.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetal, m)
		}
	}
	for _, m := range Metals() {
		e, ok := entries[m]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingStandard, m)
		}
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDegenerateStandard, m, err)
		}
		t.entries[m] = e
	}
	return t, nil
}

// NewStandardsTableFromNames is NewStandardsTable keyed by metal identifier,
// as found in configuration files.
func NewStandardsTableFromNames(entries map[string]StandardsEntry) (*StandardsTable, error) {
	byMetal := make(map[Metal]StandardsEntry, len(entries))
	for name, e := range entries {
		m, err := ParseMetal(name)
		if err != nil {
			return nil, err
		}
		if _, dup := byMetal[m]; dup {
			return nil, fmt.Errorf("duplicate standard for %s", m)
		}
		byMetal[m] = e
	}
	return NewStandardsTable(byMetal)
}

// Lookup returns the entry for m.
func (t *StandardsTable) Lookup(m Metal) (StandardsEntry, error) {
	if !m.Valid() {
		return StandardsEntry{}, fmt.Errorf("%w: %s", ErrUnknownMetal, m)
	}
	return t.entries[m], nil
}

// LookupName returns the entry for a metal identifier.
func (t *StandardsTable) LookupName(name string) (StandardsEntry, error) {
	m, err := ParseMetal(name)
	if err != nil {
		return StandardsEntry{}, err
	}
	return t.entries[m], nil
}

// entry is the unchecked lookup used by the index functions, which only ever
// iterate tracked metals.
func (t *StandardsTable) entry(m Metal) StandardsEntry {
	return t.entries[m]
}

// Entries returns a copy of the table keyed by metal name.
func (t *StandardsTable) Entries() map[string]StandardsEntry {
	out := make(map[string]StandardsEntry, metalCount)
	for _, m := range Metals() {
		out[m.String()] = t.entries[m]
	}
	return out
}

// DefaultStandards returns the built-in drinking-water table (mg/L).
// Permissible limits and ideal values follow BIS 10500 acceptable/permissible
// pairs where both exist, WHO guideline values otherwise.
func DefaultStandards() *StandardsTable {
	t, err := NewStandardsTable(map[Metal]StandardsEntry{
		Lead:     {PermissibleLimit: 0.01, IdealValue: 0, HealthRiskWeight: 1.0},
		Mercury:  {PermissibleLimit: 0.001, IdealValue: 0, HealthRiskWeight: 1.0},
		Cadmium:  {PermissibleLimit: 0.003, IdealValue: 0, HealthRiskWeight: 0.9},
		Arsenic:  {PermissibleLimit: 0.01, IdealValue: 0, HealthRiskWeight: 1.0},
		Chromium: {PermissibleLimit: 0.05, IdealValue: 0, HealthRiskWeight: 0.7},
		Copper:   {PermissibleLimit: 1.5, IdealValue: 0.05, HealthRiskWeight: 0.3},
		Zinc:     {PermissibleLimit: 15, IdealValue: 5, HealthRiskWeight: 0.2},
		Nickel:   {PermissibleLimit: 0.02, IdealValue: 0, HealthRiskWeight: 0.5},
	})
	if err != nil {
		panic("domain: invalid built-in standards: " + err.Error())
	}
	return t
}
