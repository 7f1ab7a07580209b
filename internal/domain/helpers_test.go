package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// unitStandards gives every metal Si=1, Ii=0 and weight 1, which keeps the
// index arithmetic exact in tests.
func unitStandards(t *testing.T) *StandardsTable {
	t.Helper()
	entries := make(map[Metal]StandardsEntry)
	for _, m := range Metals() {
		entries[m] = StandardsEntry{PermissibleLimit: 1, IdealValue: 0, HealthRiskWeight: 1}
	}
	tbl, err := NewStandardsTable(entries)
	require.NoError(t, err)
	return tbl
}

func concentrations(values map[Metal]float64) Concentrations {
	var c Concentrations
	for m, v := range values {
		c[m] = v
	}
	return c
}
