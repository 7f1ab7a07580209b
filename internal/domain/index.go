package domain

// IndexSet holds the three pollution indices of one sample at full precision.
type IndexSet struct {
	HPI float64 `json:"hpi"`
	HEI float64 `json:"hei"`
	Cd  float64 `json:"cd"`
}

// Rounded returns the indices rounded to 2 decimal places for display.
func (s IndexSet) Rounded() IndexSet {
	return IndexSet{HPI: round(s.HPI, 2), HEI: round(s.HEI, 2), Cd: round(s.Cd, 2)}
}

// ComputeIndices derives HPI, HEI and Cd for c.
func ComputeIndices(c Concentrations, t *StandardsTable) IndexSet {
	return IndexSet{
		HPI: HPI(c, t),
		HEI: HEI(c, t),
		Cd:  ContaminationDegree(c, t),
	}
}

// HPI computes the Heavy-metal Pollution Index: the mean of per-metal
// sub-indices Qi weighted by Wi = 1/Si, where
//
//	Qi = 100 * max(Ci - Ii, 0) / (Si - Ii)
//
// Qi is 0 at or below the ideal value, 100 at the permissible limit, and
// extrapolates above 100 beyond it. Metals with Si <= Ii are skipped; with no
// usable metal the result is 0.
func HPI(c Concentrations, t *StandardsTable) float64 {
	var num, den float64
	for _, m := range Metals() {
		e := t.entry(m)
		if !(e.PermissibleLimit > e.IdealValue) {
			continue
		}
		w := 1 / e.PermissibleLimit
		excess := c[m] - e.IdealValue
		if excess < 0 {
			excess = 0
		}
		q := 100 * excess / (e.PermissibleLimit - e.IdealValue)
		num += w * q
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// HEI computes the Heavy-metal Evaluation Index: the sum of Ci/Si.
func HEI(c Concentrations, t *StandardsTable) float64 {
	var sum float64
	for _, m := range Metals() {
		sum += c[m] / t.entry(m).PermissibleLimit
	}
	return sum
}

// ContaminationDegree computes Cd, the sum of contamination factors
// Ci/Si - 1. Factors are not clamped, so a clean sample is negative.
func ContaminationDegree(c Concentrations, t *StandardsTable) float64 {
	var sum float64
	for _, m := range Metals() {
		sum += c[m]/t.entry(m).PermissibleLimit - 1
	}
	return sum
}
