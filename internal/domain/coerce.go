package domain

import (
	"math"
	"strconv"
	"strings"
)

// Parse-or-default is the single coercion rule for numeric input fields:
// the value is trimmed and parsed as a float; empty, unparsable, or
// non-finite input yields the field's default. Concentrations additionally
// treat negative values as invalid, so they default to 0.

// parseFloat parses s and reports whether it held a finite number.
func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseFloatOrZero parses a string as float64, returning 0 on failure.
func ParseFloatOrZero(s string) float64 {
	v, _ := parseFloat(s)
	return v
}

// ParseConcentration applies parse-or-default to a concentration field.
func ParseConcentration(s string) float64 {
	v, ok := parseFloat(s)
	if !ok {
		return 0
	}
	return normalizeConcentration(v)
}

func normalizeConcentration(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// round rounds v to the given number of decimal places.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
