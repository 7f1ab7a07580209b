package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Metal identifies one of the tracked heavy metals.
type Metal int

// The tracked metals, in their fixed enumeration order. Every iteration over
// metals (index sums, exceedance lists, exports) uses this order.
const (
	Lead Metal = iota
	Mercury
	Cadmium
	Arsenic
	Chromium
	Copper
	Zinc
	Nickel

	metalCount
)

var metalNames = [metalCount]string{
	Lead:     "lead",
	Mercury:  "mercury",
	Cadmium:  "cadmium",
	Arsenic:  "arsenic",
	Chromium: "chromium",
	Copper:   "copper",
	Zinc:     "zinc",
	Nickel:   "nickel",
}

// Metals returns the tracked metals in enumeration order.
func Metals() []Metal {
	out := make([]Metal, metalCount)
	for i := range out {
		out[i] = Metal(i)
	}
	return out
}

// Valid reports whether m is one of the tracked metals.
func (m Metal) Valid() bool {
	return m >= 0 && m < metalCount
}

func (m Metal) String() string {
	if !m.Valid() {
		return "metal(" + strconv.Itoa(int(m)) + ")"
	}
	return metalNames[m]
}

// Title returns the capitalized metal name used in CSV exports, e.g. "Lead".
func (m Metal) Title() string {
	s := m.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseMetal resolves a metal identifier case-insensitively, ignoring
// surrounding whitespace.
func ParseMetal(name string) (Metal, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range metalNames {
		if n == key {
			return Metal(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMetal, name)
}

// Concentrations holds one concentration per tracked metal (mg/L). All eight
// entries are always present; a metal that was not measured is 0. It is a
// value type, so copies never alias.
type Concentrations [metalCount]float64

// Get returns the concentration of m, or 0 for an unknown metal.
func (c Concentrations) Get(m Metal) float64 {
	if !m.Valid() {
		return 0
	}
	return c[m]
}

// With returns a copy of c with m set to v, normalized by the
// parse-or-default rule.
func (c Concentrations) With(m Metal, v float64) Concentrations {
	if m.Valid() {
		c[m] = normalizeConcentration(v)
	}
	return c
}

// Any reports whether at least one metal has a positive concentration.
func (c Concentrations) Any() bool {
	for _, v := range c {
		if v > 0 {
			return true
		}
	}
	return false
}

// ConcentrationsFromMap builds Concentrations from metal names to values.
// Unknown names are ignored; missing metals are 0.
func ConcentrationsFromMap(values map[string]float64) Concentrations {
	var c Concentrations
	for name, v := range values {
		m, err := ParseMetal(name)
		if err != nil {
			continue
		}
		c[m] = normalizeConcentration(v)
	}
	return c
}

// MarshalJSON encodes the concentrations as an object keyed by metal name in
// enumeration order.
func (c Concentrations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(metalNames[i]))
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts an object of metal name to number. Unknown keys are
// ignored and invalid values fall back to 0.
func (c *Concentrations) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode concentrations: %w", err)
	}
	*c = ConcentrationsFromMap(raw)
	return nil
}
