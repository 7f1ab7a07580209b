package domain

import "strings"

// Field names recognized in tabular and streamed sample input.
const (
	FieldLocation  = "location"
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
	FieldDate      = "date"
)

// RequiredFields must all be present in an ingestion header.
var RequiredFields = []string{FieldLocation, FieldLatitude, FieldLongitude}

// NormalizeField canonicalizes a field name: trimmed and lower-cased.
func NormalizeField(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Record is one input row keyed by normalized field name.
type Record map[string]string

// NewRecord copies fields, normalizing their names.
func NewRecord(fields map[string]string) Record {
	r := make(Record, len(fields))
	for k, v := range fields {
		r[NormalizeField(k)] = v
	}
	return r
}

// ToSample applies the row rules: location must be non-empty and the
// coordinates must parse; metals and date follow parse-or-default. An absent
// or unparsable date becomes defaultDate (today when zero).
func (r Record) ToSample(t *StandardsTable, defaultDate Date, source Source) (Sample, error) {
	if strings.TrimSpace(r[FieldLocation]) == "" {
		return Sample{}, &InvalidSampleError{Reason: SkipMissingLocation}
	}
	lat, okLat := parseFloat(r[FieldLatitude])
	lon, okLon := parseFloat(r[FieldLongitude])
	if !okLat || !okLon {
		return Sample{}, &InvalidSampleError{
			Reason: SkipInvalidCoordinates,
			Detail: r[FieldLatitude] + "," + r[FieldLongitude],
		}
	}

	date := defaultDate
	if d, err := ParseDate(r[FieldDate]); err == nil {
		date = d
	}

	var metals Concentrations
	for _, m := range Metals() {
		metals[m] = ParseConcentration(r[m.String()])
	}

	return NewSample(SampleInput{
		Location:  r[FieldLocation],
		Latitude:  lat,
		Longitude: lon,
		Date:      date,
		Metals:    metals,
		Source:    source,
	}, t)
}
