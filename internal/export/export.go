// Package export renders samples as CSV for download and produces the
// ingestion template.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

// Header is the column layout of an exported sample CSV.
var Header = func() []string {
	h := []string{"Location", "Date", "Latitude", "Longitude", "HPI", "HEI", "Cd"}
	for _, m := range domain.Metals() {
		h = append(h, m.Title())
	}
	return h
}()

// TemplateHeader is the column layout accepted by ingestion.
var TemplateHeader = func() []string {
	h := []string{domain.FieldLocation, domain.FieldLatitude, domain.FieldLongitude, domain.FieldDate}
	for _, m := range domain.Metals() {
		h = append(h, m.String())
	}
	return h
}()

var templateRows = [][]string{
	{"Sample Location 1", "18.5204", "73.8567", "2024-01-15", "0.005", "0.002", "0.001", "0.008", "0.02", "0.1", "0.5", "0.03"},
	{"Sample Location 2", "19.0760", "72.8777", "2024-01-16", "0.012", "0.004", "0.002", "0.015", "0.03", "0.15", "0.8", "0.05"},
}

// WriteCSV writes samples in the given order. Indices carry two decimals;
// concentrations are written at full precision.
func WriteCSV(w io.Writer, samples []domain.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(Header))
	for _, s := range samples {
		row = row[:0]
		row = append(row,
			s.Location,
			s.Date.String(),
			formatFloat(s.Latitude, -1),
			formatFloat(s.Longitude, -1),
			formatFloat(s.Indices.HPI, 2),
			formatFloat(s.Indices.HEI, 2),
			formatFloat(s.Indices.Cd, 2),
		)
		for _, m := range domain.Metals() {
			row = append(row, formatFloat(s.Metals[m], -1))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write sample %s: %w", s.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTemplate writes the ingestion header followed by two example rows.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TemplateHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(templateRows); err != nil {
		return fmt.Errorf("write template rows: %w", err)
	}
	return nil
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
