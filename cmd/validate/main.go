// Command validate checks an exported sample CSV for integrity: header
// layout, row values, and indices re-derived from the exported
// concentrations. Given the source ingestion CSV it also checks that every
// accepted row was exported in order.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -export data/mock/export.csv \
//	  -source data/mock/samples.csv \
//	  -standards config/standards.yaml
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/water-quality-etl/internal/aggregate"
	"github.com/couchcryptid/water-quality-etl/internal/config"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/export"
	"github.com/couchcryptid/water-quality-etl/internal/ingest"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
	"github.com/fatih/color"
)

// Column positions in export.Header.
const (
	colLocation = iota
	colDate
	colLatitude
	colLongitude
	colHPI
	colHEI
	colCd
	colFirstMetal
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	exportPath := flag.String("export", "", "path to an exported sample CSV")
	sourcePath := flag.String("source", "", "optional source ingestion CSV the export was produced from")
	standardsPath := flag.String("standards", "", "standards table file (default is the built-in table)")
	flag.Parse()

	if *exportPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(os.Stdout, *exportPath, *sourcePath, *standardsPath))
}

func run(out io.Writer, exportPath, sourcePath, standardsPath string) int {
	fmt.Fprintln(out, "=== Sample Export Validation ===")
	fmt.Fprintln(out)

	standards, err := config.LoadStandards(standardsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load standards: %v\n", err)
		return 1
	}

	rows, err := loadCSV(exportPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load export: %v\n", err)
		return 1
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "FATAL: export is empty")
		return 1
	}
	header, data := rows[0], rows[1:]

	phases := []*phase{validateHeader(header)}
	if phases[0].passed() {
		phases = append(phases,
			validateRows(data),
			validateIndices(data, standards),
		)
	}
	if sourcePath != "" {
		phases = append(phases, validateSource(data, sourcePath, standards))
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := color.GreenString("PASS")
		if !p.passed() {
			status = color.RedString("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d exported\n", len(data))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func loadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// ── Phase 1: Header ──

func validateHeader(header []string) *phase {
	p := &phase{name: "Phase 1: Header layout"}
	if !slices.Equal(header, export.Header) {
		p.errorf("header %q, expected %q", strings.Join(header, ","), strings.Join(export.Header, ","))
	}
	return p
}

// ── Phase 2: Row integrity ──

func validateRows(data [][]string) *phase {
	p := &phase{name: "Phase 2: Row integrity"}
	for i, row := range data {
		line := i + 2
		if len(row) != len(export.Header) {
			p.errorf("line %d: %d columns, expected %d", line, len(row), len(export.Header))
			continue
		}
		if strings.TrimSpace(row[colLocation]) == "" {
			p.errorf("line %d: location is empty", line)
		}
		if _, err := domain.ParseDate(row[colDate]); err != nil {
			p.errorf("line %d: date %q: %v", line, row[colDate], err)
		}
		lat, latErr := parseFinite(row[colLatitude])
		lon, lonErr := parseFinite(row[colLongitude])
		switch {
		case latErr != nil || lonErr != nil:
			p.errorf("line %d: coordinates (%q, %q) do not parse", line, row[colLatitude], row[colLongitude])
		case lat < -90 || lat > 90 || lon < -180 || lon > 180:
			p.errorf("line %d: coordinates (%g, %g) out of range", line, lat, lon)
		}
		for j, m := range domain.Metals() {
			v, err := parseFinite(row[colFirstMetal+j])
			if err != nil || v < 0 {
				p.errorf("line %d: %s concentration %q is not a non-negative number", line, m, row[colFirstMetal+j])
			}
		}
	}
	return p
}

// ── Phase 3: Index re-derivation ──

func validateIndices(data [][]string, standards *domain.StandardsTable) *phase {
	p := &phase{name: "Phase 3: Indices match concentrations"}
	for i, row := range data {
		if len(row) != len(export.Header) {
			continue
		}
		line := i + 2

		var c domain.Concentrations
		for j, m := range domain.Metals() {
			v, _ := parseFinite(row[colFirstMetal+j])
			c = c.With(m, v)
		}
		idx := domain.ComputeIndices(c, standards)

		for _, check := range []struct {
			name string
			col  int
			want float64
		}{
			{"HPI", colHPI, idx.HPI},
			{"HEI", colHEI, idx.HEI},
			{"Cd", colCd, idx.Cd},
		} {
			want := strconv.FormatFloat(check.want, 'f', 2, 64)
			if row[check.col] != want {
				p.errorf("line %d (%s): %s is %s, concentrations give %s", line, row[colLocation], check.name, row[check.col], want)
			}
		}
	}
	return p
}

// ── Phase 4: Source parity ──

// validateSource re-ingests the source CSV and checks that the export holds
// exactly the accepted rows, in order.
func validateSource(data [][]string, sourcePath string, standards *domain.StandardsTable) *phase {
	p := &phase{name: "Phase 4: Source parity (ingest vs export)"}

	f, err := os.Open(sourcePath)
	if err != nil {
		p.errorf("open source: %v", err)
		return p
	}
	defer f.Close()

	tbl, err := ingest.ReadCSV(f)
	if err != nil {
		p.errorf("read source: %v", err)
		return p
	}

	agg := aggregate.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	res, err := ingest.NewIngestor(standards, agg, observability.NewMetricsWithRegistry(nil), logger).
		Ingest(context.Background(), tbl)
	if err != nil {
		p.errorf("ingest source: %v", err)
		return p
	}

	if res.Accepted != len(data) {
		p.errorf("source accepts %d rows (%d skipped), export has %d", res.Accepted, res.Skipped, len(data))
	}

	for i, s := range agg.Samples() {
		if i >= len(data) {
			break
		}
		row := data[i]
		if len(row) < colFirstMetal {
			continue
		}
		if row[colLocation] != s.Location {
			p.errorf("line %d: location %q, source row gives %q", i+2, row[colLocation], s.Location)
		}
		lat, _ := parseFinite(row[colLatitude])
		lon, _ := parseFinite(row[colLongitude])
		if !floatEq(lat, s.Latitude) || !floatEq(lon, s.Longitude) {
			p.errorf("line %d: coordinates (%g, %g), source row gives (%g, %g)", i+2, lat, lon, s.Latitude, s.Longitude)
		}
	}
	return p
}

// ── Helpers ──

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite: %q", s)
	}
	return v, nil
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
