// Command genmock generates deterministic mock sample data: an ingestion CSV
// for the import endpoint and CLI, and a JSON fixture of raw stream records
// for the pipeline tests. Every generated row is run through the domain
// package so the printed stats match what the service would report.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -n 200 -seed 42 \
//	  -csv-out data/mock/samples.csv \
//	  -json-out internal/pipeline/testdata/mock_samples.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/aggregate"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/export"
	"github.com/jonboulle/clockwork"
)

type site struct {
	name     string
	lat, lon float64
	// load scales every metal at this site; 1 means concentrations near the
	// permissible limit.
	load float64
}

var sites = []site{
	{"Yamuna Ghat", 28.6139, 77.2090, 1.6},
	{"Ganga Barrage", 25.3176, 83.0107, 1.2},
	{"Mula River", 18.5204, 73.8567, 0.9},
	{"Mithi River", 19.0760, 72.8777, 2.2},
	{"Sabarmati Bridge", 23.0225, 72.5714, 1.0},
	{"Hooghly Jetty", 22.5726, 88.3639, 1.4},
	{"Cauvery Weir", 12.2958, 76.6394, 0.4},
	{"Godavari Point", 17.0005, 81.8040, 0.6},
	{"Periyar Intake", 10.0889, 76.3500, 0.3},
	{"Narmada Ghat", 22.7196, 75.8577, 0.7},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	n := flag.Int("n", 200, "number of samples to generate")
	seed := flag.Uint64("seed", 42, "random seed")
	csvOut := flag.String("csv-out", "", "output path for the ingestion CSV")
	jsonOut := flag.String("json-out", "", "output path for the raw stream JSON fixture")
	flag.Parse()

	if *csvOut == "" && *jsonOut == "" {
		flag.Usage()
		return fmt.Errorf("at least one of -csv-out, -json-out is required")
	}
	if *n < 1 {
		return fmt.Errorf("-n must be positive")
	}

	// Fixed clock for reproducible assessed_at timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.December, 31, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	rows := generate(*n, *seed, domain.DefaultStandards())

	if *csvOut != "" {
		if err := writeCSV(*csvOut, rows); err != nil {
			return fmt.Errorf("writing CSV: %w", err)
		}
		log.Printf("wrote CSV: %s (%d rows)", *csvOut, len(rows))
	}
	if *jsonOut != "" {
		if err := writeJSON(*jsonOut, rawRecords(rows)); err != nil {
			return fmt.Errorf("writing JSON fixture: %w", err)
		}
		log.Printf("wrote JSON fixture: %s", *jsonOut)
	}

	return printStats(rows)
}

// generate draws n rows in template column order. Concentrations are a
// site-dependent multiple of each metal's permissible limit, so the output
// covers every quality band.
func generate(n int, seed uint64, standards *domain.StandardsTable) [][]string {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	limits := standards.Entries()
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	rows := make([][]string, 0, n)
	for i := range n {
		s := sites[i%len(sites)]
		date := start.AddDate(0, 0, r.IntN(366))

		row := []string{
			s.name,
			strconv.FormatFloat(s.lat, 'f', 4, 64),
			strconv.FormatFloat(s.lon, 'f', 4, 64),
			date.Format("2006-01-02"),
		}
		for _, m := range domain.Metals() {
			v := limits[m.String()].PermissibleLimit * s.load * r.Float64() * 1.5
			row = append(row, strconv.FormatFloat(v, 'g', 4, 64))
		}
		rows = append(rows, row)
	}
	return rows
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(export.TemplateHeader); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

// rawRecords shapes rows as stream producers publish them: one flat object
// per sample with title-cased keys.
func rawRecords(rows [][]string) []map[string]string {
	keys := []string{"Location", "Latitude", "Longitude", "Date"}
	for _, m := range domain.Metals() {
		keys = append(keys, m.Title())
	}

	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]string, len(keys))
		for i, k := range keys {
			rec[k] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(rows [][]string) error {
	standards := domain.DefaultStandards()
	agg := aggregate.New()
	for i, row := range rows {
		rec := make(map[string]string, len(row))
		for j, h := range export.TemplateHeader {
			rec[h] = row[j]
		}
		s, err := domain.NewRecord(rec).ToSample(standards, domain.Date{}, domain.SourceCSV)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		agg.Add(s)
	}

	report := agg.Report()
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", report.Total)
	fmt.Printf("Average HPI: %.2f\n", report.Summary.AverageHPI)
	for _, idx := range []struct {
		index domain.Index
		bands []domain.Band
	}{
		{domain.IndexHPI, domain.HPIBands},
		{domain.IndexHEI, domain.HEIBands},
		{domain.IndexCd, domain.CdBands},
	} {
		fmt.Printf("%s:", idx.index)
		for _, band := range idx.bands {
			fmt.Printf(" %s=%d", band, report.Distribution[idx.index][band])
		}
		fmt.Println()
	}
	fmt.Printf("Immediate attention: %v\n", report.Priorities.Immediate)
	fmt.Printf("Enhanced monitoring: %v\n", report.Priorities.Monitoring)

	top := agg.Leaderboard()
	fmt.Println("\nMost polluted:")
	for _, s := range top[:min(5, len(top))] {
		fmt.Printf("  %-18s %s  HPI=%.2f\n", s.Location, s.Date, s.Indices.HPI)
	}
	return nil
}
