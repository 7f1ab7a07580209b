package aggregate

import (
	"sort"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

// Distribution maps each index to its per-band sample counts. Every band is
// present, zero when empty.
type Distribution map[domain.Index]map[domain.Band]int

// NewDistribution classifies each sample against all three indices.
func NewDistribution(samples []domain.Sample) Distribution {
	d := Distribution{
		domain.IndexHPI: zeroBands(domain.HPIBands),
		domain.IndexHEI: zeroBands(domain.HEIBands),
		domain.IndexCd:  zeroBands(domain.CdBands),
	}
	for _, s := range samples {
		q := s.Bands()
		d[domain.IndexHPI][q.HPI]++
		d[domain.IndexHEI][q.HEI]++
		d[domain.IndexCd][q.Cd]++
	}
	return d
}

func zeroBands(bands []domain.Band) map[domain.Band]int {
	m := make(map[domain.Band]int, len(bands))
	for _, b := range bands {
		m[b] = 0
	}
	return m
}

// Summary is the collection-wide HPI average. Defined is false for an empty
// collection, in which case AverageHPI is 0.
type Summary struct {
	Count      int     `json:"count"`
	AverageHPI float64 `json:"average_hpi"`
	Defined    bool    `json:"defined"`
}

// Summarize computes the arithmetic mean HPI.
func Summarize(samples []domain.Sample) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	var sum float64
	for _, s := range samples {
		sum += s.Indices.HPI
	}
	return Summary{
		Count:      len(samples),
		AverageHPI: sum / float64(len(samples)),
		Defined:    true,
	}
}

// TrendPoint is the mean HPI of one calendar month.
type TrendPoint struct {
	Month      string  `json:"month"`
	AverageHPI float64 `json:"average_hpi"`
	Count      int     `json:"count"`
}

// Trend groups samples by the month of their date.
func Trend(samples []domain.Sample) []TrendPoint {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range samples {
		k := s.Date.Month()
		sums[k] += s.Indices.HPI
		counts[k]++
	}

	out := make([]TrendPoint, 0, len(counts))
	for k, n := range counts {
		out = append(out, TrendPoint{Month: k, AverageHPI: sums[k] / float64(n), Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// ReportRow is one sample line of a report, with display-rounded indices.
type ReportRow struct {
	Location string      `json:"location"`
	Date     domain.Date `json:"date"`
	HPI      float64     `json:"hpi"`
	HEI      float64     `json:"hei"`
	Cd       float64     `json:"cd"`
	Quality  domain.Band `json:"quality"`
}

// Priorities lists locations needing follow-up, each once, in first-seen order.
type Priorities struct {
	Immediate  []string `json:"immediate_attention"`
	Monitoring []string `json:"enhanced_monitoring"`
}

// Report is the full rollup of the collection.
type Report struct {
	GeneratedAt  time.Time    `json:"generated_at"`
	Total        int          `json:"total_samples"`
	Summary      Summary      `json:"summary"`
	Distribution Distribution `json:"distribution"`
	Rows         []ReportRow  `json:"rows"`
	Priorities   Priorities   `json:"priorities"`
}

// NewReport builds a report stamped with the domain clock. VeryPoor samples
// call for immediate attention, Poor ones for enhanced monitoring.
func NewReport(samples []domain.Sample) Report {
	r := Report{
		GeneratedAt:  domain.Now(),
		Total:        len(samples),
		Summary:      Summarize(samples),
		Distribution: NewDistribution(samples),
		Rows:         make([]ReportRow, 0, len(samples)),
		Priorities:   Priorities{Immediate: []string{}, Monitoring: []string{}},
	}

	seenImmediate := make(map[string]bool)
	seenMonitoring := make(map[string]bool)
	for _, s := range samples {
		idx := s.Indices.Rounded()
		band := s.Bands().HPI
		r.Rows = append(r.Rows, ReportRow{
			Location: s.Location,
			Date:     s.Date,
			HPI:      idx.HPI,
			HEI:      idx.HEI,
			Cd:       idx.Cd,
			Quality:  band,
		})

		switch band {
		case domain.BandVeryPoor:
			if !seenImmediate[s.Location] {
				seenImmediate[s.Location] = true
				r.Priorities.Immediate = append(r.Priorities.Immediate, s.Location)
			}
		case domain.BandPoor:
			if !seenMonitoring[s.Location] {
				seenMonitoring[s.Location] = true
				r.Priorities.Monitoring = append(r.Priorities.Monitoring, s.Location)
			}
		}
	}
	return r
}
