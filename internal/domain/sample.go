package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Date is a calendar date in UTC, encoded as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date: %w", err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Month returns the "YYYY-MM" key of the date.
func (d Date) Month() string {
	return d.Format("2006-01")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Source records how a sample entered the system.
type Source string

const (
	SourceCSV    Source = "csv"
	SourceManual Source = "manual"
	SourceStream Source = "stream"
)

// SkipReason explains why an input row did not become a sample.
type SkipReason string

const (
	SkipTooFewValues          SkipReason = "too_few_values"
	SkipMalformedRow          SkipReason = "malformed_row"
	SkipMissingLocation       SkipReason = "missing_location"
	SkipInvalidCoordinates    SkipReason = "invalid_coordinates"
	SkipCoordinatesOutOfRange SkipReason = "coordinates_out_of_range"
)

// ErrInvalidSample matches every *InvalidSampleError.
var ErrInvalidSample = errors.New("invalid sample")

// InvalidSampleError rejects sample input, carrying the skip reason.
type InvalidSampleError struct {
	Reason SkipReason
	Detail string
}

func (e *InvalidSampleError) Error() string {
	if e.Detail == "" {
		return "invalid sample: " + string(e.Reason)
	}
	return "invalid sample: " + string(e.Reason) + ": " + e.Detail
}

func (e *InvalidSampleError) Is(target error) bool {
	return target == ErrInvalidSample
}

// SampleInput is the raw material for a Sample. Zero Date means today; empty
// ID means a fresh UUID.
type SampleInput struct {
	ID         string
	Location   string
	Latitude   float64
	Longitude  float64
	Date       Date
	Metals     Concentrations
	Source     Source
	AssessedAt time.Time
}

// Sample is one location's measurement event with its derived indices.
// Samples are values: a correction produces a new Sample rather than editing
// one in place.
type Sample struct {
	ID         string         `json:"id"`
	Location   string         `json:"location"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Date       Date           `json:"date"`
	Source     Source         `json:"source,omitempty"`
	Metals     Concentrations `json:"metals"`
	Indices    IndexSet       `json:"indices"`
	AssessedAt time.Time      `json:"assessed_at"`
}

// NewSample validates in and computes its indices against t.
func NewSample(in SampleInput, t *StandardsTable) (Sample, error) {
	location := strings.TrimSpace(in.Location)
	if location == "" {
		return Sample{}, &InvalidSampleError{Reason: SkipMissingLocation}
	}
	if !finite(in.Latitude) || !finite(in.Longitude) {
		return Sample{}, &InvalidSampleError{Reason: SkipInvalidCoordinates}
	}
	if in.Latitude < -90 || in.Latitude > 90 || in.Longitude < -180 || in.Longitude > 180 {
		return Sample{}, &InvalidSampleError{
			Reason: SkipCoordinatesOutOfRange,
			Detail: fmt.Sprintf("(%g, %g)", in.Latitude, in.Longitude),
		}
	}

	var metals Concentrations
	for _, m := range Metals() {
		metals[m] = normalizeConcentration(in.Metals[m])
	}

	s := Sample{
		ID:         in.ID,
		Location:   location,
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		Date:       in.Date,
		Source:     in.Source,
		Metals:     metals,
		Indices:    ComputeIndices(metals, t),
		AssessedAt: in.AssessedAt,
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Date.IsZero() {
		s.Date = Today()
	}
	if s.AssessedAt.IsZero() {
		s.AssessedAt = Now()
	}
	return s, nil
}

// Bands classifies the sample's indices.
func (s Sample) Bands() QualityBands {
	return s.Indices.Classify()
}

// SampleView is the serialized shape consumed by exports and the API.
type SampleView struct {
	Sample
	Quality QualityBands `json:"quality"`
}

// View returns the sample together with its quality bands.
func (s Sample) View() SampleView {
	return SampleView{Sample: s, Quality: s.Bands()}
}

// SampleSink receives accepted samples in arrival order.
type SampleSink interface {
	Append(ctx context.Context, samples []Sample) error
}

// FanOut appends to each sink in order and stops at the first failure. Nil
// entries are skipped.
type FanOut []SampleSink

func (f FanOut) Append(ctx context.Context, samples []Sample) error {
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, samples); err != nil {
			return err
		}
	}
	return nil
}

// SeenFilter reports which samples have not been recorded yet.
type SeenFilter interface {
	// Unseen returns the samples whose ID is not yet held, in order. An ID
	// repeated within samples is kept once.
	Unseen(ctx context.Context, samples []Sample) ([]Sample, error)
}

// FirstSeen forwards to Next only the samples Seen has not recorded, so a
// replayed stream record reaches Next at most once after it was loaded.
// Seen must be one of the sinks behind Next; until Next succeeds the sample
// stays unseen and a redelivery retries it.
type FirstSeen struct {
	Seen SeenFilter
	Next SampleSink
}

func (f FirstSeen) Append(ctx context.Context, samples []Sample) error {
	fresh, err := f.Seen.Unseen(ctx, samples)
	if err != nil {
		return err
	}
	if len(fresh) == 0 {
		return nil
	}
	return f.Next.Append(ctx, fresh)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
