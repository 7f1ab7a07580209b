// Package aggregate owns the ordered sample collection and derives read-only
// views from it: leaderboard, band distribution, summary, monthly trend, and
// the report rollup.
package aggregate

import (
	"context"
	"sort"
	"sync"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

// Aggregator holds samples in insertion order, at most one per ID. Appends
// are serialized; views are computed from a consistent copy taken under the
// same lock.
type Aggregator struct {
	mu      sync.RWMutex
	samples []domain.Sample
	ids     map[string]struct{}
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{ids: make(map[string]struct{})}
}

// Add appends samples in the given order. A sample whose ID is already held
// is dropped, so a replayed stream record is counted once.
func (a *Aggregator) Add(samples ...domain.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		if _, ok := a.ids[s.ID]; ok {
			continue
		}
		a.ids[s.ID] = struct{}{}
		a.samples = append(a.samples, s)
	}
}

// Unseen implements domain.SeenFilter.
func (a *Aggregator) Unseen(_ context.Context, samples []domain.Sample) ([]domain.Sample, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.Sample, 0, len(samples))
	batch := make(map[string]struct{}, len(samples))
	for _, s := range samples {
		if _, ok := a.ids[s.ID]; ok {
			continue
		}
		if _, ok := batch[s.ID]; ok {
			continue
		}
		batch[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// Append implements domain.SampleSink.
func (a *Aggregator) Append(_ context.Context, samples []domain.Sample) error {
	a.Add(samples...)
	return nil
}

// Samples returns a copy of the collection in insertion order.
func (a *Aggregator) Samples() []domain.Sample {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.Sample, len(a.samples))
	copy(out, a.samples)
	return out
}

// Len returns the number of samples held.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.samples)
}

// Leaderboard returns the samples ordered by ascending HPI (cleanest first).
// Ties keep insertion order.
func (a *Aggregator) Leaderboard() []domain.Sample {
	return Leaderboard(a.Samples())
}

// Distribution counts samples per band of each index.
func (a *Aggregator) Distribution() Distribution {
	return NewDistribution(a.Samples())
}

// Summary returns the mean HPI of the collection.
func (a *Aggregator) Summary() Summary {
	return Summarize(a.Samples())
}

// Trend returns the mean HPI per calendar month, oldest first.
func (a *Aggregator) Trend() []TrendPoint {
	return Trend(a.Samples())
}

// Report builds the rollup consumed by exports and the report endpoint.
func (a *Aggregator) Report() Report {
	return NewReport(a.Samples())
}

// Leaderboard stably sorts a copy of samples by ascending HPI.
func Leaderboard(samples []domain.Sample) []domain.Sample {
	out := make([]domain.Sample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Indices.HPI < out[j].Indices.HPI
	})
	return out
}
