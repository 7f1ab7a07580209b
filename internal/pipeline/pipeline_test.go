package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/aggregate"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
	"github.com/couchcryptid/water-quality-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
	err     error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	i := int(m.index.Add(1) - 1)
	if m.err != nil && i == 0 {
		return nil, m.err
	}
	if m.err != nil {
		i--
	}
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Sample, error) {
	if m.err != nil {
		return domain.Sample{}, m.err
	}
	return domain.Sample{ID: string(raw.Key), Location: "mock"}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.Sample
	fail   int
}

func (m *mockLoader) Append(_ context.Context, samples []domain.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail > 0 {
		m.fail--
		return errors.New("sink unavailable")
	}
	m.loaded = append(m.loaded, samples...)
	return nil
}

func (m *mockLoader) Loaded() []domain.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Sample(nil), m.loaded...)
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		{Key: []byte("s-1")},
		{Key: []byte("s-2")},
	}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), metrics, 50)
	require.Error(t, p.CheckReadiness(context.Background()))

	runFor(t, p, 300*time.Millisecond)

	loaded := ldr.Loaded()
	require.Len(t, loaded, 2)
	assert.Equal(t, "s-1", loaded[0].ID)
	assert.True(t, p.Ready())
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.MessagesConsumed), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.MessagesProduced), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no events, will block
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.Loaded())
}

func TestPipeline_Run_TransformErrorCommitsAndSkips(t *testing.T) {
	var committed atomic.Int32
	raw := domain.RawEvent{
		Key:    []byte("bad"),
		Topic:  "raw-water-samples",
		Commit: func(context.Context) error { committed.Add(1); return nil },
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, discardLogger(), metrics, 50)
	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.Loaded())
	assert.False(t, p.Ready())
	assert.Equal(t, int32(1), committed.Load(), "rejected records are committed so they are not redelivered")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.TransformErrors), 0)
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commitCalled atomic.Bool
	raw := domain.RawEvent{
		Key:    []byte("s-5"),
		Topic:  "raw-water-samples",
		Commit: func(context.Context) error { commitCalled.Store(true); return nil },
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, discardLogger(), newTestMetrics(), 50)
	runFor(t, p, 300*time.Millisecond)

	assert.True(t, commitCalled.Load())
}

func TestPipeline_Run_LoadFailureSkipsCommit(t *testing.T) {
	var commitCalled atomic.Bool
	raw := domain.RawEvent{
		Key:    []byte("s-6"),
		Commit: func(context.Context) error { commitCalled.Store(true); return nil },
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{fail: 1}
	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 50)
	runFor(t, p, 500*time.Millisecond)

	assert.False(t, commitCalled.Load())
	assert.Empty(t, ldr.Loaded())
	assert.False(t, p.Ready())
}

func TestPipeline_Run_LoadFailureCommitsOnlyRejected(t *testing.T) {
	var goodCommits, badCommits atomic.Int32
	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		{
			Value:  []byte(`{"location":"A","latitude":10,"longitude":20}`),
			Topic:  "raw-water-samples",
			Commit: func(context.Context) error { goodCommits.Add(1); return nil },
		},
		{
			Value:  []byte(`{"location":"","latitude":10,"longitude":20}`),
			Topic:  "raw-water-samples",
			Offset: 1,
			Commit: func(context.Context) error { badCommits.Add(1); return nil },
		},
	}}}
	ldr := &mockLoader{fail: 1}
	metrics := newTestMetrics()

	p := pipeline.New(ext, pipeline.NewTransformer(domain.DefaultStandards(), discardLogger()), ldr, discardLogger(), metrics, 50)
	runFor(t, p, 400*time.Millisecond)

	assert.Equal(t, int32(0), goodCommits.Load(), "unloaded sample stays uncommitted for redelivery")
	assert.Equal(t, int32(1), badCommits.Load())
	assert.False(t, p.Ready())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.IngestSkips.WithLabelValues("missing_location")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.MessagesProduced), 0)
}

func TestPipeline_Run_RecoversAfterExtractError(t *testing.T) {
	ext := &mockExtractor{
		err:     errors.New("broker unavailable"),
		batches: [][]domain.RawEvent{{{Key: []byte("s-7")}}},
	}
	ldr := &mockLoader{}
	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 50)
	runFor(t, p, time.Second)

	require.Len(t, ldr.Loaded(), 1)
	assert.True(t, p.Ready())
}

func TestPipeline_Run_IntoAggregator(t *testing.T) {
	standards := domain.DefaultStandards()
	agg := aggregate.New()

	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		makeRawSample(t, "raw-water-samples", 0, map[string]any{"location": "A", "latitude": 10, "longitude": 20, "lead": 0.02}),
		makeRawSample(t, "raw-water-samples", 1, map[string]any{"location": "", "latitude": 10, "longitude": 20}),
		makeRawSample(t, "raw-water-samples", 2, map[string]any{"location": "B", "latitude": "11", "longitude": "21"}),
	}}}
	metrics := newTestMetrics()
	p := pipeline.New(ext, pipeline.NewTransformer(standards, discardLogger()), agg, discardLogger(), metrics, 50)
	runFor(t, p, 300*time.Millisecond)

	require.Equal(t, 2, agg.Len())
	board := agg.Leaderboard()
	assert.Equal(t, "B", board[0].Location)
	assert.Equal(t, "A", board[1].Location)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.IngestSkips.WithLabelValues("missing_location")), 0)
}

func TestSampleTransformer_Transform(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	tfm := pipeline.NewTransformer(domain.DefaultStandards(), discardLogger())
	raw := makeRawSample(t, "raw-water-samples", 3, map[string]any{
		"location": "Ganga Ghat", "latitude": 25.31, "longitude": 83.01, "mercury": "0.002",
	})

	s, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Ganga Ghat", s.Location)
	assert.Equal(t, 0.002, s.Metals[domain.Mercury])
	assert.Equal(t, domain.SourceStream, s.Source)
	assert.Equal(t, "2024-04-26", s.Date.String())
	assert.Equal(t, domain.ComputeIndices(s.Metals, domain.DefaultStandards()), s.Indices)
}

func TestSampleTransformer_Invalid(t *testing.T) {
	tfm := pipeline.NewTransformer(domain.DefaultStandards(), discardLogger())

	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	require.Error(t, err)

	_, err = tfm.Transform(context.Background(), makeRawSample(t, "t", 0, map[string]any{"location": "A", "latitude": 100, "longitude": 0}))
	require.ErrorIs(t, err, domain.ErrInvalidSample)
}

// --- helpers ---

func makeRawSample(t *testing.T, topic string, offset int64, fields map[string]any) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	return domain.RawEvent{
		Value:     data,
		Topic:     topic,
		Offset:    offset,
		Timestamp: time.Date(2024, time.April, 26, 12, 0, 0, 0, time.UTC),
	}
}
