// Package pipeline assesses streamed water samples: it pulls raw records in
// batches, turns each into a domain.Sample, loads the accepted samples into a
// sink and commits their offsets.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw event into an assessed sample.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.Sample, error)
}

// Pipeline runs the stream assessment loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	sink        domain.SampleSink
	logger      *slog.Logger
	metrics     *observability.Metrics
	loaded      atomic.Bool
	batchSize   int
}

// New creates a Pipeline that loads accepted samples into sink.
func New(e BatchExtractor, t Transformer, sink domain.SampleSink, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		sink:        sink,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// Ready reports whether a sample has been loaded yet.
func (p *Pipeline) Ready() bool {
	return p.loaded.Load()
}

// CheckReadiness fails until the first sample has been loaded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.loaded.Load() {
		return errors.New("pipeline has not loaded any samples yet")
	}
	return nil
}

// Run assesses batches until ctx is cancelled. A failed extract or load is
// retried after an exponential backoff; the failed batch stays uncommitted.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("stream pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	wait := initialBackoff
	for ctx.Err() == nil {
		err := p.step(ctx)
		if err == nil {
			wait = initialBackoff
			continue
		}
		if ctx.Err() != nil {
			break
		}
		p.logger.Error("stream step failed", "error", err, "retry_in", wait)
		if !retry.SleepWithContext(ctx, wait) {
			break
		}
		wait = retry.NextBackoff(wait, maxBackoff)
	}

	p.logger.Info("stream pipeline stopping", "reason", ctx.Err())
	return nil
}

// step extracts one batch, assesses it and loads what was accepted.
func (p *Pipeline) step(ctx context.Context) error {
	start := time.Now()

	raws, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if len(raws) == 0 {
		return nil
	}
	p.metrics.MessagesConsumed.Add(float64(len(raws)))
	p.metrics.BatchSize.Observe(float64(len(raws)))

	b := p.assess(ctx, raws)
	// Rejected records will never load, so their offsets go now.
	p.commit(ctx, b.rejected)
	if len(b.accepted) == 0 {
		return nil
	}

	if err := p.sink.Append(ctx, b.accepted); err != nil {
		return fmt.Errorf("load %d samples: %w", len(b.accepted), err)
	}
	p.commit(ctx, b.settled)

	p.metrics.MessagesProduced.Add(float64(len(b.accepted)))
	p.metrics.ObserveSamples(b.accepted)
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	if !p.loaded.Swap(true) {
		p.logger.Info("first samples loaded", "count", len(b.accepted))
	}
	return nil
}

// batch is one extracted slice of raw events split by the transform stage.
// settled holds the raw events behind accepted, committed once they load.
type batch struct {
	accepted []domain.Sample
	settled  []domain.RawEvent
	rejected []domain.RawEvent
}

func (p *Pipeline) assess(ctx context.Context, raws []domain.RawEvent) batch {
	b := batch{
		accepted: make([]domain.Sample, 0, len(raws)),
		settled:  make([]domain.RawEvent, 0, len(raws)),
	}
	for _, raw := range raws {
		s, err := p.transformer.Transform(ctx, raw)
		if err == nil {
			b.accepted = append(b.accepted, s)
			b.settled = append(b.settled, raw)
			continue
		}

		p.metrics.TransformErrors.Inc()
		reason := "transform_error"
		var invalid *domain.InvalidSampleError
		if errors.As(err, &invalid) {
			reason = string(invalid.Reason)
			p.metrics.IngestSkips.WithLabelValues(reason).Inc()
		}
		p.logger.Warn("stream record rejected",
			"reason", reason,
			"error", err,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		b.rejected = append(b.rejected, raw)
	}
	return b
}

func (p *Pipeline) commit(ctx context.Context, raws []domain.RawEvent) {
	for _, raw := range raws {
		if raw.Commit == nil {
			continue
		}
		if err := raw.Commit(ctx); err != nil {
			p.logger.Warn("commit offset failed", "error", err,
				"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
		}
	}
}
