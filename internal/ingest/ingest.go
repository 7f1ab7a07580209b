// Package ingest turns tabular sample input into assessed samples. Rows are
// processed independently in bounded chunks: a bad row is skipped and
// counted, and only a header without the required fields fails the batch.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
)

// DefaultChunkSize is the number of rows processed between yield points.
const DefaultChunkSize = 100

// ErrMissingRequiredFields fails a batch whose header lacks a required field.
var ErrMissingRequiredFields = errors.New("missing required fields")

// MissingFieldsError names the required fields absent from a header.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingRequiredFields, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Unwrap() error {
	return ErrMissingRequiredFields
}

// RowSkip records a data row that was excluded. Row is 1-based and does not
// count the header.
type RowSkip struct {
	Row    int               `json:"row"`
	Reason domain.SkipReason `json:"reason"`
}

// Result summarizes a finished or interrupted ingestion.
type Result struct {
	Accepted int       `json:"accepted"`
	Skipped  int       `json:"skipped"`
	Total    int       `json:"total"`
	Skips    []RowSkip `json:"skips"`
}

// Empty reports whether no sample was accepted.
func (r Result) Empty() bool {
	return r.Accepted == 0
}

// Progress is the checkpoint emitted after each chunk.
type Progress struct {
	Processed int  `json:"processed"`
	Total     int  `json:"total"`
	Accepted  int  `json:"accepted"`
	Skipped   int  `json:"skipped"`
	Done      bool `json:"done"`
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithChunkSize sets the number of rows per chunk. Values below 1 are ignored.
func WithChunkSize(n int) Option {
	return func(i *Ingestor) {
		if n > 0 {
			i.chunkSize = n
		}
	}
}

// WithProgress registers a callback invoked by Ingest after every chunk.
func WithProgress(fn func(Progress)) Option {
	return func(i *Ingestor) {
		i.onProgress = fn
	}
}

// Ingestor validates rows against the standards table and appends accepted
// samples to its sink, one Append per chunk.
type Ingestor struct {
	standards  *domain.StandardsTable
	sink       domain.SampleSink
	metrics    *observability.Metrics
	logger     *slog.Logger
	chunkSize  int
	onProgress func(Progress)
}

// NewIngestor creates an Ingestor.
func NewIngestor(standards *domain.StandardsTable, sink domain.SampleSink, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Ingestor {
	i := &Ingestor{
		standards: standards,
		sink:      sink,
		metrics:   metrics,
		logger:    logger,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Start validates the header and returns a resumable job over the data rows.
// A header-only table yields a job that is already done.
func (i *Ingestor) Start(tbl Table) (*Job, error) {
	columns := make(map[string]int)
	header := tbl.Header()
	for idx, name := range header {
		key := domain.NormalizeField(name)
		if _, seen := columns[key]; !seen {
			columns[key] = idx
		}
	}

	var missing []string
	for _, f := range domain.RequiredFields {
		if _, ok := columns[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		i.metrics.IngestBatches.WithLabelValues("missing_fields").Inc()
		return nil, &MissingFieldsError{Fields: missing}
	}

	return &Job{
		ingestor: i,
		header:   header,
		columns:  columns,
		rows:     tbl.Rows(),
		date:     domain.Today(),
		result:   Result{Total: len(tbl.Rows()), Skips: []RowSkip{}},
	}, nil
}

// Ingest runs a job to completion, checking ctx between chunks. On
// cancellation or a sink failure it returns the partial result with the error.
func (i *Ingestor) Ingest(ctx context.Context, tbl Table) (Result, error) {
	job, err := i.Start(tbl)
	if err != nil {
		return Result{}, err
	}

	for {
		if err := ctx.Err(); err != nil {
			i.metrics.IngestBatches.WithLabelValues("canceled").Inc()
			i.logger.Warn("ingestion canceled", "processed", job.next, "total", job.result.Total)
			return job.Result(), fmt.Errorf("ingest canceled: %w", err)
		}

		p, err := job.Step(ctx)
		if err != nil {
			i.metrics.IngestBatches.WithLabelValues("error").Inc()
			i.logger.Error("ingestion failed", "error", err, "processed", p.Processed)
			return job.Result(), err
		}
		if i.onProgress != nil {
			i.onProgress(p)
		}
		if p.Done {
			break
		}
	}

	res := job.Result()
	outcome := "ok"
	if res.Empty() {
		outcome = "empty"
	}
	i.metrics.IngestBatches.WithLabelValues(outcome).Inc()
	i.logger.Info("ingestion complete",
		"accepted", res.Accepted,
		"skipped", res.Skipped,
		"total", res.Total,
	)
	return res, nil
}

// Job is a resumable ingestion over one table. It is not safe for concurrent
// use; the caller decides when to run the next chunk.
type Job struct {
	ingestor *Ingestor
	header   []string
	columns  map[string]int
	rows     [][]string
	date     domain.Date
	next     int
	result   Result
}

// Step processes the next chunk and appends its accepted samples to the
// sink. A sink failure leaves the chunk's rows unaccounted and the job
// positioned after them.
func (j *Job) Step(ctx context.Context) (Progress, error) {
	if j.next >= len(j.rows) {
		return j.progress(), nil
	}

	start := time.Now()
	end := min(j.next+j.ingestor.chunkSize, len(j.rows))

	samples := make([]domain.Sample, 0, end-j.next)
	var skips []RowSkip
	for idx := j.next; idx < end; idx++ {
		s, reason, ok := j.row(j.rows[idx])
		if !ok {
			skips = append(skips, RowSkip{Row: idx + 1, Reason: reason})
			continue
		}
		samples = append(samples, s)
	}
	j.next = end

	if len(samples) > 0 {
		if err := j.ingestor.sink.Append(ctx, samples); err != nil {
			return j.progress(), fmt.Errorf("append chunk: %w", err)
		}
	}

	m := j.ingestor.metrics
	m.IngestRows.WithLabelValues("accepted").Add(float64(len(samples)))
	m.IngestRows.WithLabelValues("skipped").Add(float64(len(skips)))
	for _, s := range skips {
		m.IngestSkips.WithLabelValues(string(s.Reason)).Inc()
		j.ingestor.logger.Debug("row skipped", "row", s.Row, "reason", s.Reason)
	}
	m.ObserveSamples(samples)
	m.IngestChunkDuration.Observe(time.Since(start).Seconds())

	j.result.Accepted += len(samples)
	j.result.Skipped += len(skips)
	j.result.Skips = append(j.result.Skips, skips...)
	return j.progress(), nil
}

// Result returns the counts accumulated so far.
func (j *Job) Result() Result {
	res := j.result
	res.Skips = append([]RowSkip{}, j.result.Skips...)
	return res
}

func (j *Job) progress() Progress {
	return Progress{
		Processed: j.next,
		Total:     len(j.rows),
		Accepted:  j.result.Accepted,
		Skipped:   j.result.Skipped,
		Done:      j.next >= len(j.rows),
	}
}

func (j *Job) row(values []string) (domain.Sample, domain.SkipReason, bool) {
	if values == nil {
		return domain.Sample{}, domain.SkipMalformedRow, false
	}
	if len(values) < len(j.header) {
		return domain.Sample{}, domain.SkipTooFewValues, false
	}

	fields := make(map[string]string, len(j.columns))
	for key, idx := range j.columns {
		fields[key] = strings.TrimSpace(values[idx])
	}

	s, err := domain.Record(fields).ToSample(j.ingestor.standards, j.date, domain.SourceCSV)
	if err != nil {
		var invalid *domain.InvalidSampleError
		if errors.As(err, &invalid) {
			return domain.Sample{}, invalid.Reason, false
		}
		return domain.Sample{}, domain.SkipMalformedRow, false
	}
	return s, "", true
}
