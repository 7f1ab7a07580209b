package observability

import (
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hmpi"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion,
// assessment, and the stream pipeline.
type Metrics struct {
	// Stream pipeline metrics.
	MessagesConsumed        prometheus.Counter
	MessagesProduced        prometheus.Counter
	TransformErrors         prometheus.Counter
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Tabular ingestion metrics.
	IngestRows          *prometheus.CounterVec // labels: outcome={accepted,skipped}
	IngestSkips         *prometheus.CounterVec // labels: reason
	IngestBatches       *prometheus.CounterVec // labels: outcome={ok,empty,missing_fields,canceled,error}
	IngestChunkDuration prometheus.Histogram

	// Assessment metrics.
	SampleHPI       prometheus.Histogram
	SamplesStored   prometheus.Gauge
	QualityBand     *prometheus.GaugeVec // labels: index={hpi,hei,cd}, band
	ReportSnapshots prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry creates all metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total assessed samples loaded from the stream.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total stream records rejected during transformation.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the stream pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		IngestRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_total",
			Help:      "Tabular rows processed by outcome.",
		}, []string{"outcome"}),
		IngestSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_skips_total",
			Help:      "Tabular rows skipped by reason.",
		}, []string{"reason"}),
		IngestBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_batches_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		IngestChunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_chunk_duration_seconds",
			Help:      "Duration of one ingestion chunk including its sink append.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		SampleHPI: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sample_hpi",
			Help:      "HPI of accepted samples.",
			Buckets:   []float64{15, 30, 45, 60, 100, 200, 500},
		}),
		SamplesStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples",
			Help:      "Samples currently held by the aggregator.",
		}),
		QualityBand: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_band_samples",
			Help:      "Samples per quality band at the last snapshot.",
		}, []string{"index", "band"}),
		ReportSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_snapshots_total",
			Help:      "Scheduled report snapshots taken.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.MessagesConsumed,
			m.MessagesProduced,
			m.TransformErrors,
			m.PipelineRunning,
			m.BatchSize,
			m.BatchProcessingDuration,
			m.IngestRows,
			m.IngestSkips,
			m.IngestBatches,
			m.IngestChunkDuration,
			m.SampleHPI,
			m.SamplesStored,
			m.QualityBand,
			m.ReportSnapshots,
		)
	}

	return m
}

// ObserveSamples records the HPI of newly accepted samples.
func (m *Metrics) ObserveSamples(samples []domain.Sample) {
	for _, s := range samples {
		m.SampleHPI.Observe(s.Indices.HPI)
	}
}

// RecordDistribution publishes per-band counts and the collection size.
// Every band of every index is set so bands that emptied read 0.
func (m *Metrics) RecordDistribution(dist map[domain.Index]map[domain.Band]int, total int) {
	m.SamplesStored.Set(float64(total))
	for index, bands := range map[domain.Index][]domain.Band{
		domain.IndexHPI: domain.HPIBands,
		domain.IndexHEI: domain.HEIBands,
		domain.IndexCd:  domain.CdBands,
	} {
		for _, b := range bands {
			m.QualityBand.WithLabelValues(string(index), string(b)).Set(float64(dist[index][b]))
		}
	}
}
