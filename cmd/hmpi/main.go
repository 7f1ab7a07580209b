package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/water-quality-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/water-quality-etl/internal/adapter/kafka"
	"github.com/couchcryptid/water-quality-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/water-quality-etl/internal/aggregate"
	"github.com/couchcryptid/water-quality-etl/internal/config"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/ingest"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
	"github.com/couchcryptid/water-quality-etl/internal/pipeline"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	standards, err := config.LoadStandards(cfg.StandardsFile)
	if err != nil {
		logger.Error("failed to load standards", "error", err, "path", cfg.StandardsFile)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agg := aggregate.New()
	var checks readiness
	sinks := domain.FanOut{}
	var seen domain.SeenFilter = agg

	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("failed to open sample store", "error", err, "path", cfg.SQLitePath)
			os.Exit(1)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("sample store close error", "error", err)
			}
		}()

		restored, err := store.LoadAll(ctx, standards)
		if err != nil {
			logger.Error("failed to restore samples", "error", err)
			os.Exit(1)
		}
		agg.Add(restored...)
		metrics.ObserveSamples(restored)
		logger.Info("samples restored", "count", len(restored), "path", cfg.SQLitePath)

		sinks = append(sinks, store)
		seen = store
		checks = append(checks, store)
	} else {
		logger.Info("sample persistence disabled")
	}

	// The aggregator is always the last sink so views only show stored samples.
	local := append(append(domain.FanOut{}, sinks...), agg)
	ingestor := ingest.NewIngestor(standards, local, metrics, logger, ingest.WithChunkSize(cfg.IngestChunkSize))

	var (
		p      *pipeline.Pipeline
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		// Redelivered records already held by the store (or the aggregator when
		// nothing is persisted) are dropped before publishing. The writer goes
		// first so a failed publish leaves the record unseen for the retry.
		streamed := domain.FirstSeen{
			Seen: seen,
			Next: append(append(domain.FanOut{writer}, sinks...), agg),
		}
		p = pipeline.New(reader, pipeline.NewTransformer(standards, logger), streamed, logger, metrics, cfg.BatchSize)
		checks = append(checks, p)
		logger.Info("stream pipeline enabled",
			"brokers", cfg.KafkaBrokers,
			"source_topic", cfg.KafkaSourceTopic,
			"sink_topic", cfg.KafkaSinkTopic,
		)
	} else {
		logger.Info("stream pipeline disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Standards:      standards,
		Aggregator:     agg,
		Ingestor:       ingestor,
		Sink:           local,
		Ready:          checks,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ReportSchedule, func() { snapshot(agg, metrics, logger) }); err != nil {
		logger.Error("invalid report schedule", "error", err, "schedule", cfg.ReportSchedule)
		os.Exit(1)
	}
	scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if p != nil {
		g.Go(func() error { return p.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		<-scheduler.Stop().Done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
	}

	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// snapshot publishes the current quality distribution as gauges and logs the
// collection summary.
func snapshot(agg *aggregate.Aggregator, metrics *observability.Metrics, logger *slog.Logger) {
	report := agg.Report()
	metrics.RecordDistribution(report.Distribution, report.Total)
	metrics.ReportSnapshots.Inc()
	logger.Info("report snapshot",
		"total", report.Total,
		"average_hpi", report.Summary.AverageHPI,
		"immediate_attention", len(report.Priorities.Immediate),
		"enhanced_monitoring", len(report.Priorities.Monitoring),
	)
}

// readiness reports ready only when every check passes. An empty set is
// always ready.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
