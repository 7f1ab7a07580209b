package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/robfig/cron/v3"
)

const (
	defaultChunkSize      = 100
	maxChunkSize          = 10000
	defaultMaxUploadBytes = 5 << 20
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Assessment and ingestion.
	StandardsFile   string
	IngestChunkSize int
	MaxUploadBytes  int64
	SQLitePath      string
	ReportSchedule  string

	// Stream pipeline.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	chunkSize, err := parseChunkSize()
	if err != nil {
		return nil, err
	}

	maxUpload, err := parseMaxUploadBytes()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		StandardsFile:   os.Getenv("STANDARDS_FILE"),
		IngestChunkSize: chunkSize,
		MaxUploadBytes:  maxUpload,
		SQLitePath:      os.Getenv("SQLITE_PATH"),
		ReportSchedule:  sharedcfg.EnvOrDefault("REPORT_SCHEDULE", "@every 1m"),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-water-samples"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "assessed-water-samples"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "water-quality-etl"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if _, err := cron.ParseStandard(cfg.ReportSchedule); err != nil {
		return nil, fmt.Errorf("invalid REPORT_SCHEDULE: %w", err)
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

func parseChunkSize() (int, error) {
	s := os.Getenv("INGEST_CHUNK_SIZE")
	if s == "" {
		return defaultChunkSize, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxChunkSize {
		return 0, fmt.Errorf("invalid INGEST_CHUNK_SIZE %q: must be 1..%d", s, maxChunkSize)
	}
	return n, nil
}

func parseMaxUploadBytes() (int64, error) {
	s := os.Getenv("MAX_UPLOAD_BYTES")
	if s == "" {
		return defaultMaxUploadBytes, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid MAX_UPLOAD_BYTES %q", s)
	}
	return n, nil
}
