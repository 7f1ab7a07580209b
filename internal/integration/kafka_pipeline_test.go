//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/adapter/kafka"
	"github.com/couchcryptid/water-quality-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/water-quality-etl/internal/aggregate"
	"github.com/couchcryptid/water-quality-etl/internal/config"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
	"github.com/couchcryptid/water-quality-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-raw-samples"
	testSinkTopic   = "test-assessed-samples"
)

// assessedMessage holds a deserialized message read from the sink topic.
type assessedMessage struct {
	Sample  domain.SampleView
	Key     string
	Headers map[string]string
}

// readAssessed reads a single message from the sink consumer and deserializes it.
func readAssessed(ctx context.Context, t *testing.T, consumer *kafkago.Reader) assessedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var view domain.SampleView
	require.NoError(t, json.Unmarshal(msg.Value, &view), "unmarshal sink message")

	return assessedMessage{
		Sample:  view,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func newProducer(t *testing.T, broker string) *kafkago.Writer {
	t.Helper()
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	return producer
}

func newSinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader extracts a raw
// record and kafka.Writer publishes the assessed sample.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	record := loadMockData(t)[0] // Yamuna Ghat, 2024-01-10
	payload, err := json.Marshal(record)
	require.NoError(t, err)

	require.NoError(t, newProducer(t, broker).WriteMessages(ctx, kafkago.Message{
		Key:   []byte("test-key"),
		Value: payload,
		Time:  time.Date(2024, time.January, 11, 0, 0, 0, 0, time.UTC),
	}))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("test-key"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	standards := domain.DefaultStandards()
	sample, err := pipeline.NewTransformer(standards, discardLogger()).Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.Append(ctx, []domain.Sample{sample}))

	am := readAssessed(ctx, t, newSinkConsumer(t, broker))
	assert.Equal(t, sample.ID, am.Key)
	assert.Equal(t, string(sample.Bands().HPI), am.Headers["hpi_band"])
	_, err = time.Parse(time.RFC3339, am.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	assert.Equal(t, "Yamuna Ghat", am.Sample.Location)
	assert.Equal(t, "2024-01-10", am.Sample.Date.String())
	assert.Equal(t, domain.SourceStream, am.Sample.Source)
	assert.InDelta(t, sample.Indices.HPI, am.Sample.Indices.HPI, 1e-9)
	assert.Equal(t, sample.Bands(), am.Sample.Quality)
}

// TestPipelineEndToEnd wires the full pipeline (Reader → Transformer → store,
// Writer, Aggregator) with real Kafka and verifies every mock record arrives
// assessed on the sink topic and in the local views.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	records := loadMockData(t)
	msgs := make([]kafkago.Message, 0, len(records))
	for i, rec := range records {
		payload, err := json.Marshal(rec)
		require.NoError(t, err)
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(fmt.Sprintf("record-%d", i)),
			Value: payload,
			Time:  time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	require.NoError(t, newProducer(t, broker).WriteMessages(ctx, msgs...))

	standards := domain.DefaultStandards()

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "samples.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	agg := aggregate.New()

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, pipeline.NewTransformer(standards, discardLogger()),
		domain.FirstSeen{Seen: store, Next: domain.FanOut{writer, store, agg}}, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := newSinkConsumer(t, broker)
	received := make([]assessedMessage, 0, len(records))
	for len(received) < len(records) {
		received = append(received, readAssessed(ctx, t, consumer))
	}

	pipelineCancel()
	require.NoError(t, <-errCh)
	assert.True(t, p.Ready())

	ids := make(map[string]bool, len(received))
	for _, am := range received {
		assert.NotEmpty(t, am.Headers["hpi_band"], "missing hpi_band header")
		assert.Equal(t, am.Sample.ID, am.Key)
		assert.Equal(t, domain.ComputeIndices(am.Sample.Metals, standards).Rounded(), am.Sample.Indices.Rounded())
		ids[am.Sample.ID] = true
	}
	assert.Len(t, ids, len(records), "sample IDs are unique")

	assert.Equal(t, len(records), agg.Len())
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(records), n)

	restored, err := store.LoadAll(ctx, standards)
	require.NoError(t, err)
	require.Len(t, restored, len(records))
	for i, s := range agg.Samples() {
		assert.Equal(t, s.ID, restored[i].ID, "store keeps arrival order")
	}
}

// TestPipelineTransformError verifies that an undecodable message and a record
// without a location are skipped and the pipeline keeps processing.
func TestPipelineTransformError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-poison")

	records := loadMockData(t)
	validPayload, err := json.Marshal(records[0])
	require.NoError(t, err)
	noLocation, err := json.Marshal(map[string]string{"Latitude": "10", "Longitude": "10", "Lead": "0.5"})
	require.NoError(t, err)

	require.NoError(t, newProducer(t, broker).WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("nameless"), Value: noLocation},
		kafkago.Message{Key: []byte("good"), Value: validPayload},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, pipeline.NewTransformer(domain.DefaultStandards(), discardLogger()),
		writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	// Only the valid record should appear on the sink topic.
	consumer := newSinkConsumer(t, broker)
	am := readAssessed(ctx, t, consumer)
	assert.Equal(t, records[0]["Location"], am.Sample.Location)

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
