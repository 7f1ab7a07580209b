package observability

import (
	"testing"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsWithRegistry_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.IngestRows.WithLabelValues("accepted").Add(3)
	m.MessagesConsumed.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["hmpi_ingest_rows_total"])
	assert.True(t, names["hmpi_messages_consumed_total"])
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.IngestRows.WithLabelValues("accepted")), 0)
}

func TestNewMetricsForTesting_Isolated(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetricsForTesting()
		NewMetricsForTesting()
	})
}

func TestRecordDistribution(t *testing.T) {
	m := NewMetricsForTesting()

	m.RecordDistribution(map[domain.Index]map[domain.Band]int{
		domain.IndexHPI: {domain.BandExcellent: 2, domain.BandVeryPoor: 1},
	}, 3)

	assert.InDelta(t, 3.0, testutil.ToFloat64(m.SamplesStored), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.QualityBand.WithLabelValues("hpi", "Excellent")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.QualityBand.WithLabelValues("hpi", "Good")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.QualityBand.WithLabelValues("cd", "High")), 0)
}
