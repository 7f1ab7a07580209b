package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLocation = "Sample Location 1"

func TestRecord_ToSample(t *testing.T) {
	freezeClock(t, time.Date(2024, time.March, 2, 12, 0, 0, 0, time.UTC))
	tbl := DefaultStandards()

	t.Run("full row", func(t *testing.T) {
		rec := NewRecord(map[string]string{
			"Location": testLocation, " LATITUDE ": "18.5204", "longitude": "73.8567",
			"date": "2024-01-15", "lead": "0.005", "mercury": "0.002", "cadmium": "0.001",
			"arsenic": "0.008", "chromium": "0.02", "copper": "0.1", "zinc": "0.5", "nickel": "0.03",
		})
		s, err := rec.ToSample(tbl, Date{}, SourceCSV)
		require.NoError(t, err)

		assert.Equal(t, testLocation, s.Location)
		assert.Equal(t, 18.5204, s.Latitude)
		assert.Equal(t, 73.8567, s.Longitude)
		assert.Equal(t, "2024-01-15", s.Date.String())
		assert.Equal(t, SourceCSV, s.Source)
		assert.Equal(t, 0.005, s.Metals[Lead])
		assert.Equal(t, 0.03, s.Metals[Nickel])
	})

	t.Run("defaults", func(t *testing.T) {
		rec := NewRecord(map[string]string{
			"location": "B", "latitude": "11", "longitude": "21", "date": "15/01/2024", "lead": "abc",
		})
		s, err := rec.ToSample(tbl, Date{}, SourceCSV)
		require.NoError(t, err)
		assert.Equal(t, "2024-03-02", s.Date.String(), "unparsable date falls back to today")
		assert.Equal(t, Concentrations{}, s.Metals)
	})

	t.Run("skips", func(t *testing.T) {
		tests := []struct {
			name   string
			fields map[string]string
			reason SkipReason
		}{
			{"empty location", map[string]string{"location": "", "latitude": "1", "longitude": "2"}, SkipMissingLocation},
			{"bad latitude", map[string]string{"location": "A", "latitude": "north", "longitude": "2"}, SkipInvalidCoordinates},
			{"missing longitude", map[string]string{"location": "A", "latitude": "1"}, SkipInvalidCoordinates},
		}
		for _, tt := range tests {
			_, err := NewRecord(tt.fields).ToSample(tbl, Date{}, SourceCSV)
			var invalid *InvalidSampleError
			require.ErrorAs(t, err, &invalid, tt.name)
			assert.Equal(t, tt.reason, invalid.Reason, tt.name)
		}
	})
}

func TestParseRawSample(t *testing.T) {
	tbl := DefaultStandards()
	msgTime := time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)

	t.Run("mixed string and number fields", func(t *testing.T) {
		raw := RawEvent{
			Value:     []byte(`{"Location":"Ganga Ghat","latitude":25.31,"longitude":"83.01","lead":0.02,"Zinc":"0.5"}`),
			Topic:     "raw-water-samples",
			Partition: 1,
			Offset:    42,
			Timestamp: msgTime,
		}
		s, err := ParseRawSample(raw, tbl)
		require.NoError(t, err)

		assert.Equal(t, "Ganga Ghat", s.Location)
		assert.Equal(t, 25.31, s.Latitude)
		assert.Equal(t, 0.02, s.Metals[Lead])
		assert.Equal(t, 0.5, s.Metals[Zinc])
		assert.Equal(t, "2024-04-26", s.Date.String(), "date comes from the message timestamp")
		assert.Equal(t, SourceStream, s.Source)
		assert.True(t, strings.HasPrefix(s.ID, "sample-"))

		again, err := ParseRawSample(raw, tbl)
		require.NoError(t, err)
		assert.Equal(t, s.ID, again.ID, "replayed message keeps its ID")

		raw.Offset = 43
		other, err := ParseRawSample(raw, tbl)
		require.NoError(t, err)
		assert.NotEqual(t, s.ID, other.ID)
	})

	t.Run("explicit date wins", func(t *testing.T) {
		raw := RawEvent{
			Value:     []byte(`{"location":"A","latitude":"1","longitude":"2","date":"2024-01-01"}`),
			Timestamp: msgTime,
		}
		s, err := ParseRawSample(raw, tbl)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-01", s.Date.String())
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseRawSample(RawEvent{Value: []byte("{invalid json")}, tbl)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse raw sample")
	})

	t.Run("missing coordinates", func(t *testing.T) {
		_, err := ParseRawSample(RawEvent{Value: []byte(`{"location":"A"}`)}, tbl)
		require.ErrorIs(t, err, ErrInvalidSample)
	})
}
