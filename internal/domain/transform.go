package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// ParseRawSample decodes a streamed sample record and builds a Sample.
//
// The message value is a flat JSON object using the same field names as the
// CSV header; values may be strings or numbers. An absent date defaults to the
// message timestamp's date. Messages that carry a topic get a deterministic
// ID, so replaying a partition yields the same sample IDs.
func ParseRawSample(raw RawEvent, t *StandardsTable) (Sample, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw.Value, &fields); err != nil {
		return Sample{}, fmt.Errorf("parse raw sample: %w", err)
	}

	rec := make(Record, len(fields))
	for k, v := range fields {
		rec[NormalizeField(k)] = stringifyField(v)
	}

	var defaultDate Date
	if !raw.Timestamp.IsZero() {
		defaultDate = DateOf(raw.Timestamp.UTC())
	}

	s, err := rec.ToSample(t, defaultDate, SourceStream)
	if err != nil {
		return Sample{}, err
	}
	if raw.Topic != "" {
		s.ID = generateID(raw.Topic, raw.Partition, raw.Offset)
	}
	return s, nil
}

func stringifyField(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case json.Number:
		return x.String()
	default:
		return ""
	}
}

// generateID produces a deterministic ID from the message coordinates.
func generateID(topic string, partition int, offset int64) string {
	input := fmt.Sprintf("%s|%d|%d", topic, partition, offset)
	hash := sha256.Sum256([]byte(input))
	return "sample-" + hex.EncodeToString(hash[:8])
}
