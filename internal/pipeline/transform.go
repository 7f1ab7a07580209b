package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

// SampleTransformer implements Transformer by applying the tabular row rules
// to a streamed record and assessing it against the standards table.
type SampleTransformer struct {
	standards *domain.StandardsTable
	logger    *slog.Logger
}

// NewTransformer creates a SampleTransformer.
func NewTransformer(standards *domain.StandardsTable, logger *slog.Logger) *SampleTransformer {
	return &SampleTransformer{
		standards: standards,
		logger:    logger,
	}
}

func (t *SampleTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Sample, error) {
	s, err := domain.ParseRawSample(raw, t.standards)
	if err != nil {
		return domain.Sample{}, err
	}
	t.logger.Debug("sample assessed",
		"id", s.ID,
		"location", s.Location,
		"hpi", s.Indices.HPI,
	)
	return s, nil
}
