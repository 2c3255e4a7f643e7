package labels

import (
	"context"

	monitoring "coldrig-monitor/internal/monitoring/domain"
)

// Source decorates a record source, rewriting channel-keyed values into
// label-keyed values before they reach rule evaluation.
type Source struct {
	inner   monitoring.RecordSource
	mapping *Mapping
}

// NewSource wraps inner with mapping. A nil mapping passes records through
// unchanged.
func NewSource(inner monitoring.RecordSource, mapping *Mapping) *Source {
	return &Source{inner: inner, mapping: mapping}
}

func (s *Source) Next(ctx context.Context) (monitoring.Record, error) {
	rec, err := s.inner.Next(ctx)
	if err != nil {
		return monitoring.Record{}, err
	}
	rec.Values = s.mapping.Rename(rec.Values)
	return rec, nil
}
