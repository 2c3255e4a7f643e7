package application

import (
	"context"

	monitoring "coldrig-monitor/internal/monitoring/domain"
)

// RecordSource is the stream contract sessions drain.
type RecordSource = monitoring.RecordSource

// ErrSourceExhausted aliases the domain sentinel for callers of this package.
var ErrSourceExhausted = monitoring.ErrSourceExhausted

// SliceSource replays a fixed record slice. Used for tests and small files
// already parsed in memory.
type SliceSource struct {
	records []monitoring.Record
	pos     int
}

// NewSliceSource constructs a source over records.
func NewSliceSource(records []monitoring.Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record or ErrSourceExhausted.
func (s *SliceSource) Next(ctx context.Context) (monitoring.Record, error) {
	if err := ctx.Err(); err != nil {
		return monitoring.Record{}, err
	}
	if s.pos >= len(s.records) {
		return monitoring.Record{}, ErrSourceExhausted
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

// ChannelSource adapts a live feed pushed through a channel. Closing the
// channel ends the stream.
type ChannelSource struct {
	ch <-chan monitoring.Record
}

// NewChannelSource constructs a source reading from ch.
func NewChannelSource(ch <-chan monitoring.Record) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// Next blocks until a record arrives, the channel closes, or ctx is done.
func (s *ChannelSource) Next(ctx context.Context) (monitoring.Record, error) {
	select {
	case rec, ok := <-s.ch:
		if !ok {
			return monitoring.Record{}, ErrSourceExhausted
		}
		return rec, nil
	case <-ctx.Done():
		return monitoring.Record{}, ctx.Err()
	}
}
