package dat

import (
	"context"
	"errors"
	"io"
	"os"

	monitoring "coldrig-monitor/internal/monitoring/domain"
)

// ReplaySource streams records out of a .dat capture. Incremental: it can
// resume from a saved byte offset, and a trailing partial record (a write in
// progress when replay caught up) ends the stream cleanly rather than
// erroring.
type ReplaySource struct {
	r             io.ReadCloser
	workstationID string
	pos           int64
}

// ReplayOption customizes a replay source.
type ReplayOption func(*ReplaySource)

// WithStartOffset resumes reading at a byte offset from a previous replay.
func WithStartOffset(offset int64) ReplayOption {
	return func(s *ReplaySource) {
		if offset > 0 {
			s.pos = offset
		}
	}
}

// OpenReplay opens a .dat file for replay.
func OpenReplay(path, workstationID string, opts ...ReplayOption) (*ReplaySource, error) {
	if path == "" {
		return nil, errors.New("dat: empty path")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	source := &ReplaySource{r: file, workstationID: workstationID}
	for _, opt := range opts {
		opt(source)
	}
	if source.pos > 0 {
		if _, err := file.Seek(source.pos, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}
	return source, nil
}

// NewReplaySource wraps an already-open stream. The caller owns alignment of
// the stream start with a record boundary.
func NewReplaySource(r io.ReadCloser, workstationID string) *ReplaySource {
	return &ReplaySource{r: r, workstationID: workstationID}
}

// Next returns the next decoded record. Returns monitoring.ErrSourceExhausted
// at end of capture.
func (s *ReplaySource) Next(ctx context.Context) (monitoring.Record, error) {
	if err := ctx.Err(); err != nil {
		return monitoring.Record{}, err
	}
	buf := make([]byte, RecordBytes)
	_, err := io.ReadFull(s.r, buf)
	switch {
	case err == nil:
		rec, perr := ParseRecord(buf, s.workstationID, s.pos)
		if perr != nil {
			return monitoring.Record{}, perr
		}
		s.pos += RecordBytes
		return rec, nil
	case errors.Is(err, io.EOF):
		return monitoring.Record{}, monitoring.ErrSourceExhausted
	case errors.Is(err, io.ErrUnexpectedEOF):
		// Tail write still in flight; stop at the last whole record.
		return monitoring.Record{}, monitoring.ErrSourceExhausted
	default:
		return monitoring.Record{}, err
	}
}

// Offset returns the byte position after the last fully parsed record,
// suitable for WithStartOffset on a later replay.
func (s *ReplaySource) Offset() int64 {
	return s.pos
}

// Close releases the underlying stream.
func (s *ReplaySource) Close() error {
	if s == nil || s.r == nil {
		return nil
	}
	return s.r.Close()
}
