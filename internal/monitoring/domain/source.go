package monitoring

import (
	"context"
	"errors"
)

// ErrSourceExhausted is returned by a RecordSource when its stream ends.
// A session draining an exhausted source transitions to stopped, not error.
var ErrSourceExhausted = errors.New("monitor: record source exhausted")

// RecordSource produces an ordered, possibly unbounded sequence of records:
// finite for file replay, open-ended for a live feed. Implementations must
// preserve timestamp order; the consumer never reorders or batches.
type RecordSource interface {
	Next(ctx context.Context) (Record, error)
}
