package notify

import (
	"context"
	"log"
	"time"

	monitoring "coldrig-monitor/internal/monitoring/domain"
)

// AlarmStore persists alarm events.
type AlarmStore interface {
	Insert(ctx context.Context, sessionID string, alarm monitoring.AlarmEvent) error
}

// StoreNotifier mirrors every alarm into a persistent event log. Failures are
// logged and dropped; persistence must not stall ingestion.
type StoreNotifier struct {
	store   AlarmStore
	logger  *log.Logger
	timeout time.Duration
}

// NewStoreNotifier constructs a store notifier.
func NewStoreNotifier(store AlarmStore, logger *log.Logger) *StoreNotifier {
	return &StoreNotifier{store: store, logger: logger, timeout: 5 * time.Second}
}

// Notify implements application.AlarmNotifier.
func (n *StoreNotifier) Notify(ctx context.Context, sessionID string, alarm monitoring.AlarmEvent) {
	if n == nil || n.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.store.Insert(ctx, sessionID, alarm); err != nil && n.logger != nil {
		n.logger.Printf("alarm store: insert %s: %v", alarm.ID, err)
	}
}
