package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	monitoring "coldrig-monitor/internal/monitoring/domain"
	"coldrig-monitor/internal/monitoring/engine"
	"coldrig-monitor/internal/observability/metrics"
)

// Session lifecycle errors.
var (
	ErrInvalidState  = errors.New("monitor: operation invalid for session state")
	ErrAlarmNotFound = errors.New("monitor: alarm not found")
)

// Status is the lifecycle state of a monitoring session.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
)

// Statistics are the running counters of a session.
type Statistics struct {
	RecordsProcessed int64   `json:"records_processed"`
	AlarmsGenerated  int64   `json:"alarms_generated"`
	ProcessingSpeed  float64 `json:"processing_speed"`
}

// Snapshot is a point-in-time view of a session, safe to serialize.
type Snapshot struct {
	SessionID     string                  `json:"session_id"`
	WorkstationID string                  `json:"workstation_id"`
	Status        Status                  `json:"status"`
	StartedAt     time.Time               `json:"started_at"`
	StoppedAt     time.Time               `json:"stopped_at"`
	Statistics    Statistics              `json:"statistics"`
	RecentAlarms  []monitoring.AlarmEvent `json:"recent_alarms"`
	AlarmSummary  monitoring.AlarmSummary `json:"alarm_summary"`
	LastError     string                  `json:"last_error,omitempty"`
}

// AlarmNotifier receives every emitted alarm. Implementations must not
// block; the session calls them outside its lock but on the ingest path.
type AlarmNotifier interface {
	Notify(ctx context.Context, sessionID string, alarm monitoring.AlarmEvent)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Session is the state machine coordinating one test run: it drains a record
// source with a single worker, drives the rule engine per record, owns the
// alarm log and statistics, and answers status polls concurrently with
// ingestion. Sessions never share engines or trackers.
type Session struct {
	id            string
	workstationID string
	recent        int

	mu        sync.Mutex
	status    Status
	startedAt time.Time
	stoppedAt time.Time
	stats     Statistics
	alarms    []monitoring.AlarmEvent
	lastErr   string

	engine   *engine.Engine
	notifier AlarmNotifier
	clock    Clock
	logger   *log.Logger

	cancel context.CancelFunc
	done   chan struct{}
	worker bool
}

// SessionOption customizes a session.
type SessionOption func(*Session)

// WithNotifier assigns an alarm notifier.
func WithNotifier(notifier AlarmNotifier) SessionOption {
	return func(s *Session) {
		s.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) SessionOption {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithSessionLogger assigns a logger.
func WithSessionLogger(logger *log.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRecentAlarms sets how many alarms a status snapshot carries.
func WithRecentAlarms(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.recent = n
		}
	}
}

const defaultRecentAlarms = 10

// NewSession constructs an idle session around its own engine.
func NewSession(id, workstationID string, eng *engine.Engine, opts ...SessionOption) (*Session, error) {
	if id == "" {
		return nil, errors.New("monitor: empty session id")
	}
	if eng == nil {
		return nil, errors.New("monitor: nil engine")
	}
	session := &Session{
		id:            id,
		workstationID: workstationID,
		recent:        defaultRecentAlarms,
		status:        StatusIdle,
		engine:        eng,
		clock:         systemClock{},
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(session)
	}
	return session, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// WorkstationID returns the workstation this session monitors.
func (s *Session) WorkstationID() string { return s.workstationID }

// Start transitions idle to running. With a non-nil source a single worker
// goroutine drains it; with a nil source the session only accepts pushed
// records via Ingest.
func (s *Session) Start(source RecordSource) error {
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.status = StatusRunning
	s.startedAt = s.clock.Now()
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.worker = source != nil
	s.mu.Unlock()

	if source == nil {
		return nil
	}
	go s.drain(ctx, source)
	return nil
}

// drain is the session's single worker: it pulls records strictly in stream
// order and pushes each through Ingest. In-flight evaluation of the current
// record always completes; stop only halts intake.
func (s *Session) drain(ctx context.Context, source RecordSource) {
	defer close(s.done)
	for {
		rec, err := source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrSourceExhausted):
				_ = s.Stop()
			case errors.Is(err, context.Canceled):
				// Stop already moved the session out of running.
			default:
				s.fail(err)
			}
			return
		}
		if err := s.Ingest(rec); err != nil {
			if errors.Is(err, ErrInvalidState) {
				return
			}
			s.fail(err)
			return
		}
	}
}

// Ingest evaluates one record. Valid only while running.
func (s *Session) Ingest(rec monitoring.Record) error {
	s.mu.Lock()
	if s.status != StatusRunning {
		s.mu.Unlock()
		return ErrInvalidState
	}
	started := s.clock.Now()
	alarms := s.engine.EvaluateRecord(rec)

	s.stats.RecordsProcessed++
	s.stats.AlarmsGenerated += int64(len(alarms))
	if elapsed := started.Sub(s.startedAt).Seconds(); elapsed > 0 {
		s.stats.ProcessingSpeed = float64(s.stats.RecordsProcessed) / elapsed
	} else {
		s.stats.ProcessingSpeed = float64(s.stats.RecordsProcessed)
	}
	s.alarms = append(s.alarms, alarms...)
	notifier := s.notifier
	s.mu.Unlock()

	metrics.AddRecordsProcessed(rec.WorkstationID, 1)
	for _, alarm := range alarms {
		metrics.IncAlarm(string(alarm.Severity))
		if notifier != nil {
			notifier.Notify(context.Background(), s.id, alarm)
		}
	}
	return nil
}

// Stop halts intake. Idempotent: stopping a stopped session is a no-op
// success. Never blocks a concurrent status poll.
func (s *Session) Stop() error {
	s.mu.Lock()
	switch s.status {
	case StatusStopped, StatusError:
		s.mu.Unlock()
		return nil
	case StatusIdle, StatusRunning:
		s.status = StatusStopped
		s.stoppedAt = s.clock.Now()
		if !s.worker {
			close(s.done)
		}
	}
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// fail moves a running session to error on an unrecoverable ingestion fault.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.status == StatusRunning {
		s.status = StatusError
		s.stoppedAt = s.clock.Now()
		s.lastErr = err.Error()
		if !s.worker {
			close(s.done)
		}
	}
	cancel := s.cancel
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Printf("session %s failed: %v", s.id, err)
	}
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the session reaches a terminal state. Sourced sessions
// release when the worker goroutine exits; push-mode sessions release once
// stopped.
func (s *Session) Wait() {
	<-s.done
}

// Status returns a snapshot with the last N alarms. Safe from any state and
// never mutates.
func (s *Session) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := s.alarms
	if len(recent) > s.recent {
		recent = recent[len(recent)-s.recent:]
	}
	recentCopy := make([]monitoring.AlarmEvent, len(recent))
	copy(recentCopy, recent)

	return Snapshot{
		SessionID:     s.id,
		WorkstationID: s.workstationID,
		Status:        s.status,
		StartedAt:     s.startedAt,
		StoppedAt:     s.stoppedAt,
		Statistics:    s.stats,
		RecentAlarms:  recentCopy,
		AlarmSummary:  monitoring.Summarize(s.alarms),
		LastError:     s.lastErr,
	}
}

// Alarms returns the ordered alarm log, optionally filtered to events at or
// after since.
func (s *Session) Alarms(since time.Time) []monitoring.AlarmEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]monitoring.AlarmEvent, 0, len(s.alarms))
	for _, alarm := range s.alarms {
		if !since.IsZero() && alarm.Timestamp.Before(since) {
			continue
		}
		result = append(result, alarm)
	}
	return result
}

// AckAlarm marks an active alarm acknowledged.
func (s *Session) AckAlarm(alarmID, user string) (*monitoring.AlarmEvent, error) {
	return s.transitionAlarm(alarmID, user, monitoring.AlarmAcknowledged)
}

// ResolveAlarm marks an alarm resolved.
func (s *Session) ResolveAlarm(alarmID, user string) (*monitoring.AlarmEvent, error) {
	return s.transitionAlarm(alarmID, user, monitoring.AlarmResolved)
}

func (s *Session) transitionAlarm(alarmID, user string, to monitoring.AlarmStatus) (*monitoring.AlarmEvent, error) {
	if alarmID == "" {
		return nil, errors.New("monitor: empty alarm id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alarms {
		if s.alarms[i].ID != alarmID {
			continue
		}
		alarm := &s.alarms[i]
		if alarm.Status == monitoring.AlarmResolved {
			copied := *alarm
			return &copied, nil
		}
		alarm.Status = to
		switch to {
		case monitoring.AlarmAcknowledged:
			alarm.AckedBy = user
			alarm.AckedAt = s.clock.Now()
		case monitoring.AlarmResolved:
			alarm.ResolvedBy = user
			alarm.ResolvedAt = s.clock.Now()
		}
		copied := *alarm
		return &copied, nil
	}
	return nil, ErrAlarmNotFound
}
