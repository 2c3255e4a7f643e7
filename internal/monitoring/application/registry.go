package application

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	monitoring "coldrig-monitor/internal/monitoring/domain"
	"coldrig-monitor/internal/monitoring/engine"
	"coldrig-monitor/internal/observability/metrics"
	rules "coldrig-monitor/internal/rules/domain"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("monitor: session not found")

// StartConfig describes one monitoring run.
type StartConfig struct {
	WorkstationID string
	Rules         []rules.Rule
	Source        RecordSource
	RecentAlarms  int
}

// Registry maps session ids to sessions. Concurrent sessions, one per
// workstation or replayed file, run independently; the registry never shares
// engine or tracker instances between them.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	notifier AlarmNotifier
	clock    Clock
	logger   *log.Logger
}

// RegistryOption customizes a registry.
type RegistryOption func(*Registry)

// WithRegistryNotifier assigns the notifier handed to every session.
func WithRegistryNotifier(notifier AlarmNotifier) RegistryOption {
	return func(r *Registry) {
		r.notifier = notifier
	}
}

// WithRegistryClock assigns the clock handed to every session.
func WithRegistryClock(clock Clock) RegistryOption {
	return func(r *Registry) {
		r.clock = clock
	}
}

// WithRegistryLogger assigns a logger.
func WithRegistryLogger(logger *log.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	registry := &Registry{
		sessions: make(map[string]*Session),
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(registry)
	}
	return registry
}

// StartSession builds a fresh engine from the rule set, registers a new
// session and starts it. A malformed rule fails the start; no session is
// created.
func (r *Registry) StartSession(cfg StartConfig) (string, error) {
	if r == nil {
		return "", errors.New("monitor: nil registry")
	}
	if cfg.WorkstationID == "" {
		return "", errors.New("monitor: empty workstation id")
	}

	engineOpts := []engine.Option{
		engine.WithErrorHook(func(ruleID string, err error) {
			metrics.IncEvalError(ruleID)
		}),
	}
	if r.logger != nil {
		engineOpts = append(engineOpts, engine.WithLogger(r.logger))
	}
	eng, err := engine.New(cfg.Rules, engineOpts...)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	sessionOpts := []SessionOption{WithClock(r.clock)}
	if r.notifier != nil {
		sessionOpts = append(sessionOpts, WithNotifier(r.notifier))
	}
	if r.logger != nil {
		sessionOpts = append(sessionOpts, WithSessionLogger(r.logger))
	}
	if cfg.RecentAlarms > 0 {
		sessionOpts = append(sessionOpts, WithRecentAlarms(cfg.RecentAlarms))
	}
	session, err := NewSession(id, cfg.WorkstationID, eng, sessionOpts...)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()

	if err := session.Start(cfg.Source); err != nil {
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		return "", err
	}
	metrics.SessionStarted()
	go r.reap(session)

	if r.logger != nil {
		r.logger.Printf("session %s started: workstation=%s rules=%d", id, cfg.WorkstationID, eng.RuleCount())
	}
	return id, nil
}

// reap records the terminal result once a session's worker exits.
func (r *Registry) reap(session *Session) {
	session.Wait()
	switch session.Status().Status {
	case StatusError:
		metrics.SessionFinished(metrics.ResultError)
	default:
		metrics.SessionFinished(metrics.ResultSuccess)
	}
}

// Get returns a session by id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// StopSession stops a session by id. Stopping twice succeeds.
func (r *Registry) StopSession(id string) (bool, error) {
	session, err := r.Get(id)
	if err != nil {
		return false, err
	}
	if err := session.Stop(); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveSession deletes a finished session from the registry so long-lived
// processes do not accumulate them. Idle or running sessions cannot be
// removed; stop them first.
func (r *Registry) RemoveSession(id string) error {
	session, err := r.Get(id)
	if err != nil {
		return err
	}
	switch session.Status().Status {
	case StatusStopped, StatusError:
	default:
		return ErrInvalidState
	}
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

// Status returns a snapshot for one session.
func (r *Registry) Status(id string) (Snapshot, error) {
	session, err := r.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return session.Status(), nil
}

// Alarms returns a session's alarms at or after since.
func (r *Registry) Alarms(id string, since time.Time) ([]monitoring.AlarmEvent, error) {
	session, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return session.Alarms(since), nil
}

// List returns snapshots of every session, oldest start first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(sessions))
	for _, session := range sessions {
		snapshots = append(snapshots, session.Status())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].StartedAt.Before(snapshots[j].StartedAt)
	})
	return snapshots
}
