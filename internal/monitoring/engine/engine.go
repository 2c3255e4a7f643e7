package engine

import (
	"errors"
	"fmt"
	"log"

	monitoring "coldrig-monitor/internal/monitoring/domain"
	rules "coldrig-monitor/internal/rules/domain"
)

// Engine evaluates a compiled rule set against a record stream and emits
// edge-triggered alarms. One engine belongs to exactly one session; sharing
// an engine across sessions would bleed duration and firing state between
// unrelated test runs.
type Engine struct {
	rules   []rules.Rule
	tracker *SensorStateTracker
	firing  map[string]bool
	logger  *log.Logger
	onError func(ruleID string, err error)
}

// Option customizes an engine.
type Option func(*Engine)

// WithLogger assigns a logger for per-rule evaluation faults.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithErrorHook registers a callback invoked on every skipped rule.
func WithErrorHook(hook func(ruleID string, err error)) Option {
	return func(e *Engine) {
		e.onError = hook
	}
}

// New validates the rule set and constructs an engine. Disabled rules are
// dropped up front; a malformed rule fails construction.
func New(ruleSet []rules.Rule, opts ...Option) (*Engine, error) {
	enabled := make([]rules.Rule, 0, len(ruleSet))
	for _, rule := range ruleSet {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	engine := &Engine{
		rules:   enabled,
		tracker: NewSensorStateTracker(),
		firing:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// RuleCount returns the number of enabled rules.
func (e *Engine) RuleCount() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// EvaluateRecord runs every enabled rule against one record, in configured
// order, and returns the alarms raised by false-to-true firing transitions.
// A rule that stays true across many records emits exactly one alarm until it
// resolves. A rule that fails to evaluate is skipped for this record only.
func (e *Engine) EvaluateRecord(rec monitoring.Record) []monitoring.AlarmEvent {
	if e == nil {
		return nil
	}
	var alarms []monitoring.AlarmEvent
	for _, rule := range e.rules {
		satisfied, err := evalCondition(rule.Root, rec, rule.ID, "c", e.tracker)
		if err != nil {
			if e.logger != nil {
				e.logger.Printf("rule %s skipped: %v", rule.ID, err)
			}
			if e.onError != nil {
				e.onError(rule.ID, err)
			}
			continue
		}

		wasFiring := e.firing[rule.ID]
		switch {
		case satisfied && !wasFiring:
			e.firing[rule.ID] = true
			alarms = append(alarms, e.buildAlarm(rule, rec))
		case !satisfied && wasFiring:
			delete(e.firing, rule.ID)
		}
	}
	return alarms
}

// Firing reports whether a rule is currently firing.
func (e *Engine) Firing(ruleID string) bool {
	if e == nil {
		return false
	}
	return e.firing[ruleID]
}

// Reset clears firing and duration state, keeping the rule set.
func (e *Engine) Reset() {
	if e == nil {
		return
	}
	e.firing = make(map[string]bool)
	e.tracker.Reset()
}

func (e *Engine) buildAlarm(rule rules.Rule, rec monitoring.Record) monitoring.AlarmEvent {
	alarm := monitoring.AlarmEvent{
		ID:            monitoring.BuildAlarmID(rule.ID, rec.WorkstationID, rec.Timestamp),
		RuleID:        rule.ID,
		RuleName:      rule.Name,
		Severity:      rule.Severity,
		Timestamp:     rec.Timestamp,
		WorkstationID: rec.WorkstationID,
		Status:        monitoring.AlarmActive,
		Message:       fmt.Sprintf("rule %q triggered: %s", rule.Name, rule.Description),
	}
	if tr, ok := findTrigger(rule.Root, rec, rule.ID, "c", e.tracker); ok {
		alarm.TriggeringSensor = tr.Sensor
		alarm.Value = tr.Value
		alarm.Threshold = tr.Threshold
	}
	return alarm
}

// IsEvaluationError reports whether err is a per-rule evaluation fault.
func IsEvaluationError(err error) bool {
	var evalErr *EvaluationError
	return errors.As(err, &evalErr)
}
