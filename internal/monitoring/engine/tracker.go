package engine

import "time"

// StateKey addresses the onset of one state-duration leaf. Keys are composite
// values, never pointer identity, so two rules watching the same sensor with
// different windows cannot interfere.
type StateKey struct {
	Sensor string
	RuleID string
	LeafID string
}

// SensorStateTracker remembers, per leaf, when its instantaneous comparison
// last became true. Not safe for concurrent use; a single evaluation
// goroutine per session owns it.
type SensorStateTracker struct {
	onsets map[StateKey]time.Time
}

// NewSensorStateTracker constructs an empty tracker.
func NewSensorStateTracker() *SensorStateTracker {
	return &SensorStateTracker{onsets: make(map[StateKey]time.Time)}
}

// Onset returns the recorded onset for key, if any.
func (t *SensorStateTracker) Onset(key StateKey) (time.Time, bool) {
	onset, ok := t.onsets[key]
	return onset, ok
}

// SetOnset records when the leaf's comparison became true.
func (t *SensorStateTracker) SetOnset(key StateKey, at time.Time) {
	t.onsets[key] = at
}

// ClearOnset forgets the onset for key. Called the instant the comparison
// goes false; the duration window restarts from scratch on the next true
// sample.
func (t *SensorStateTracker) ClearOnset(key StateKey) {
	delete(t.onsets, key)
}

// Reset drops all onsets. Used when a session restarts.
func (t *SensorStateTracker) Reset() {
	t.onsets = make(map[StateKey]time.Time)
}
