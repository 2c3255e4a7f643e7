package engine

import (
	"fmt"
	"strconv"
	"time"

	monitoring "coldrig-monitor/internal/monitoring/domain"
	rules "coldrig-monitor/internal/rules/domain"
)

// EvaluationError reports a per-rule runtime fault. The engine logs it and
// skips the rule for the current record; other rules are unaffected.
type EvaluationError struct {
	RuleID string
	Reason string
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "engine: nil evaluation error"
	}
	return "engine: rule " + e.RuleID + ": " + e.Reason
}

// evalCondition evaluates one condition node against a record. path is the
// node's preorder position inside the rule's tree and keys state-duration
// onsets in the tracker.
func evalCondition(cond rules.Condition, rec monitoring.Record, ruleID, path string, tracker *SensorStateTracker) (bool, error) {
	switch c := cond.(type) {
	case rules.Threshold:
		value, ok := rec.Value(c.Sensor)
		if !ok {
			// A missing sensor cannot satisfy a positive condition.
			return false, nil
		}
		return compare(value, c.Operator, c.Value, ruleID)

	case rules.StateDuration:
		key := StateKey{Sensor: c.Sensor, RuleID: ruleID, LeafID: path}
		value, ok := rec.Value(c.Sensor)
		if !ok {
			tracker.ClearOnset(key)
			return false, nil
		}
		holds, err := compare(value, c.Operator, c.Value, ruleID)
		if err != nil {
			return false, err
		}
		if !holds {
			tracker.ClearOnset(key)
			return false, nil
		}
		onset, ok := tracker.Onset(key)
		if !ok {
			onset = rec.Timestamp
			tracker.SetOnset(key, onset)
		}
		window := time.Duration(c.DurationMinutes) * time.Minute
		return rec.Timestamp.Sub(onset) >= window, nil

	case rules.LogicAnd:
		// Empty child list is vacuously true.
		for i, child := range c.Children {
			ok, err := evalCondition(child, rec, ruleID, childPath(path, i), tracker)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case rules.LogicOr:
		for i, child := range c.Children {
			ok, err := evalCondition(child, rec, ruleID, childPath(path, i), tracker)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, &EvaluationError{RuleID: ruleID, Reason: fmt.Sprintf("unknown condition type %T", cond)}
	}
}

func compare(value float64, op rules.Operator, threshold float64, ruleID string) (bool, error) {
	switch op {
	case rules.OperatorGreater:
		return value > threshold, nil
	case rules.OperatorLess:
		return value < threshold, nil
	case rules.OperatorGreaterOrEqual:
		return value >= threshold, nil
	case rules.OperatorLessOrEqual:
		return value <= threshold, nil
	case rules.OperatorEqual:
		return value == threshold, nil
	default:
		return false, &EvaluationError{RuleID: ruleID, Reason: "unknown operator " + strconv.Quote(string(op))}
	}
}

func childPath(parent string, index int) string {
	return parent + "." + strconv.Itoa(index)
}

// trigger describes the leaf that fired a rule.
type trigger struct {
	Sensor    string
	Value     float64
	Threshold float64
}

// findTrigger walks the tree read-only and returns the first leaf whose
// condition currently holds. Called after the root evaluated true, so a match
// exists unless the tree is pure logic nodes (empty AND), in which case ok is
// false and the alarm carries no trigger detail.
func findTrigger(cond rules.Condition, rec monitoring.Record, ruleID, path string, tracker *SensorStateTracker) (trigger, bool) {
	switch c := cond.(type) {
	case rules.Threshold:
		value, ok := rec.Value(c.Sensor)
		if !ok {
			return trigger{}, false
		}
		if holds, err := compare(value, c.Operator, c.Value, ruleID); err != nil || !holds {
			return trigger{}, false
		}
		return trigger{Sensor: c.Sensor, Value: value, Threshold: c.Value}, true

	case rules.StateDuration:
		value, ok := rec.Value(c.Sensor)
		if !ok {
			return trigger{}, false
		}
		key := StateKey{Sensor: c.Sensor, RuleID: ruleID, LeafID: path}
		onset, ok := tracker.Onset(key)
		if !ok {
			return trigger{}, false
		}
		if rec.Timestamp.Sub(onset) < time.Duration(c.DurationMinutes)*time.Minute {
			return trigger{}, false
		}
		return trigger{Sensor: c.Sensor, Value: value, Threshold: c.Value}, true

	case rules.LogicAnd:
		for i, child := range c.Children {
			if tr, ok := findTrigger(child, rec, ruleID, childPath(path, i), tracker); ok {
				return tr, true
			}
		}
		return trigger{}, false

	case rules.LogicOr:
		for i, child := range c.Children {
			if tr, ok := findTrigger(child, rec, ruleID, childPath(path, i), tracker); ok {
				return tr, true
			}
		}
		return trigger{}, false

	default:
		return trigger{}, false
	}
}
