package rules

import "fmt"

// Operator is a comparison operator applied to a sensor value.
type Operator string

const (
	OperatorGreater        Operator = ">"
	OperatorLess           Operator = "<"
	OperatorGreaterOrEqual Operator = ">="
	OperatorLessOrEqual    Operator = "<="
	OperatorEqual          Operator = "=="
)

// Valid returns true when operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OperatorGreater, OperatorLess, OperatorGreaterOrEqual, OperatorLessOrEqual, OperatorEqual:
		return true
	default:
		return false
	}
}

// Condition is a node of a rule's condition tree. The tree is immutable after
// load; logic nodes own their children by value, so no cycles are possible.
// The set of variants is closed: Threshold, StateDuration, LogicAnd, LogicOr.
type Condition interface {
	condition()
	// Validate checks the subtree rooted at this node.
	Validate() error
}

// Threshold compares one sensor sample against a fixed value.
type Threshold struct {
	Sensor   string
	Operator Operator
	Value    float64
}

// StateDuration is satisfied once the instantaneous comparison has held
// continuously for at least DurationMinutes. A single sample failing the
// comparison resets the window.
type StateDuration struct {
	Sensor          string
	Operator        Operator
	Value           float64
	DurationMinutes int
}

// LogicAnd is satisfied when every child is satisfied, evaluated in declared
// order with short-circuiting. An empty child list is vacuously true.
type LogicAnd struct {
	Children []Condition
}

// LogicOr is satisfied when any child is satisfied, evaluated in declared
// order with short-circuiting. An empty child list is false.
type LogicOr struct {
	Children []Condition
}

func (Threshold) condition()     {}
func (StateDuration) condition() {}
func (LogicAnd) condition()      {}
func (LogicOr) condition()       {}

// Validate checks threshold invariants.
func (c Threshold) Validate() error {
	if c.Sensor == "" {
		return &ConfigError{Reason: "threshold: empty sensor"}
	}
	if !c.Operator.Valid() {
		return &ConfigError{Reason: fmt.Sprintf("threshold: invalid operator %q", string(c.Operator))}
	}
	return nil
}

// Validate checks state duration invariants.
func (c StateDuration) Validate() error {
	if c.Sensor == "" {
		return &ConfigError{Reason: "state duration: empty sensor"}
	}
	if !c.Operator.Valid() {
		return &ConfigError{Reason: fmt.Sprintf("state duration: invalid operator %q", string(c.Operator))}
	}
	if c.DurationMinutes < 0 {
		return &ConfigError{Reason: "state duration: negative duration"}
	}
	return nil
}

// Validate checks every child subtree.
func (c LogicAnd) Validate() error {
	return validateChildren(c.Children)
}

// Validate checks every child subtree.
func (c LogicOr) Validate() error {
	return validateChildren(c.Children)
}

func validateChildren(children []Condition) error {
	for _, child := range children {
		if child == nil {
			return &ConfigError{Reason: "logic node: nil child"}
		}
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}
