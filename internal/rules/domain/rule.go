package rules

// Severity classifies how serious a fired rule is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid returns true when severity is supported.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Rule is a named anomaly condition tree. Loaded once per session and
// read-only during evaluation.
type Rule struct {
	ID          string
	Name        string
	Description string
	Severity    Severity
	Enabled     bool
	Root        Condition
}

// Validate checks rule invariants including the whole condition tree.
func (r Rule) Validate() error {
	if r.ID == "" {
		return &ConfigError{Reason: "rule: empty id"}
	}
	if r.Name == "" {
		return &ConfigError{RuleID: r.ID, Reason: "rule: empty name"}
	}
	if !r.Severity.Valid() {
		return &ConfigError{RuleID: r.ID, Reason: "rule: invalid severity " + string(r.Severity)}
	}
	if r.Root == nil {
		return &ConfigError{RuleID: r.ID, Reason: "rule: nil root condition"}
	}
	if err := r.Root.Validate(); err != nil {
		if cfgErr, ok := err.(*ConfigError); ok && cfgErr.RuleID == "" {
			cfgErr.RuleID = r.ID
		}
		return err
	}
	return nil
}
