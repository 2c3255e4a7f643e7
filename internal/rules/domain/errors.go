package rules

// ConfigError reports a malformed rule or condition at load time. A rule set
// containing one never starts a session.
type ConfigError struct {
	RuleID string
	Reason string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "rules: nil config error"
	}
	if e.RuleID == "" {
		return "rules: " + e.Reason
	}
	return "rules: rule " + e.RuleID + ": " + e.Reason
}
