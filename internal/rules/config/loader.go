package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	rules "coldrig-monitor/internal/rules/domain"
)

// ruleFile is the on-disk shape of a rule set.
type ruleFile struct {
	Rules []ruleConfig `yaml:"rules"`
}

type ruleConfig struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Severity    string            `yaml:"severity"`
	Enabled     *bool             `yaml:"enabled"`
	Conditions  []conditionConfig `yaml:"conditions"`
}

type conditionConfig struct {
	Type            string            `yaml:"type"`
	Sensor          string            `yaml:"sensor"`
	Operator        string            `yaml:"operator"`
	Value           float64           `yaml:"value"`
	DurationMinutes int               `yaml:"duration_minutes"`
	Conditions      []conditionConfig `yaml:"conditions"`
}

// Load reads a YAML rule set from path and validates every rule. A malformed
// rule fails the whole load; partial rule sets never reach an engine.
func Load(path string) ([]rules.Rule, error) {
	if path == "" {
		return nil, errors.New("rules config: empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML rule set from raw bytes.
func Parse(data []byte) ([]rules.Rule, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &rules.ConfigError{Reason: "yaml: " + err.Error()}
	}

	result := make([]rules.Rule, 0, len(file.Rules))
	seen := make(map[string]struct{}, len(file.Rules))
	for _, rc := range file.Rules {
		rule, err := buildRule(rc)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[rule.ID]; dup {
			return nil, &rules.ConfigError{RuleID: rule.ID, Reason: "duplicate rule id"}
		}
		seen[rule.ID] = struct{}{}
		result = append(result, rule)
	}
	return result, nil
}

func buildRule(rc ruleConfig) (rules.Rule, error) {
	enabled := true
	if rc.Enabled != nil {
		enabled = *rc.Enabled
	}

	root, err := buildRoot(rc.Conditions)
	if err != nil {
		if cfgErr := (*rules.ConfigError)(nil); errors.As(err, &cfgErr) && cfgErr.RuleID == "" {
			cfgErr.RuleID = rc.ID
		}
		return rules.Rule{}, err
	}

	rule := rules.Rule{
		ID:          rc.ID,
		Name:        rc.Name,
		Description: rc.Description,
		Severity:    rules.Severity(rc.Severity),
		Enabled:     enabled,
		Root:        root,
	}
	if err := rule.Validate(); err != nil {
		return rules.Rule{}, err
	}
	return rule, nil
}

// buildRoot joins top-level conditions with an implicit AND, matching the
// historical rule file format where a rule lists sibling conditions that must
// all hold.
func buildRoot(configs []conditionConfig) (rules.Condition, error) {
	if len(configs) == 0 {
		return nil, &rules.ConfigError{Reason: "rule: no conditions"}
	}
	if len(configs) == 1 {
		return buildCondition(configs[0])
	}
	children := make([]rules.Condition, 0, len(configs))
	for _, cc := range configs {
		child, err := buildCondition(cc)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return rules.LogicAnd{Children: children}, nil
}

func buildCondition(cc conditionConfig) (rules.Condition, error) {
	switch cc.Type {
	case "threshold":
		return rules.Threshold{
			Sensor:   cc.Sensor,
			Operator: rules.Operator(cc.Operator),
			Value:    cc.Value,
		}, nil
	case "state_duration":
		return rules.StateDuration{
			Sensor:          cc.Sensor,
			Operator:        rules.Operator(cc.Operator),
			Value:           cc.Value,
			DurationMinutes: cc.DurationMinutes,
		}, nil
	case "logic_and", "logic_or":
		children := make([]rules.Condition, 0, len(cc.Conditions))
		for _, sub := range cc.Conditions {
			child, err := buildCondition(sub)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if cc.Type == "logic_and" {
			return rules.LogicAnd{Children: children}, nil
		}
		return rules.LogicOr{Children: children}, nil
	default:
		return nil, &rules.ConfigError{Reason: fmt.Sprintf("condition: unknown type %q", cc.Type)}
	}
}
