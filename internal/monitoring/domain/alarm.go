package monitoring

import (
	"crypto/sha1"
	"encoding/hex"
	"time"

	rules "coldrig-monitor/internal/rules/domain"
)

// AlarmStatus is the acknowledgement state of an alarm event.
type AlarmStatus string

const (
	AlarmActive       AlarmStatus = "active"
	AlarmAcknowledged AlarmStatus = "acknowledged"
	AlarmResolved     AlarmStatus = "resolved"
)

// AlarmEvent is emitted once per false-to-true transition of a rule's firing
// state. The triggering fields describe the first satisfied leaf of the
// rule's condition tree at the moment of transition.
type AlarmEvent struct {
	ID               string         `json:"id"`
	RuleID           string         `json:"rule_id"`
	RuleName         string         `json:"rule_name"`
	Severity         rules.Severity `json:"severity"`
	Timestamp        time.Time      `json:"ts"`
	WorkstationID    string         `json:"workstation_id"`
	TriggeringSensor string         `json:"triggering_sensor"`
	Value            float64        `json:"value"`
	Threshold        float64        `json:"threshold"`
	Message          string         `json:"message"`

	Status     AlarmStatus `json:"status"`
	AckedBy    string      `json:"acked_by,omitempty"`
	AckedAt    time.Time   `json:"acked_at"`
	ResolvedBy string      `json:"resolved_by,omitempty"`
	ResolvedAt time.Time   `json:"resolved_at"`
}

// AlarmSummary aggregates an alarm log per severity.
type AlarmSummary struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Summarize counts alarms by severity and acknowledgement state.
func Summarize(alarms []AlarmEvent) AlarmSummary {
	var summary AlarmSummary
	summary.Total = len(alarms)
	for _, alarm := range alarms {
		if alarm.Status == AlarmActive {
			summary.Active++
		}
		switch alarm.Severity {
		case rules.SeverityCritical:
			summary.Critical++
		case rules.SeverityHigh:
			summary.High++
		case rules.SeverityMedium:
			summary.Medium++
		case rules.SeverityLow:
			summary.Low++
		}
	}
	return summary
}

// BuildAlarmID derives a stable alarm id from the transition coordinates.
func BuildAlarmID(ruleID, workstationID string, at time.Time) string {
	sum := sha1.Sum([]byte(ruleID + "|" + workstationID + "|" + at.Format(time.RFC3339Nano)))
	return "alarm-" + hex.EncodeToString(sum[:8])
}
