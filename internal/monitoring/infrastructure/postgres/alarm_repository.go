package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	monitoring "coldrig-monitor/internal/monitoring/domain"
	rules "coldrig-monitor/internal/rules/domain"
)

// AlarmEventRepository is a Postgres event log for emitted alarms. Optional:
// sessions keep their alarm log in memory; this sink preserves events across
// restarts for audit.
type AlarmEventRepository struct {
	db *sql.DB
}

// NewAlarmEventRepository constructs a repository.
func NewAlarmEventRepository(db *sql.DB) *AlarmEventRepository {
	return &AlarmEventRepository{db: db}
}

// Insert appends one alarm event.
func (r *AlarmEventRepository) Insert(ctx context.Context, sessionID string, alarm monitoring.AlarmEvent) error {
	if r == nil || r.db == nil {
		return errors.New("alarm event repo: nil db")
	}
	if sessionID == "" || alarm.ID == "" || alarm.RuleID == "" {
		return errors.New("alarm event repo: missing fields")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO alarm_events (
	id, session_id, rule_id, rule_name, severity, ts, workstation_id,
	triggering_sensor, value, threshold, message, status
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10, $11, $12
)
ON CONFLICT (id) DO NOTHING`,
		alarm.ID,
		sessionID,
		alarm.RuleID,
		alarm.RuleName,
		string(alarm.Severity),
		alarm.Timestamp,
		alarm.WorkstationID,
		alarm.TriggeringSensor,
		alarm.Value,
		alarm.Threshold,
		alarm.Message,
		string(alarm.Status),
	)
	return err
}

// ListBySession returns a session's persisted alarms at or after since,
// oldest first.
func (r *AlarmEventRepository) ListBySession(ctx context.Context, sessionID string, since time.Time) ([]monitoring.AlarmEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm event repo: nil db")
	}
	if sessionID == "" {
		return nil, errors.New("alarm event repo: empty session id")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, rule_id, rule_name, severity, ts, workstation_id,
	triggering_sensor, value, threshold, message, status
FROM alarm_events
WHERE session_id = $1 AND ts >= $2
ORDER BY ts ASC`, sessionID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []monitoring.AlarmEvent
	for rows.Next() {
		var alarm monitoring.AlarmEvent
		var severity, status string
		if err := rows.Scan(
			&alarm.ID,
			&alarm.RuleID,
			&alarm.RuleName,
			&severity,
			&alarm.Timestamp,
			&alarm.WorkstationID,
			&alarm.TriggeringSensor,
			&alarm.Value,
			&alarm.Threshold,
			&alarm.Message,
			&status,
		); err != nil {
			return nil, err
		}
		alarm.Severity = rules.Severity(severity)
		alarm.Status = monitoring.AlarmStatus(status)
		alarm.Timestamp = alarm.Timestamp.UTC()
		result = append(result, alarm)
	}
	return result, rows.Err()
}

// UpdateStatus mirrors an acknowledgement state change.
func (r *AlarmEventRepository) UpdateStatus(ctx context.Context, alarmID string, status monitoring.AlarmStatus, user string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alarm event repo: nil db")
	}
	query := `
UPDATE alarm_events
SET status = $1, acked_by = $2, acked_at = $3
WHERE id = $4`
	if status == monitoring.AlarmResolved {
		query = `
UPDATE alarm_events
SET status = $1, resolved_by = $2, resolved_at = $3
WHERE id = $4`
	}
	_, err := r.db.ExecContext(ctx, query, string(status), user, at, alarmID)
	return err
}
