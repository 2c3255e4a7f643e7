package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"coldrig-monitor/internal/monitoring/application"
	monitoring "coldrig-monitor/internal/monitoring/domain"
	rules "coldrig-monitor/internal/rules/domain"
)

func reportFixture() (application.Snapshot, []monitoring.AlarmEvent) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	alarms := []monitoring.AlarmEvent{
		{
			ID:               "alarm-1",
			RuleID:           "temp-high",
			RuleName:         "冷藏温度过高",
			Severity:         rules.SeverityHigh,
			Timestamp:        started.Add(10 * time.Minute),
			WorkstationID:    "ws-01",
			TriggeringSensor: "温度",
			Value:            9.25,
			Threshold:        8,
			Status:           monitoring.AlarmActive,
		},
		{
			ID:               "alarm-2",
			RuleID:           "pressure-low",
			RuleName:         "吸气压力过低",
			Severity:         rules.SeverityCritical,
			Timestamp:        started.Add(25 * time.Minute),
			WorkstationID:    "ws-01",
			TriggeringSensor: "压力",
			Value:            0.4,
			Threshold:        0.8,
			Status:           monitoring.AlarmResolved,
		},
	}
	snapshot := application.Snapshot{
		SessionID:     "session-1",
		WorkstationID: "ws-01",
		Status:        application.StatusStopped,
		StartedAt:     started,
		StoppedAt:     started.Add(time.Hour),
		Statistics: application.Statistics{
			RecordsProcessed: 3600,
			AlarmsGenerated:  2,
			ProcessingSpeed:  1.0,
		},
		AlarmSummary: monitoring.Summarize(alarms),
	}
	return snapshot, alarms
}

func TestBuildSessionPDF(t *testing.T) {
	snapshot, alarms := reportFixture()
	payload, err := BuildSessionPDF(snapshot, alarms)
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("expected non-empty pdf")
	}
	if !bytes.HasPrefix(payload, []byte("%PDF")) {
		t.Fatalf("expected pdf magic, got %q", payload[:4])
	}
}

func TestBuildSessionXLSX(t *testing.T) {
	snapshot, alarms := reportFixture()
	payload, err := BuildSessionXLSX(snapshot, alarms)
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("reopen xlsx: %v", err)
	}
	defer f.Close()

	session, err := f.GetCellValue("summary", "B3")
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if session != "session-1" {
		t.Fatalf("expected session id in summary, got %q", session)
	}

	rows, err := f.GetRows("alarms")
	if err != nil {
		t.Fatalf("read alarms sheet: %v", err)
	}
	// Header plus one row per alarm.
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1][1] != "冷藏温度过高" {
		t.Fatalf("expected rule name in first alarm row, got %q", rows[1][1])
	}
}

func TestBuildReportsWithEmptyAlarmLog(t *testing.T) {
	snapshot, _ := reportFixture()
	snapshot.AlarmSummary = monitoring.AlarmSummary{}

	if _, err := BuildSessionPDF(snapshot, nil); err != nil {
		t.Fatalf("pdf with no alarms: %v", err)
	}
	if _, err := BuildSessionXLSX(snapshot, nil); err != nil {
		t.Fatalf("xlsx with no alarms: %v", err)
	}
}
