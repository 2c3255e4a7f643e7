package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	monitoring "coldrig-monitor/internal/monitoring/domain"
	"coldrig-monitor/internal/monitoring/engine"
	rules "coldrig-monitor/internal/rules/domain"
)

var sessionBase = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	alarms []monitoring.AlarmEvent
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, alarm monitoring.AlarmEvent) {
	n.mu.Lock()
	n.alarms = append(n.alarms, alarm)
	n.mu.Unlock()
}

func (n *recordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alarms)
}

func tempEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New([]rules.Rule{{
		ID:       "temp-high",
		Name:     "temperature high",
		Severity: rules.SeverityHigh,
		Enabled:  true,
		Root:     rules.Threshold{Sensor: "温度", Operator: rules.OperatorGreater, Value: 8},
	}})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func sampleRecord(offset time.Duration, temp float64) monitoring.Record {
	return monitoring.Record{
		Timestamp:     sessionBase.Add(offset),
		WorkstationID: "ws-01",
		Values:        map[string]float64{"温度": temp},
	}
}

func TestSessionLifecycle(t *testing.T) {
	clock := &fakeClock{now: sessionBase}
	session, err := NewSession("s-1", "ws-01", tempEngine(t), WithClock(clock))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	if got := session.Status().Status; got != StatusIdle {
		t.Fatalf("expected idle before start, got %s", got)
	}
	if err := session.Ingest(sampleRecord(0, 5)); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState ingesting while idle, got %v", err)
	}

	if err := session.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := session.Status().Status; got != StatusRunning {
		t.Fatalf("expected running, got %s", got)
	}
	if err := session.Start(nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState starting twice, got %v", err)
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := session.Status().Status; got != StatusStopped {
		t.Fatalf("expected stopped, got %s", got)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("expected second stop to be a no-op success, got %v", err)
	}
	if err := session.Ingest(sampleRecord(0, 5)); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState ingesting after stop, got %v", err)
	}
}

func TestSessionStatisticsAccounting(t *testing.T) {
	clock := &fakeClock{now: sessionBase}
	notifier := &recordingNotifier{}
	session, err := NewSession("s-1", "ws-01", tempEngine(t), WithClock(clock), WithNotifier(notifier))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Add(10 * time.Second)
	temps := []float64{5, 9, 9.5, 6, 9} // fires at index 1, resolves at 3, refires at 4
	for i, temp := range temps {
		if err := session.Ingest(sampleRecord(time.Duration(i)*time.Minute, temp)); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	snapshot := session.Status()
	if snapshot.Statistics.RecordsProcessed != 5 {
		t.Fatalf("expected 5 records processed, got %d", snapshot.Statistics.RecordsProcessed)
	}
	if snapshot.Statistics.AlarmsGenerated != 2 {
		t.Fatalf("expected 2 alarms, got %d", snapshot.Statistics.AlarmsGenerated)
	}
	if snapshot.Statistics.ProcessingSpeed <= 0 {
		t.Fatalf("expected positive processing speed, got %f", snapshot.Statistics.ProcessingSpeed)
	}
	if got := notifier.Count(); got != 2 {
		t.Fatalf("expected notifier called per alarm, got %d", got)
	}
	if snapshot.AlarmSummary.Total != 2 || snapshot.AlarmSummary.Active != 2 {
		t.Fatalf("unexpected summary: %+v", snapshot.AlarmSummary)
	}
}

func TestSessionDrainsSourceToCompletion(t *testing.T) {
	records := make([]monitoring.Record, 0, 20)
	for i := 0; i < 20; i++ {
		temp := 5.0
		if i >= 10 {
			temp = 9.0
		}
		records = append(records, sampleRecord(time.Duration(i)*time.Second, temp))
	}

	session, err := NewSession("s-1", "ws-01", tempEngine(t))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.Start(NewSliceSource(records)); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.Wait()

	snapshot := session.Status()
	if snapshot.Status != StatusStopped {
		t.Fatalf("expected stopped after exhausting source, got %s", snapshot.Status)
	}
	if snapshot.Statistics.RecordsProcessed != 20 {
		t.Fatalf("expected 20 records processed, got %d", snapshot.Statistics.RecordsProcessed)
	}
	if snapshot.Statistics.AlarmsGenerated != 1 {
		t.Fatalf("expected 1 edge-triggered alarm, got %d", snapshot.Statistics.AlarmsGenerated)
	}
}

type failingSource struct{}

func (failingSource) Next(_ context.Context) (monitoring.Record, error) {
	return monitoring.Record{}, errors.New("corrupt record at byte 464")
}

func TestSessionSourceFaultMovesToError(t *testing.T) {
	session, err := NewSession("s-1", "ws-01", tempEngine(t))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.Start(failingSource{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.Wait()

	snapshot := session.Status()
	if snapshot.Status != StatusError {
		t.Fatalf("expected error state, got %s", snapshot.Status)
	}
	if snapshot.LastError == "" {
		t.Fatal("expected last error preserved")
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("expected stop on errored session to be a no-op, got %v", err)
	}
	if got := session.Status().Status; got != StatusError {
		t.Fatalf("stop must not mask the error state, got %s", got)
	}
}

func TestSessionStopHaltsChannelSource(t *testing.T) {
	ch := make(chan monitoring.Record)
	session, err := NewSession("s-1", "ws-01", tempEngine(t))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.Start(NewChannelSource(ch)); err != nil {
		t.Fatalf("start: %v", err)
	}

	ch <- sampleRecord(0, 9)
	if err := session.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	session.Wait()

	snapshot := session.Status()
	if snapshot.Status != StatusStopped {
		t.Fatalf("expected stopped, got %s", snapshot.Status)
	}
	if snapshot.Statistics.RecordsProcessed != 1 {
		t.Fatalf("expected in-flight record completed, got %d", snapshot.Statistics.RecordsProcessed)
	}
}

func TestSessionWaitBlocksWhilePushModeRuns(t *testing.T) {
	session, err := NewSession("s-1", "ws-01", tempEngine(t))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	released := make(chan struct{})
	go func() {
		session.Wait()
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("push-mode session reported finished while still running")
	case <-time.After(50 * time.Millisecond):
	}

	if err := session.Ingest(sampleRecord(0, 9)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("wait did not release after stop")
	}
}

func TestSessionRecentAlarmsWindow(t *testing.T) {
	eng, err := engine.New([]rules.Rule{{
		ID:       "spike",
		Name:     "spike",
		Severity: rules.SeverityLow,
		Enabled:  true,
		Root:     rules.Threshold{Sensor: "温度", Operator: rules.OperatorGreater, Value: 8},
	}})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	session, err := NewSession("s-1", "ws-01", eng, WithRecentAlarms(3))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Alternate below and above the limit so every high sample re-fires.
	for i := 0; i < 10; i++ {
		if err := session.Ingest(sampleRecord(time.Duration(2*i)*time.Minute, 5)); err != nil {
			t.Fatalf("ingest: %v", err)
		}
		if err := session.Ingest(sampleRecord(time.Duration(2*i+1)*time.Minute, 9)); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	snapshot := session.Status()
	if snapshot.Statistics.AlarmsGenerated != 10 {
		t.Fatalf("expected 10 alarms, got %d", snapshot.Statistics.AlarmsGenerated)
	}
	if len(snapshot.RecentAlarms) != 3 {
		t.Fatalf("expected snapshot capped at 3 recent alarms, got %d", len(snapshot.RecentAlarms))
	}
	if got := len(session.Alarms(time.Time{})); got != 10 {
		t.Fatalf("expected full alarm log of 10, got %d", got)
	}

	since := sessionBase.Add(15 * time.Minute)
	for _, alarm := range session.Alarms(since) {
		if alarm.Timestamp.Before(since) {
			t.Fatalf("since filter leaked alarm at %v", alarm.Timestamp)
		}
	}
}

func TestSessionAlarmAckResolve(t *testing.T) {
	clock := &fakeClock{now: sessionBase}
	session, err := NewSession("s-1", "ws-01", tempEngine(t), WithClock(clock))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.Ingest(sampleRecord(0, 9)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	alarms := session.Alarms(time.Time{})
	if len(alarms) != 1 {
		t.Fatalf("expected 1 alarm, got %d", len(alarms))
	}
	id := alarms[0].ID

	clock.Add(time.Minute)
	acked, err := session.AckAlarm(id, "operator-1")
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if acked.Status != monitoring.AlarmAcknowledged || acked.AckedBy != "operator-1" {
		t.Fatalf("unexpected acked alarm: %+v", acked)
	}

	clock.Add(time.Minute)
	resolved, err := session.ResolveAlarm(id, "operator-2")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != monitoring.AlarmResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}
	if resolved.ResolvedBy != "operator-2" {
		t.Fatalf("expected resolver recorded, got %q", resolved.ResolvedBy)
	}
	if resolved.AckedBy != "operator-1" || !resolved.AckedAt.Equal(sessionBase.Add(time.Minute)) {
		t.Fatalf("resolve must keep the acknowledgement record, got by=%q at=%v", resolved.AckedBy, resolved.AckedAt)
	}
	if !resolved.ResolvedAt.After(resolved.AckedAt) {
		t.Fatalf("expected resolve timestamp after ack, got %v", resolved.ResolvedAt)
	}

	// Resolved is terminal.
	again, err := session.AckAlarm(id, "operator-2")
	if err != nil {
		t.Fatalf("ack resolved: %v", err)
	}
	if again.Status != monitoring.AlarmResolved {
		t.Fatalf("expected resolved to stay terminal, got %s", again.Status)
	}

	if _, err := session.AckAlarm("alarm-missing", "operator-1"); !errors.Is(err, ErrAlarmNotFound) {
		t.Fatalf("expected ErrAlarmNotFound, got %v", err)
	}
}

func TestSessionStatusConcurrentWithIngest(t *testing.T) {
	session, err := NewSession("s-1", "ws-01", tempEngine(t))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = session.Ingest(sampleRecord(time.Duration(i)*time.Second, float64(i%12)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snapshot := session.Status()
			if snapshot.SessionID != "s-1" {
				t.Errorf("unexpected snapshot id %q", snapshot.SessionID)
				return
			}
		}
	}()
	wg.Wait()

	if got := session.Status().Statistics.RecordsProcessed; got != 500 {
		t.Fatalf("expected 500 records processed, got %d", got)
	}
}
