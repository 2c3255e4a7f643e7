package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	monitoring "coldrig-monitor/internal/monitoring/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders alarms through a template and pushes them to a channel.
// Alarms are already edge-triggered upstream, but a rule that resolves and
// re-fires repeatedly can still flood a webhook; cooldown and dedupe windows
// bound that.
type Notifier struct {
	channel  Channel
	template *Template
	clock    Clock

	mu           sync.Mutex
	sent         map[string]sendRecord
	cooldown     time.Duration
	dedupeWindow time.Duration
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same rule.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs an alarm notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, fmt.Errorf("alarm notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:  channel,
		template: template,
		clock:    systemClock{},
		sent:     make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements application.AlarmNotifier.
func (n *Notifier) Notify(ctx context.Context, sessionID string, alarm monitoring.AlarmEvent) {
	if n == nil || n.channel == nil {
		return
	}
	content, err := n.template.Render(buildTemplateData(sessionID, alarm))
	if err != nil {
		return
	}
	key := alarm.RuleID + "|" + alarm.WorkstationID
	if !n.shouldSend(key, content) {
		return
	}
	if err := n.channel.Send(ctx, content); err != nil {
		return
	}
	n.markSent(key, content)
}

func buildTemplateData(sessionID string, alarm monitoring.AlarmEvent) TemplateData {
	return TemplateData{
		Workstation: alarm.WorkstationID,
		Rule:        alarm.RuleName,
		RuleID:      alarm.RuleID,
		Severity:    string(alarm.Severity),
		Sensor:      alarm.TriggeringSensor,
		Value:       fmt.Sprintf("%.2f", alarm.Value),
		Threshold:   fmt.Sprintf("%.2f", alarm.Threshold),
		Time:        alarm.Timestamp.UTC().Format(time.RFC3339),
		Message:     alarm.Message,
		SessionID:   sessionID,
	}
}

func (n *Notifier) shouldSend(key, content string) bool {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(key, content string) {
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}
