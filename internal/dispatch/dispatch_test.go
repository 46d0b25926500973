package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"field-controller/internal/model"
	"field-controller/internal/notify"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	prios    []notify.Priority
	fail     bool
}

func (r *recordingNotifier) Send(_ context.Context, message string, priority notify.Priority) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("channel down")
	}
	r.messages = append(r.messages, message)
	r.prios = append(r.prios, priority)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *recordingNotifier) latest() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}

func (r *recordingNotifier) latestPriority() notify.Priority {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.prios) == 0 {
		return ""
	}
	return r.prios[len(r.prios)-1]
}

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

func mkAlert(cat model.AlertCategory, sev model.Severity, msg string) model.Alert {
	return model.Alert{Category: cat, Severity: sev, Message: msg, At: time.Now()}
}

func TestOfferSensorCooldown(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	ch := &recordingNotifier{}
	d, err := New(ch, "north-field", WithClock(clk), WithSensorCooldown(5*time.Minute))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	batch := []model.Alert{mkAlert(model.AlertSoilLow, model.SeverityWarning, "soil moisture 22.0% below 30.0%")}
	if got := d.Offer(context.Background(), batch); len(got) != 1 {
		t.Fatalf("expected 1 dispatched alert, got %d", len(got))
	}
	if got := d.Offer(context.Background(), batch); len(got) != 0 {
		t.Fatalf("expected suppression during cooldown, got %d dispatched", len(got))
	}
	if ch.count() != 1 {
		t.Fatalf("expected 1 send during cooldown, got %d", ch.count())
	}

	clk.Add(6 * time.Minute)
	if got := d.Offer(context.Background(), batch); len(got) != 1 {
		t.Fatalf("expected dispatch after cooldown, got %d", len(got))
	}
	if ch.count() != 2 {
		t.Fatalf("expected 2 sends after cooldown, got %d", ch.count())
	}
}

func TestOfferInfoLoggedOnly(t *testing.T) {
	ch := &recordingNotifier{}
	d, err := New(ch, "north-field")
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	got := d.Offer(context.Background(), []model.Alert{
		mkAlert(model.AlertRain, model.SeverityInfo, "rain detected, irrigation paused"),
	})
	if len(got) != 0 {
		t.Fatalf("info alerts must not dispatch, got %d", len(got))
	}
	if ch.count() != 0 {
		t.Fatalf("expected no sends for info batch, got %d", ch.count())
	}
	if hist := d.History(); len(hist) != 1 {
		t.Fatalf("expected info alert in history, got %d entries", len(hist))
	}
}

func TestOfferCombinesWorstThree(t *testing.T) {
	ch := &recordingNotifier{}
	d, err := New(ch, "north-field")
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	got := d.Offer(context.Background(), []model.Alert{
		mkAlert(model.AlertTemperatureHigh, model.SeverityWarning, "temperature 36.2C above 35.0C"),
		mkAlert(model.AlertHumidityLow, model.SeverityWarning, "humidity 31.0% below 40.0%"),
		mkAlert(model.AlertSystemError, model.SeverityCritical, "3 sensor(s) failing: soil, light, rain"),
		mkAlert(model.AlertSoilLow, model.SeverityWarning, "soil moisture 22.0% below 30.0%"),
	})
	if len(got) != 3 {
		t.Fatalf("expected 3 combined alerts, got %d", len(got))
	}
	if got[0].Severity != model.SeverityCritical {
		t.Fatalf("expected critical first, got %s", got[0].Severity)
	}
	msg := ch.latest()
	if !strings.Contains(msg, "4 alert(s)") {
		t.Fatalf("expected candidate count in message, got %q", msg)
	}
	if !strings.Contains(msg, "[CRITICAL] 3 sensor(s) failing") {
		t.Fatalf("expected critical line in message, got %q", msg)
	}
	if strings.Count(msg, "- [") != 3 {
		t.Fatalf("expected exactly 3 lines, got %q", msg)
	}
	if ch.latestPriority() != notify.PriorityHigh {
		t.Fatalf("expected high priority for critical batch, got %s", ch.latestPriority())
	}
}

func TestOfferFailedSendStaysEligible(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	ch := &recordingNotifier{fail: true}
	d, err := New(ch, "north-field", WithClock(clk))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	batch := []model.Alert{mkAlert(model.AlertSoilLow, model.SeverityWarning, "soil low")}
	if got := d.Offer(context.Background(), batch); len(got) != 0 {
		t.Fatalf("expected no dispatch on send failure, got %d", len(got))
	}

	ch.mu.Lock()
	ch.fail = false
	ch.mu.Unlock()

	// Clock has not advanced; the failed attempt must not have armed the window.
	if got := d.Offer(context.Background(), batch); len(got) != 1 {
		t.Fatalf("expected retry to dispatch, got %d", len(got))
	}
}

func TestThreatWindowIndependent(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	ch := &recordingNotifier{}
	d, err := New(ch, "north-field",
		WithClock(clk),
		WithSensorCooldown(5*time.Minute),
		WithThreatCooldown(10*time.Minute),
	)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	d.Offer(context.Background(), []model.Alert{mkAlert(model.AlertSoilLow, model.SeverityWarning, "soil low")})
	got := d.Offer(context.Background(), []model.Alert{mkAlert(model.AlertThreat, model.SeverityCritical, "person detected near enclosure")})
	if len(got) != 1 {
		t.Fatalf("threat must not be throttled by sensor traffic, got %d dispatched", len(got))
	}

	clk.Add(6 * time.Minute)
	got = d.Offer(context.Background(), []model.Alert{mkAlert(model.AlertThreat, model.SeverityCritical, "person detected near enclosure")})
	if len(got) != 0 {
		t.Fatalf("expected threat cooldown to hold at 6m, got %d dispatched", len(got))
	}

	clk.Add(5 * time.Minute)
	got = d.Offer(context.Background(), []model.Alert{mkAlert(model.AlertThreat, model.SeverityCritical, "person detected near enclosure")})
	if len(got) != 1 {
		t.Fatalf("expected threat dispatch after 11m, got %d", len(got))
	}
}

func TestHealthNeverThrottled(t *testing.T) {
	ch := &recordingNotifier{}
	d, err := New(ch, "north-field")
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	batch := []model.Alert{mkAlert(model.AlertHealthCPU, model.SeverityCritical, "cpu temperature 85.0C above 80.0C")}
	d.Offer(context.Background(), batch)
	d.Offer(context.Background(), batch)
	if ch.count() != 2 {
		t.Fatalf("health alerts are interval-gated upstream, expected 2 sends, got %d", ch.count())
	}
}

func TestHistoryBoundedNewestFirst(t *testing.T) {
	ch := &recordingNotifier{}
	d, err := New(ch, "north-field", WithHistorySize(3))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	for _, msg := range []string{"a", "b", "c", "d"} {
		d.Offer(context.Background(), []model.Alert{mkAlert(model.AlertRain, model.SeverityInfo, msg)})
	}
	hist := d.History()
	if len(hist) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(hist))
	}
	if hist[0].Message != "d" || hist[2].Message != "b" {
		t.Fatalf("expected newest-first d,c,b; got %s,%s,%s", hist[0].Message, hist[1].Message, hist[2].Message)
	}
}
