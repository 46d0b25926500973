// Package dispatch throttles outward notifications. Alerts arrive in
// per-cycle batches; each dispatch group carries its own cooldown window so
// routine sensor chatter never starves threat or health traffic.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"field-controller/internal/metrics"
	"field-controller/internal/model"
	"field-controller/internal/notify"
	"field-controller/pkg/clock"
)

const (
	GroupSensor = "sensor"
	GroupThreat = "threat"
	GroupHealth = "health"

	// maxCombined caps how many alerts one outward message carries.
	maxCombined = 3

	defaultSensorCooldown = 5 * time.Minute
	defaultThreatCooldown = 10 * time.Minute
	defaultHistorySize    = 64
)

// Dispatcher rate-limits alert batches and forwards the survivors to the
// notifier. The mutex serializes sends so last-dispatch timestamps advance
// in the same order messages leave.
type Dispatcher struct {
	notifier notify.Notifier
	field    string
	clk      clock.Clock
	met      *metrics.Metrics

	mu       sync.Mutex
	windows  map[string]time.Duration
	lastSent map[string]time.Time
	history  *ring
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the default clock.
func WithClock(clk clock.Clock) Option {
	return func(d *Dispatcher) {
		if clk != nil {
			d.clk = clk
		}
	}
}

// WithMetrics attaches the controller metric bundle.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.met = m
	}
}

// WithSensorCooldown sets the minimum interval between sensor-group sends.
func WithSensorCooldown(w time.Duration) Option {
	return func(d *Dispatcher) {
		if w >= 0 {
			d.windows[GroupSensor] = w
		}
	}
}

// WithThreatCooldown sets the minimum interval between threat-group sends.
func WithThreatCooldown(w time.Duration) Option {
	return func(d *Dispatcher) {
		if w >= 0 {
			d.windows[GroupThreat] = w
		}
	}
}

// WithHistorySize sets how many recent alerts the status surface keeps.
func WithHistorySize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.history = newRing(n)
		}
	}
}

// New constructs a dispatcher. field names the installation in outward
// messages.
func New(notifier notify.Notifier, field string, opts ...Option) (*Dispatcher, error) {
	if notifier == nil {
		return nil, errors.New("dispatch: nil notifier")
	}
	d := &Dispatcher{
		notifier: notifier,
		field:    field,
		clk:      clock.System(),
		windows: map[string]time.Duration{
			GroupSensor: defaultSensorCooldown,
			GroupThreat: defaultThreatCooldown,
			GroupHealth: 0,
		},
		lastSent: make(map[string]time.Time),
		history:  newRing(defaultHistorySize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Offer records every alert locally, drops info-severity ones from outward
// delivery, and sends at most one combined message per group whose cooldown
// has elapsed. It returns the alerts that actually went out.
func (d *Dispatcher) Offer(ctx context.Context, alerts []model.Alert) []model.Alert {
	if len(alerts) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	byGroup := make(map[string][]model.Alert)
	for _, a := range alerts {
		d.history.push(a)
		if a.Severity == model.SeverityInfo {
			log.Printf("dispatch: info %s: %s", a.Category, a.Message)
			continue
		}
		g := groupFor(a.Category)
		byGroup[g] = append(byGroup[g], a)
	}

	var dispatched []model.Alert
	for _, g := range []string{GroupThreat, GroupHealth, GroupSensor} {
		cands := byGroup[g]
		if len(cands) == 0 {
			continue
		}
		if !d.windowElapsedLocked(g) {
			log.Printf("dispatch: withheld %d %s alert(s), cooldown active", len(cands), g)
			if d.met != nil {
				d.met.AlertsSuppressed.WithLabelValues(g).Add(float64(len(cands)))
			}
			continue
		}
		sent, err := d.sendLocked(ctx, g, cands)
		if err != nil {
			log.Printf("dispatch: %s send failed: %v", g, err)
			if d.met != nil {
				d.met.NotifyFailures.Inc()
			}
			continue
		}
		dispatched = append(dispatched, sent...)
		if d.met != nil {
			d.met.AlertsDispatched.WithLabelValues(g).Add(float64(len(sent)))
		}
	}
	return dispatched
}

// History returns recent alerts newest-first, dispatched or not.
func (d *Dispatcher) History() []model.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.snapshot()
}

// windowElapsedLocked reports whether the group may send again. A zero
// window never throttles.
func (d *Dispatcher) windowElapsedLocked(group string) bool {
	w := d.windows[group]
	if w <= 0 {
		return true
	}
	last, ok := d.lastSent[group]
	if !ok {
		return true
	}
	return d.clk.Now().Sub(last) >= w
}

// sendLocked combines the worst candidates into one message and forwards it.
// The last-dispatch timestamp moves only after the notifier accepts the send,
// so a failed attempt stays eligible next cycle.
func (d *Dispatcher) sendLocked(ctx context.Context, group string, cands []model.Alert) ([]model.Alert, error) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Severity.Rank() > cands[j].Severity.Rank()
	})
	top := cands
	if len(top) > maxCombined {
		top = top[:maxCombined]
	}

	prio := notify.PriorityNormal
	lines := make([]string, 0, len(top))
	for _, a := range top {
		lines = append(lines, fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Severity)), a.Message))
		if a.Severity == model.SeverityCritical {
			prio = notify.PriorityHigh
		}
	}
	msg, err := notify.Render("alerts", notify.AlertsData{
		Field: d.field,
		Count: len(cands),
		Lines: lines,
	})
	if err != nil {
		return nil, fmt.Errorf("render alerts message: %w", err)
	}
	if err := d.notifier.Send(ctx, msg, prio); err != nil {
		return nil, err
	}
	d.lastSent[group] = d.clk.Now()
	return top, nil
}

func groupFor(c model.AlertCategory) string {
	switch c {
	case model.AlertThreat:
		return GroupThreat
	case model.AlertHealthCPU, model.AlertHealthMemory, model.AlertHealthDisk:
		return GroupHealth
	default:
		return GroupSensor
	}
}
