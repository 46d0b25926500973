package irrigation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"field-controller/internal/model"
	"field-controller/pkg/clock"
)

// ActuatorSink drives the physical valve. Duration and timing enforcement
// stay in the controller; the sink only switches.
type ActuatorSink interface {
	Activate(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Options bound every activation.
type Options struct {
	Cooldown time.Duration
	Default  time.Duration
	Min      time.Duration
	Max      time.Duration
	Auto     bool
}

// Controller is the idle/active irrigation state machine. The evaluation
// path and the deferred-off timer serialize on mu; at most one activation is
// ever in flight.
type Controller struct {
	sink ActuatorSink
	opts Options
	clk  clock.Clock

	mu        sync.Mutex
	active    bool
	auto      bool
	startedAt time.Time
	lastEnd   time.Time
	timer     *time.Timer
	gen       uint64
}

func NewController(sink ActuatorSink, opts Options, clk clock.Clock) *Controller {
	if clk == nil {
		clk = clock.System()
	}
	if opts.Default <= 0 {
		opts.Default = 300 * time.Second
	}
	if opts.Min <= 0 {
		opts.Min = opts.Default
	}
	if opts.Max < opts.Min {
		opts.Max = opts.Min
	}
	return &Controller{sink: sink, opts: opts, clk: clk, auto: opts.Auto}
}

// Activate starts watering for d (0 means the configured default), clamped
// into [min, max]. Non-manual activations honor auto mode and the cooldown
// since the last run's end; while active every call is a no-op reporting
// started=false. On success it returns the alert announcing the start.
func (c *Controller) Activate(ctx context.Context, d time.Duration, manual bool) (bool, *model.Alert, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	if c.active {
		log.Printf("irrigation: already running since %s", c.startedAt.Format(time.RFC3339))
		return false, nil, nil
	}
	if !manual {
		if !c.auto {
			log.Println("irrigation: auto mode disabled, not starting")
			return false, nil, nil
		}
		if !c.cooldownElapsedLocked(now) {
			left := c.opts.Cooldown - now.Sub(c.lastEnd)
			log.Printf("irrigation: cooling down for another %s", left.Round(time.Second))
			return false, nil, nil
		}
	}

	d = c.clampLocked(d)
	if err := c.sink.Activate(ctx); err != nil {
		return false, nil, fmt.Errorf("activate valve: %w", err)
	}

	c.active = true
	c.startedAt = now
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(d, func() { c.finish(gen) })

	mode := "auto"
	if manual {
		mode = "manual"
	}
	log.Printf("irrigation: started (%s) for %s", mode, d)
	alert := model.Alert{
		Category: model.AlertIrrigation,
		Severity: model.SeverityWarning,
		Message:  fmt.Sprintf("irrigation started (%s) for %s", mode, d),
		Value:    d.Seconds(),
		At:       now,
	}
	return true, &alert, nil
}

// finish is the deferred active→idle transition. A canceled timer callback
// may already be waiting on the lock when a new run starts; the generation
// check drops it instead of cutting the new run short.
func (c *Controller) finish(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.gen != gen {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.sink.Stop(ctx); err != nil {
		log.Printf("irrigation: stop valve failed: %v", err)
	}
	ran := c.clk.Now().Sub(c.startedAt)
	c.idleLocked()
	log.Printf("irrigation: finished after %s", ran.Round(time.Second))
}

// EmergencyStop forces active→idle immediately, canceling the pending timer.
// Stopping while idle is a no-op that reports false rather than an error.
func (c *Controller) EmergencyStop(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return false, nil
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	err := c.sink.Stop(ctx)
	ran := c.clk.Now().Sub(c.startedAt)
	c.idleLocked()
	log.Printf("irrigation: emergency stop after %s", ran.Round(time.Second))
	if err != nil {
		return true, fmt.Errorf("stop valve: %w", err)
	}
	return true, nil
}

// SetAuto toggles automatic activation; manual commands are unaffected.
func (c *Controller) SetAuto(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auto = enabled
	log.Printf("irrigation: auto mode %v", enabled)
}

// Snapshot returns the state view the evaluator and status publisher read.
func (c *Controller) Snapshot() model.IrrigationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.IrrigationStatus{
		Active:      c.active,
		AutoEnabled: c.auto,
		StartedAt:   c.startedAt,
		LastEnd:     c.lastEnd,
	}
}

// Close stops any pending timer and leaves the valve off. Used on shutdown.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.sink.Stop(ctx); err != nil {
		log.Printf("irrigation: stop valve on close failed: %v", err)
	}
	if c.active {
		c.idleLocked()
	}
}

func (c *Controller) idleLocked() {
	c.active = false
	c.lastEnd = c.clk.Now()
	c.startedAt = time.Time{}
	c.timer = nil
}

func (c *Controller) cooldownElapsedLocked(now time.Time) bool {
	if c.lastEnd.IsZero() {
		return true
	}
	return now.Sub(c.lastEnd) >= c.opts.Cooldown
}

func (c *Controller) clampLocked(d time.Duration) time.Duration {
	if d <= 0 {
		d = c.opts.Default
	}
	if d < c.opts.Min {
		return c.opts.Min
	}
	if d > c.opts.Max {
		return c.opts.Max
	}
	return d
}
