package irrigation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"field-controller/pkg/clock"
)

// recordingSink counts valve switches and can fail on demand.
type recordingSink struct {
	mu          sync.Mutex
	activations int
	stops       int
	activateErr error
}

func (s *recordingSink) Activate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activateErr != nil {
		return s.activateErr
	}
	s.activations++
	return nil
}

func (s *recordingSink) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activations, s.stops
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testOptions() Options {
	return Options{
		Cooldown: 5 * time.Minute,
		Default:  10 * time.Millisecond,
		Min:      5 * time.Millisecond,
		Max:      50 * time.Millisecond,
		Auto:     true,
	}
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !c.Snapshot().Active {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("controller never returned to idle")
}

func TestActivateRunsAndFinishes(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink, testOptions(), &fakeClock{now: time.Now()})
	defer c.Close()

	started, alert, err := c.Activate(context.Background(), 0, false)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !started {
		t.Fatal("expected activation")
	}
	if alert == nil || !strings.Contains(alert.Message, "auto") {
		t.Fatalf("want auto start alert, got %+v", alert)
	}
	if !c.Snapshot().Active {
		t.Fatal("snapshot must show active")
	}

	waitIdle(t, c)
	acts, stops := sink.counts()
	if acts != 1 || stops < 1 {
		t.Fatalf("want 1 activation and a stop, got %d/%d", acts, stops)
	}
	if c.Snapshot().LastEnd.IsZero() {
		t.Fatal("finish must record the end time")
	}
}

func TestActivateWhileActiveIsNoop(t *testing.T) {
	sink := &recordingSink{}
	opts := testOptions()
	opts.Default = 200 * time.Millisecond
	opts.Max = 500 * time.Millisecond
	c := NewController(sink, opts, &fakeClock{now: time.Now()})
	defer c.Close()

	if started, _, _ := c.Activate(context.Background(), 0, false); !started {
		t.Fatal("first activation must start")
	}
	started, alert, err := c.Activate(context.Background(), 0, true)
	if err != nil || started || alert != nil {
		t.Fatalf("second activation must be a silent no-op, got started=%v alert=%v err=%v", started, alert, err)
	}
	acts, _ := sink.counts()
	if acts != 1 {
		t.Fatalf("valve must have opened once, got %d", acts)
	}
}

func TestAutoActivationHonorsModeAndCooldown(t *testing.T) {
	sink := &recordingSink{}
	clk := &fakeClock{now: time.Now()}
	c := NewController(sink, testOptions(), clk)
	defer c.Close()

	c.SetAuto(false)
	if started, _, _ := c.Activate(context.Background(), 0, false); started {
		t.Fatal("auto activation must not start with auto disabled")
	}
	// manual overrides the mode
	started, _, err := c.Activate(context.Background(), 0, true)
	if err != nil || !started {
		t.Fatalf("manual activation must start, got %v %v", started, err)
	}
	waitIdle(t, c)

	c.SetAuto(true)
	if started, _, _ := c.Activate(context.Background(), 0, false); started {
		t.Fatal("auto activation must wait out the cooldown")
	}
	clk.Add(6 * time.Minute)
	if started, _, _ := c.Activate(context.Background(), 0, false); !started {
		t.Fatal("elapsed cooldown must allow activation")
	}
}

func TestManualBypassesCooldown(t *testing.T) {
	sink := &recordingSink{}
	clk := &fakeClock{now: time.Now()}
	c := NewController(sink, testOptions(), clk)
	defer c.Close()

	if started, _, _ := c.Activate(context.Background(), 0, true); !started {
		t.Fatal("first manual run must start")
	}
	waitIdle(t, c)
	if started, _, err := c.Activate(context.Background(), 0, true); !started || err != nil {
		t.Fatalf("manual run must ignore the cooldown, got %v %v", started, err)
	}
}

func TestDurationClamped(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink, testOptions(), &fakeClock{now: time.Now()})
	defer c.Close()

	_, alert, err := c.Activate(context.Background(), time.Hour, true)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if alert.Value != testOptions().Max.Seconds() {
		t.Fatalf("hour request must clamp to max, got %v s", alert.Value)
	}
}

func TestActivateSinkFailure(t *testing.T) {
	sink := &recordingSink{activateErr: errors.New("relay jammed")}
	c := NewController(sink, testOptions(), &fakeClock{now: time.Now()})
	defer c.Close()

	started, alert, err := c.Activate(context.Background(), 0, true)
	if err == nil {
		t.Fatal("sink failure must surface")
	}
	if started || alert != nil {
		t.Fatalf("failed activation must not report started, got %v %v", started, alert)
	}
	if c.Snapshot().Active {
		t.Fatal("state must stay idle after a failed valve open")
	}
}

func TestEmergencyStop(t *testing.T) {
	sink := &recordingSink{}
	opts := testOptions()
	opts.Default = 500 * time.Millisecond
	opts.Max = time.Second
	c := NewController(sink, opts, &fakeClock{now: time.Now()})
	defer c.Close()

	if stopped, err := c.EmergencyStop(context.Background()); stopped || err != nil {
		t.Fatalf("idle stop must be a no-op, got %v %v", stopped, err)
	}

	if started, _, _ := c.Activate(context.Background(), 0, true); !started {
		t.Fatal("activation must start")
	}
	stopped, err := c.EmergencyStop(context.Background())
	if err != nil || !stopped {
		t.Fatalf("active stop must report true, got %v %v", stopped, err)
	}
	if c.Snapshot().Active {
		t.Fatal("state must be idle after emergency stop")
	}
	_, stops := sink.counts()
	if stops == 0 {
		t.Fatal("valve never switched off")
	}
}

func TestStaleTimerCannotCutNewRunShort(t *testing.T) {
	sink := &recordingSink{}
	opts := testOptions()
	opts.Default = 20 * time.Millisecond
	opts.Max = 300 * time.Millisecond
	c := NewController(sink, opts, &fakeClock{now: time.Now()})
	defer c.Close()

	if started, _, _ := c.Activate(context.Background(), 20*time.Millisecond, true); !started {
		t.Fatal("first run must start")
	}
	if stopped, _ := c.EmergencyStop(context.Background()); !stopped {
		t.Fatal("stop must succeed")
	}
	// second, longer run; the first run's canceled timer must not end it
	if started, _, _ := c.Activate(context.Background(), 200*time.Millisecond, true); !started {
		t.Fatal("second run must start")
	}
	time.Sleep(60 * time.Millisecond)
	if !c.Snapshot().Active {
		t.Fatal("second run ended early")
	}
	waitIdle(t, c)
}

var _ clock.Clock = (*fakeClock)(nil)
