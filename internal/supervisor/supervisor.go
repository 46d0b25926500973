// Package supervisor drives the fixed-interval control cycle and owns the
// self-healing policy: consecutive cycle failures are counted against a
// budget, the budget triggers a bounded number of restart sequences, and an
// exhausted restart allowance halts the loop for good.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"field-controller/internal/config"
	"field-controller/internal/display"
	"field-controller/internal/metrics"
	"field-controller/internal/model"
	"field-controller/internal/notify"
	"field-controller/internal/store"
	"field-controller/pkg/clock"
	"field-controller/pkg/mqttx"
)

// Poller produces one reading per cycle; sensor failures ride inside the
// reading, they never abort the poll.
type Poller interface {
	Poll(ctx context.Context) model.Reading
}

// Evaluator turns a reading into alerts plus an irrigation recommendation.
type Evaluator interface {
	Evaluate(r model.Reading, st model.IrrigationStatus) ([]model.Alert, bool)
}

// Irrigator is the idle/active valve state machine.
type Irrigator interface {
	Activate(ctx context.Context, d time.Duration, manual bool) (bool, *model.Alert, error)
	EmergencyStop(ctx context.Context) (bool, error)
	SetAuto(enabled bool)
	Snapshot() model.IrrigationStatus
	Close()
}

// Dispatcher throttles outward alert traffic.
type Dispatcher interface {
	Offer(ctx context.Context, alerts []model.Alert) []model.Alert
}

// HealthSampler probes host health on demand.
type HealthSampler interface {
	Sample(ctx context.Context) ([]model.Alert, model.HealthSnapshot, error)
}

// Resetter is a collaborator the restart sequence can bounce.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ReportRunner generates the daily report on demand.
type ReportRunner interface {
	Generate(ctx context.Context, day time.Time) error
}

// Deps carries the supervisor's collaborators. Poller, Evaluator, Irrigation,
// Alerts, Health and Notifier are required; the rest may be nil.
type Deps struct {
	Poller     Poller
	Evaluator  Evaluator
	Irrigation Irrigator
	Alerts     Dispatcher
	Health     HealthSampler
	Notifier   notify.Notifier
	Recorder   store.Recorder
	Display    display.Display
	Status     mqttx.IPublisher
	Reports    ReportRunner
	Resetters  []Resetter
	Metrics    *metrics.Metrics
	Clock      clock.Clock
}

type Supervisor struct {
	cfg  config.Config
	deps Deps
	clk  clock.Clock

	mu                sync.Mutex
	seq               uint64
	consecutiveErrors int
	restartCount      int
	halted            bool
	lastHealth        time.Time
	startedAt         time.Time
	status            model.CycleStatus
}

func New(cfg config.Config, deps Deps) (*Supervisor, error) {
	if deps.Poller == nil {
		return nil, errors.New("supervisor: nil poller")
	}
	if deps.Evaluator == nil {
		return nil, errors.New("supervisor: nil evaluator")
	}
	if deps.Irrigation == nil {
		return nil, errors.New("supervisor: nil irrigation controller")
	}
	if deps.Alerts == nil {
		return nil, errors.New("supervisor: nil alert dispatcher")
	}
	if deps.Health == nil {
		return nil, errors.New("supervisor: nil health sampler")
	}
	if deps.Notifier == nil {
		return nil, errors.New("supervisor: nil notifier")
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &Supervisor{cfg: cfg, deps: deps, clk: clk}, nil
}

// Run executes the control loop until ctx is canceled or the restart budget
// is exhausted. Both exits are orderly; the caller maps them to exit code 0.
func (s *Supervisor) Run(ctx context.Context) error {
	now := s.clk.Now()
	s.mu.Lock()
	s.startedAt = now
	s.lastHealth = now
	s.mu.Unlock()

	s.sendLifecycle(ctx, "startup", notify.StartupData{Field: s.cfg.FieldName, Mode: s.cfg.Mode}, notify.PriorityNormal)
	log.Printf("supervisor: loop started, interval %s", s.cfg.CycleInterval)

	for {
		select {
		case <-ctx.Done():
			return s.cleanup(true)
		default:
		}

		cycleStart := s.clk.Now()
		reading, err := s.cycle(ctx)
		halted := s.finishCycle(ctx, reading, err)
		if halted {
			return s.cleanup(false)
		}

		elapsed := s.clk.Now().Sub(cycleStart)
		if s.deps.Metrics != nil {
			s.deps.Metrics.CycleDuration.Observe(elapsed.Seconds())
		}
		if elapsed > s.cfg.CycleInterval {
			log.Printf("supervisor: cycle took %s, exceeding the %s interval", elapsed.Round(time.Millisecond), s.cfg.CycleInterval)
			continue
		}
		timer := time.NewTimer(s.cfg.CycleInterval - elapsed)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// cycle runs one iteration. Only irrigation activation and health sampling
// failures count toward the error budget; poll, persist, dispatch and
// publish problems are handled where they happen.
func (s *Supervisor) cycle(ctx context.Context) (model.Reading, error) {
	reading := s.deps.Poller.Poll(ctx)

	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.Append(ctx, reading); err != nil {
			log.Printf("supervisor: persist reading: %v", err)
		}
	}

	var failures []string

	alerts, recommended := s.deps.Evaluator.Evaluate(reading, s.deps.Irrigation.Snapshot())
	if recommended {
		started, alert, err := s.deps.Irrigation.Activate(ctx, s.cfg.IrrigationDuration, false)
		if err != nil {
			failures = append(failures, fmt.Sprintf("irrigation activate: %v", err))
		}
		if started && alert != nil {
			alerts = append(alerts, *alert)
			if s.deps.Metrics != nil {
				s.deps.Metrics.IrrigationActivations.Inc()
			}
		}
	}

	s.deps.Alerts.Offer(ctx, alerts)

	if s.healthDue() {
		healthAlerts, snap, err := s.deps.Health.Sample(ctx)
		if err != nil {
			failures = append(failures, fmt.Sprintf("health sample: %v", err))
		} else {
			if s.deps.Metrics != nil {
				s.deps.Metrics.CPUTemp.Set(snap.CPUTemp)
				s.deps.Metrics.MemoryPct.Set(snap.MemoryPct)
				s.deps.Metrics.DiskPct.Set(snap.DiskPct)
			}
			if len(healthAlerts) > 0 {
				s.deps.Alerts.Offer(ctx, healthAlerts)
			}
		}
	}

	if len(failures) == 0 {
		return reading, nil
	}
	return reading, errors.New(strings.Join(failures, "; "))
}

// finishCycle updates the error accounting, applies the restart policy, and
// publishes the cycle summary. It reports whether the loop has halted.
func (s *Supervisor) finishCycle(ctx context.Context, reading model.Reading, cycleErr error) bool {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	if cycleErr != nil {
		s.consecutiveErrors++
	} else {
		s.consecutiveErrors = 0
	}
	consecutive := s.consecutiveErrors
	s.mu.Unlock()

	if cycleErr != nil {
		log.Printf("supervisor: cycle %d failed: %v (%d consecutive)", seq, cycleErr, consecutive)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.CyclesTotal.Inc()
		if cycleErr != nil {
			s.deps.Metrics.CycleErrorsTotal.Inc()
		}
		s.deps.Metrics.ConsecutiveErrors.Set(float64(consecutive))
	}

	if consecutive > s.cfg.ErrorBudget {
		s.exhaustBudget(ctx, consecutive)
	}

	st := s.publishStatus(reading)
	s.updateDisplay(st)
	return st.Halted
}

func (s *Supervisor) exhaustBudget(ctx context.Context, consecutive int) {
	if !s.cfg.AutoRestart {
		log.Printf("supervisor: %d consecutive errors exceed budget %d, auto-restart disabled", consecutive, s.cfg.ErrorBudget)
		return
	}

	s.mu.Lock()
	restarts := s.restartCount
	s.mu.Unlock()
	if restarts >= s.cfg.MaxRestarts {
		s.halt(ctx)
		return
	}
	s.restart(ctx, consecutive)
}

// restart bounces every resettable collaborator and clears the error count.
func (s *Supervisor) restart(ctx context.Context, consecutive int) {
	s.mu.Lock()
	s.restartCount++
	restart := s.restartCount
	s.consecutiveErrors = 0
	s.mu.Unlock()

	log.Printf("supervisor: restart sequence %d of %d after %d consecutive errors", restart, s.cfg.MaxRestarts, consecutive)
	s.sendLifecycle(ctx, "restart", notify.LifecycleData{
		Field:   s.cfg.FieldName,
		Errors:  consecutive,
		Restart: restart,
		Max:     s.cfg.MaxRestarts,
	}, notify.PriorityHigh)

	if _, err := s.deps.Irrigation.EmergencyStop(ctx); err != nil {
		log.Printf("supervisor: valve stop during restart: %v", err)
	}
	for _, r := range s.deps.Resetters {
		if err := r.Reset(ctx); err != nil {
			log.Printf("supervisor: collaborator reset: %v", err)
		}
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.RestartsTotal.Inc()
		s.deps.Metrics.ConsecutiveErrors.Set(0)
	}
}

// halt is terminal: one final notification, valve off, loop exit.
func (s *Supervisor) halt(ctx context.Context) {
	s.mu.Lock()
	if s.halted {
		s.mu.Unlock()
		return
	}
	s.halted = true
	s.mu.Unlock()

	log.Printf("supervisor: restart allowance (%d) exhausted, halting permanently", s.cfg.MaxRestarts)
	s.sendLifecycle(ctx, "halt", notify.LifecycleData{Field: s.cfg.FieldName, Max: s.cfg.MaxRestarts}, notify.PriorityHigh)
	if _, err := s.deps.Irrigation.EmergencyStop(ctx); err != nil {
		log.Printf("supervisor: valve stop during halt: %v", err)
	}
}

// healthDue reports whether the health interval elapsed, advancing the gate
// when it fires so a failed sample still waits a full interval.
func (s *Supervisor) healthDue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clk.Now()
	if now.Sub(s.lastHealth) < s.cfg.HealthInterval {
		return false
	}
	s.lastHealth = now
	return true
}

// publishStatus assembles the cycle summary, stores it for the admin
// surface, pushes gauges and best-effort publishes it on the status topic.
func (s *Supervisor) publishStatus(reading model.Reading) model.CycleStatus {
	irr := s.deps.Irrigation.Snapshot()
	now := s.clk.Now()

	s.mu.Lock()
	s.status = model.CycleStatus{
		FieldID:           s.cfg.FieldID,
		Seq:               s.seq,
		At:                now,
		Reading:           reading,
		Irrigation:        irr,
		ConsecutiveErrors: s.consecutiveErrors,
		RestartCount:      s.restartCount,
		Halted:            s.halted,
		UptimeSeconds:     int64(now.Sub(s.startedAt).Seconds()),
	}
	st := s.status
	s.mu.Unlock()

	if s.deps.Metrics != nil {
		m := s.deps.Metrics
		if reading.Temperature != nil {
			m.Temperature.Set(*reading.Temperature)
		}
		if reading.Humidity != nil {
			m.Humidity.Set(*reading.Humidity)
		}
		if reading.SoilMoisture != nil {
			m.SoilMoisture.Set(*reading.SoilMoisture)
		}
		if irr.Active {
			m.IrrigationActive.Set(1)
		} else {
			m.IrrigationActive.Set(0)
		}
		for _, e := range reading.Errors {
			m.SensorErrors.WithLabelValues(e.Sensor).Inc()
		}
	}

	if s.deps.Status != nil {
		if err := s.deps.Status.PublishJSON(s.cfg.StatusTopic(), st); err != nil {
			log.Printf("supervisor: status publish: %v", err)
		}
	}
	return st
}

func (s *Supervisor) updateDisplay(st model.CycleStatus) {
	if s.deps.Display == nil {
		return
	}
	state := "OK"
	switch {
	case st.Halted:
		state = "HALTED"
	case st.Irrigation.Active:
		state = "WATERING"
	case st.Reading.RainDetected:
		state = "RAIN"
	case st.ConsecutiveErrors > 0:
		state = fmt.Sprintf("ERR:%d", st.ConsecutiveErrors)
	}
	line1 := fmt.Sprintf("T:%s H:%s", fmtOpt(st.Reading.Temperature, "C"), fmtOpt(st.Reading.Humidity, "%"))
	line2 := fmt.Sprintf("S:%s %s", fmtOpt(st.Reading.SoilMoisture, "%"), state)
	if err := s.deps.Display.Show(line1, line2); err != nil {
		log.Printf("supervisor: display: %v", err)
	}
}

// cleanup is the shared exit path for graceful shutdown and policy halt.
func (s *Supervisor) cleanup(graceful bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if graceful {
		log.Print("supervisor: shutting down")
		s.sendLifecycle(ctx, "shutdown", notify.LifecycleData{Field: s.cfg.FieldName}, notify.PriorityNormal)
	}
	s.deps.Irrigation.Close()

	s.mu.Lock()
	st := s.status
	st.Irrigation = s.deps.Irrigation.Snapshot()
	st.Halted = s.halted
	s.status = st
	s.mu.Unlock()

	if s.deps.Status != nil {
		if err := s.deps.Status.PublishJSON(s.cfg.StatusTopic(), st); err != nil {
			log.Printf("supervisor: final status publish: %v", err)
		}
	}
	if s.deps.Display != nil {
		if err := s.deps.Display.Show(s.cfg.FieldName, "stopped"); err != nil {
			log.Printf("supervisor: display: %v", err)
		}
	}
	return nil
}

// Status returns the latest cycle summary for the admin surface.
func (s *Supervisor) Status() model.CycleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// OfferThreats forwards detection alerts to the dispatcher outside the
// cycle; the dispatcher serializes against in-cycle traffic.
func (s *Supervisor) OfferThreats(alerts []model.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.deps.Alerts.Offer(ctx, alerts)
}

// ManualIrrigate starts watering on operator request, bypassing auto mode
// and cooldown. The returned error includes the already-running case.
func (s *Supervisor) ManualIrrigate(ctx context.Context, d time.Duration) error {
	started, alert, err := s.deps.Irrigation.Activate(ctx, d, true)
	if err != nil {
		return err
	}
	if !started {
		return errors.New("irrigation already running")
	}
	if alert != nil {
		s.deps.Alerts.Offer(ctx, []model.Alert{*alert})
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.IrrigationActivations.Inc()
	}
	return nil
}

// EmergencyStop closes the valve immediately. It reports false when the
// valve was already idle. The notification goes straight to the notifier:
// this is the explicit override that skips dispatcher cooldowns.
func (s *Supervisor) EmergencyStop(ctx context.Context) (bool, error) {
	snap := s.deps.Irrigation.Snapshot()
	stopped, err := s.deps.Irrigation.EmergencyStop(ctx)
	if !stopped {
		return false, err
	}
	ran := "0s"
	if !snap.StartedAt.IsZero() {
		ran = s.clk.Now().Sub(snap.StartedAt).Round(time.Second).String()
	}
	s.sendLifecycle(ctx, "emergency-stop", notify.LifecycleData{Field: s.cfg.FieldName, Ran: ran}, notify.PriorityHigh)
	return true, err
}

// SetAuto toggles automatic irrigation.
func (s *Supervisor) SetAuto(enabled bool) {
	s.deps.Irrigation.SetAuto(enabled)
}

// ReportNow generates today's report immediately.
func (s *Supervisor) ReportNow(ctx context.Context) error {
	if s.deps.Reports == nil {
		return errors.New("reporting disabled")
	}
	return s.deps.Reports.Generate(ctx, s.clk.Now())
}

func (s *Supervisor) sendLifecycle(ctx context.Context, name string, data interface{}, prio notify.Priority) {
	msg, err := notify.Render(name, data)
	if err != nil {
		log.Printf("supervisor: render %s: %v", name, err)
		return
	}
	if err := s.deps.Notifier.Send(ctx, msg, prio); err != nil {
		log.Printf("supervisor: %s notification: %v", name, err)
	}
}

func fmtOpt(v *float64, unit string) string {
	if v == nil {
		return "--"
	}
	return fmt.Sprintf("%.1f%s", *v, unit)
}
