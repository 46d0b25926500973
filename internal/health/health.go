// Package health samples host resources and raises alerts against the
// configured warning and critical bounds. The sampling interval is owned by
// the caller; Sample runs every time it is invoked.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"field-controller/internal/config"
	"field-controller/internal/model"
	"field-controller/pkg/clock"
)

type Monitor struct {
	probe Probe
	th    config.Thresholds
	clk   clock.Clock

	mu   sync.Mutex
	last model.HealthSnapshot
}

func NewMonitor(probe Probe, th config.Thresholds, clk clock.Clock) *Monitor {
	if clk == nil {
		clk = clock.System()
	}
	return &Monitor{probe: probe, th: th, clk: clk}
}

// Sample probes the host once and converts threshold breaches into alerts.
func (m *Monitor) Sample(ctx context.Context) ([]model.Alert, model.HealthSnapshot, error) {
	snap, err := m.probe.Sample(ctx)
	if err != nil {
		return nil, model.HealthSnapshot{}, fmt.Errorf("health probe: %w", err)
	}
	snap.At = m.clk.Now()

	m.mu.Lock()
	m.last = snap
	m.mu.Unlock()

	var alerts []model.Alert
	if snap.CPUTemp > 0 {
		if a, ok := check(model.AlertHealthCPU, "cpu temperature", "C", snap.CPUTemp, m.th.CPUWarn, m.th.CPUCrit, snap.At); ok {
			alerts = append(alerts, a)
		}
	}
	if a, ok := check(model.AlertHealthMemory, "memory usage", "%", snap.MemoryPct, m.th.MemWarn, m.th.MemCrit, snap.At); ok {
		alerts = append(alerts, a)
	}
	if a, ok := check(model.AlertHealthDisk, "disk usage", "%", snap.DiskPct, m.th.DiskWarn, m.th.DiskCrit, snap.At); ok {
		alerts = append(alerts, a)
	}
	return alerts, snap, nil
}

// Last returns the most recent snapshot, zero before the first sample.
func (m *Monitor) Last() model.HealthSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func check(cat model.AlertCategory, what, unit string, value, warn, crit float64, at time.Time) (model.Alert, bool) {
	var sev model.Severity
	var bound float64
	switch {
	case value > crit:
		sev, bound = model.SeverityCritical, crit
	case value > warn:
		sev, bound = model.SeverityWarning, warn
	default:
		return model.Alert{}, false
	}
	b := bound
	return model.Alert{
		Category:  cat,
		Severity:  sev,
		Message:   fmt.Sprintf("%s %.1f%s above %.1f%s", what, value, unit, bound, unit),
		Value:     value,
		Threshold: &b,
		At:        at,
	}, true
}
