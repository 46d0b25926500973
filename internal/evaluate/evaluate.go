package evaluate

import (
	"fmt"
	"strings"
	"time"

	"field-controller/internal/config"
	"field-controller/internal/model"
	"field-controller/pkg/clock"
)

// Evaluator applies the configured bounds to one reading and produces the
// cycle's alerts plus at most one irrigation recommendation. It only reads
// the irrigation snapshot; the controller re-checks and owns the trigger.
type Evaluator struct {
	th       config.Thresholds
	cooldown time.Duration
	clk      clock.Clock
}

func New(th config.Thresholds, cooldown time.Duration, clk clock.Clock) *Evaluator {
	if clk == nil {
		clk = clock.System()
	}
	return &Evaluator{th: th, cooldown: cooldown, clk: clk}
}

func (e *Evaluator) Evaluate(r model.Reading, st model.IrrigationStatus) ([]model.Alert, bool) {
	now := e.clk.Now()
	var alerts []model.Alert
	recommend := false

	if r.Temperature != nil {
		t := *r.Temperature
		switch {
		case t < e.th.TempMin:
			alerts = append(alerts, mk(model.AlertTemperatureLow, model.SeverityWarning,
				fmt.Sprintf("temperature %.1f°C below minimum %.1f°C", t, e.th.TempMin), t, &e.th.TempMin, now))
		case t > e.th.TempMax:
			alerts = append(alerts, mk(model.AlertTemperatureHigh, model.SeverityWarning,
				fmt.Sprintf("temperature %.1f°C above maximum %.1f°C", t, e.th.TempMax), t, &e.th.TempMax, now))
		}
	}

	if r.Humidity != nil {
		h := *r.Humidity
		switch {
		case h < e.th.HumidityMin:
			alerts = append(alerts, mk(model.AlertHumidityLow, model.SeverityWarning,
				fmt.Sprintf("humidity %.1f%% below minimum %.1f%%", h, e.th.HumidityMin), h, &e.th.HumidityMin, now))
		case h > e.th.HumidityMax:
			alerts = append(alerts, mk(model.AlertHumidityHigh, model.SeverityWarning,
				fmt.Sprintf("humidity %.1f%% above maximum %.1f%%", h, e.th.HumidityMax), h, &e.th.HumidityMax, now))
		}
	}

	if r.RainDetected {
		alerts = append(alerts, mk(model.AlertRain, model.SeverityInfo,
			"rain detected, irrigation paused", 1, nil, now))
	}

	if r.SoilMoisture != nil && *r.SoilMoisture < e.th.SoilMin {
		soil := *r.SoilMoisture
		switch {
		case r.RainDetected:
			alerts = append(alerts, mk(model.AlertSoilLow, model.SeverityWarning,
				fmt.Sprintf("soil moisture %.1f%% below %.1f%%, irrigation suppressed by rain", soil, e.th.SoilMin), soil, &e.th.SoilMin, now))
		case !st.AutoEnabled:
			alerts = append(alerts, mk(model.AlertSoilLow, model.SeverityWarning,
				fmt.Sprintf("soil moisture %.1f%% below %.1f%%, auto-irrigation disabled", soil, e.th.SoilMin), soil, &e.th.SoilMin, now))
		case !e.cooldownElapsed(st, now):
			left := e.cooldown - now.Sub(st.LastEnd)
			alerts = append(alerts, mk(model.AlertSoilLow, model.SeverityWarning,
				fmt.Sprintf("soil moisture %.1f%% below %.1f%%, irrigation cooling down for %s", soil, e.th.SoilMin, left.Round(time.Second)), soil, &e.th.SoilMin, now))
		default:
			// Exactly one recommendation per evaluation; the controller
			// emits the trigger notification, not this record.
			recommend = true
			alerts = append(alerts, mk(model.AlertIrrigation, model.SeverityInfo,
				fmt.Sprintf("irrigation recommended, soil moisture %.1f%%", soil), soil, &e.th.SoilMin, now))
		}
	}

	if r.CPUTemp != nil {
		c := *r.CPUTemp
		switch {
		case c > e.th.CPUCrit:
			alerts = append(alerts, mk(model.AlertCPUHot, model.SeverityCritical,
				fmt.Sprintf("CPU temperature %.1f°C above critical %.1f°C", c, e.th.CPUCrit), c, &e.th.CPUCrit, now))
		case c > e.th.CPUWarn:
			alerts = append(alerts, mk(model.AlertCPUHot, model.SeverityWarning,
				fmt.Sprintf("CPU temperature %.1f°C above warning %.1f°C", c, e.th.CPUWarn), c, &e.th.CPUWarn, now))
		}
	}

	if n := r.ErrorCount(); n > 0 {
		sev := model.SeverityWarning
		if n > 2 {
			sev = model.SeverityCritical
		}
		alerts = append(alerts, mk(model.AlertSystemError, sev,
			fmt.Sprintf("%d sensor errors: %s", n, strings.Join(r.FailedSensors(), ", ")), float64(n), nil, now))
	}

	return alerts, recommend
}

func (e *Evaluator) cooldownElapsed(st model.IrrigationStatus, now time.Time) bool {
	if st.LastEnd.IsZero() {
		return true
	}
	return now.Sub(st.LastEnd) >= e.cooldown
}

func mk(cat model.AlertCategory, sev model.Severity, msg string, value float64, threshold *float64, at time.Time) model.Alert {
	var thr *float64
	if threshold != nil {
		v := *threshold
		thr = &v
	}
	return model.Alert{Category: cat, Severity: sev, Message: msg, Value: value, Threshold: thr, At: at}
}
