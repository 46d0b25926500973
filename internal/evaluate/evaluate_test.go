package evaluate

import (
	"strings"
	"testing"
	"time"

	"field-controller/internal/config"
	"field-controller/internal/model"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testThresholds() config.Thresholds {
	return config.Thresholds{
		SoilMin:     30,
		TempMin:     10,
		TempMax:     35,
		HumidityMin: 40,
		HumidityMax: 80,
		CPUWarn:     70,
		CPUCrit:     80,
	}
}

func fptr(v float64) *float64 { return &v }

func reading(temp, hum, soil float64) model.Reading {
	return model.Reading{
		Timestamp:    time.Now(),
		Temperature:  fptr(temp),
		Humidity:     fptr(hum),
		SoilMoisture: fptr(soil),
	}
}

func autoIdle() model.IrrigationStatus {
	return model.IrrigationStatus{AutoEnabled: true}
}

func find(alerts []model.Alert, cat model.AlertCategory) *model.Alert {
	for i := range alerts {
		if alerts[i].Category == cat {
			return &alerts[i]
		}
	}
	return nil
}

func TestNominalReadingProducesNothing(t *testing.T) {
	e := New(testThresholds(), 5*time.Minute, fixedClock{time.Now()})
	alerts, recommend := e.Evaluate(reading(22, 60, 50), autoIdle())
	if len(alerts) != 0 {
		t.Fatalf("want no alerts, got %v", alerts)
	}
	if recommend {
		t.Fatal("nominal reading must not recommend irrigation")
	}
}

func TestBoundViolationsProduceWarnings(t *testing.T) {
	e := New(testThresholds(), 5*time.Minute, fixedClock{time.Now()})
	alerts, _ := e.Evaluate(reading(38, 15, 50), autoIdle())

	hot := find(alerts, model.AlertTemperatureHigh)
	if hot == nil {
		t.Fatalf("temperature-high alert missing, got %v", alerts)
	}
	if hot.Severity != model.SeverityWarning {
		t.Fatalf("want warning, got %s", hot.Severity)
	}
	if hot.Value != 38 || hot.Threshold == nil || *hot.Threshold != 35 {
		t.Fatalf("alert must carry value and threshold, got %+v", hot)
	}
	if find(alerts, model.AlertHumidityLow) == nil {
		t.Fatalf("humidity-low alert missing, got %v", alerts)
	}
}

func TestDrySoilRecommendsIrrigation(t *testing.T) {
	e := New(testThresholds(), 5*time.Minute, fixedClock{time.Now()})
	alerts, recommend := e.Evaluate(reading(22, 60, 20), autoIdle())
	if !recommend {
		t.Fatal("dry soil with auto enabled and no cooldown must recommend")
	}
	rec := find(alerts, model.AlertIrrigation)
	if rec == nil {
		t.Fatalf("irrigation record missing, got %v", alerts)
	}
	if rec.Severity != model.SeverityInfo {
		t.Fatalf("recommendation record must be info, got %s", rec.Severity)
	}
}

func TestRainSuppressesIrrigation(t *testing.T) {
	e := New(testThresholds(), 5*time.Minute, fixedClock{time.Now()})
	r := reading(22, 60, 20)
	r.RainDetected = true
	alerts, recommend := e.Evaluate(r, autoIdle())
	if recommend {
		t.Fatal("rain must suppress the recommendation")
	}
	soil := find(alerts, model.AlertSoilLow)
	if soil == nil {
		t.Fatalf("soil-low alert missing, got %v", alerts)
	}
	if !strings.Contains(soil.Message, "rain") {
		t.Fatalf("soil alert should name the rain suppression, got %q", soil.Message)
	}
	if find(alerts, model.AlertRain) == nil {
		t.Fatalf("rain info alert missing, got %v", alerts)
	}
}

func TestAutoDisabledSuppressesIrrigation(t *testing.T) {
	e := New(testThresholds(), 5*time.Minute, fixedClock{time.Now()})
	alerts, recommend := e.Evaluate(reading(22, 60, 20), model.IrrigationStatus{AutoEnabled: false})
	if recommend {
		t.Fatal("disabled auto mode must suppress the recommendation")
	}
	soil := find(alerts, model.AlertSoilLow)
	if soil == nil || !strings.Contains(soil.Message, "disabled") {
		t.Fatalf("soil alert should name the disabled mode, got %v", alerts)
	}
}

func TestCooldownSuppressesIrrigation(t *testing.T) {
	now := time.Now()
	e := New(testThresholds(), 5*time.Minute, fixedClock{now})
	st := model.IrrigationStatus{AutoEnabled: true, LastEnd: now.Add(-2 * time.Minute)}
	alerts, recommend := e.Evaluate(reading(22, 60, 20), st)
	if recommend {
		t.Fatal("cooldown must suppress the recommendation")
	}
	soil := find(alerts, model.AlertSoilLow)
	if soil == nil || !strings.Contains(soil.Message, "cooling down") {
		t.Fatalf("soil alert should name the cooldown, got %v", alerts)
	}

	st.LastEnd = now.Add(-6 * time.Minute)
	_, recommend = e.Evaluate(reading(22, 60, 20), st)
	if !recommend {
		t.Fatal("elapsed cooldown must allow the recommendation")
	}
}

func TestCPUBands(t *testing.T) {
	e := New(testThresholds(), 5*time.Minute, fixedClock{time.Now()})

	r := reading(22, 60, 50)
	r.CPUTemp = fptr(75)
	alerts, _ := e.Evaluate(r, autoIdle())
	hot := find(alerts, model.AlertCPUHot)
	if hot == nil || hot.Severity != model.SeverityWarning {
		t.Fatalf("want cpu warning at 75, got %v", alerts)
	}

	r.CPUTemp = fptr(85)
	alerts, _ = e.Evaluate(r, autoIdle())
	hot = find(alerts, model.AlertCPUHot)
	if hot == nil || hot.Severity != model.SeverityCritical {
		t.Fatalf("want cpu critical at 85, got %v", alerts)
	}
}

func TestSensorErrorsEscalate(t *testing.T) {
	e := New(testThresholds(), 5*time.Minute, fixedClock{time.Now()})

	r := reading(22, 60, 50)
	r.Errors = []model.SensorError{{Sensor: "soil", Reason: "read failed"}}
	alerts, _ := e.Evaluate(r, autoIdle())
	sys := find(alerts, model.AlertSystemError)
	if sys == nil || sys.Severity != model.SeverityWarning {
		t.Fatalf("want warning for 1 failure, got %v", alerts)
	}

	r.Errors = []model.SensorError{
		{Sensor: "soil", Reason: "read failed"},
		{Sensor: "light", Reason: "read failed"},
		{Sensor: "rain", Reason: "read failed"},
	}
	alerts, _ = e.Evaluate(r, autoIdle())
	sys = find(alerts, model.AlertSystemError)
	if sys == nil || sys.Severity != model.SeverityCritical {
		t.Fatalf("want critical for 3 failures, got %v", alerts)
	}
	if !strings.Contains(sys.Message, "soil") {
		t.Fatalf("system alert should name failed sensors, got %q", sys.Message)
	}
}

func TestMissingValuesAreSkipped(t *testing.T) {
	e := New(testThresholds(), 5*time.Minute, fixedClock{time.Now()})
	alerts, recommend := e.Evaluate(model.Reading{Timestamp: time.Now()}, autoIdle())
	if len(alerts) != 0 || recommend {
		t.Fatalf("empty reading must evaluate to nothing, got %v recommend=%v", alerts, recommend)
	}
}
