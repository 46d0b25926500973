package hardware

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"field-controller/internal/model"
	"field-controller/internal/sensor"
)

const adcMax = 1023.0

// Sources returns the rig's sensor collaborators in poll order.
func (r *Rig) Sources() []sensor.Source {
	return []sensor.Source{
		&shtSource{rig: r, name: "temperature", kind: model.KindTemperature},
		&shtSource{rig: r, name: "humidity", kind: model.KindHumidity},
		&adcSource{rig: r, name: "soil", kind: model.KindSoil, channel: r.pins.SoilChannel, inverted: true},
		&adcSource{rig: r, name: "light", kind: model.KindLight, channel: r.pins.LightChannel},
		&rainSource{rig: r},
		cpuTempSource{},
	}
}

// Valve returns the irrigation actuator bound to the relay pin.
func (r *Rig) Valve() *Valve {
	return &Valve{rig: r}
}

type Valve struct {
	rig *Rig
}

func (v *Valve) Activate(_ context.Context) error {
	v.rig.mu.Lock()
	defer v.rig.mu.Unlock()
	if err := v.rig.relay.On(); err != nil {
		return fmt.Errorf("valve on: %w", err)
	}
	return nil
}

func (v *Valve) Stop(_ context.Context) error {
	v.rig.mu.Lock()
	defer v.rig.mu.Unlock()
	if err := v.rig.relay.Off(); err != nil {
		return fmt.Errorf("valve off: %w", err)
	}
	return nil
}

type shtSource struct {
	rig  *Rig
	name string
	kind model.SensorKind
}

func (s *shtSource) Name() string           { return s.name }
func (s *shtSource) Kind() model.SensorKind { return s.kind }

func (s *shtSource) Read(_ context.Context) (float64, error) {
	s.rig.mu.Lock()
	defer s.rig.mu.Unlock()
	if s.kind == model.KindTemperature {
		v, err := s.rig.sht.Temperature()
		return float64(v), err
	}
	v, err := s.rig.sht.Humidity()
	return float64(v), err
}

// adcSource reads one MCP3008 channel and scales the 10-bit value to a
// percentage. Soil probes read high when dry, hence inverted.
type adcSource struct {
	rig      *Rig
	name     string
	kind     model.SensorKind
	channel  int
	inverted bool
}

func (s *adcSource) Name() string           { return s.name }
func (s *adcSource) Kind() model.SensorKind { return s.kind }

func (s *adcSource) Read(_ context.Context) (float64, error) {
	s.rig.mu.Lock()
	defer s.rig.mu.Unlock()
	raw, err := s.rig.adc.AnalogRead(strconv.Itoa(s.channel))
	if err != nil {
		return 0, fmt.Errorf("adc channel %d: %w", s.channel, err)
	}
	pct := float64(raw) / adcMax * 100
	if s.inverted {
		pct = 100 - pct
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

// rainSource reads the rain board's digital output; the board pulls the pin
// low when wet.
type rainSource struct {
	rig *Rig
}

func (s *rainSource) Name() string           { return "rain" }
func (s *rainSource) Kind() model.SensorKind { return model.KindRain }

func (s *rainSource) Read(_ context.Context) (float64, error) {
	s.rig.mu.Lock()
	defer s.rig.mu.Unlock()
	v, err := s.rig.adaptor.DigitalRead(s.rig.pins.Rain)
	if err != nil {
		return 0, fmt.Errorf("rain pin %s: %w", s.rig.pins.Rain, err)
	}
	if v == 0 {
		return 1, nil
	}
	return 0, nil
}

// cpuTempSource reads the SoC thermal zone in millidegrees.
type cpuTempSource struct{}

func (cpuTempSource) Name() string           { return "cpu-temp" }
func (cpuTempSource) Kind() model.SensorKind { return model.KindCPUTemp }

func (cpuTempSource) Read(_ context.Context) (float64, error) {
	raw, err := os.ReadFile("/sys/class/thermal/thermal_zone0/temp")
	if err != nil {
		return 0, fmt.Errorf("thermal zone: %w", err)
	}
	milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("thermal zone value: %w", err)
	}
	return milli / 1000, nil
}
