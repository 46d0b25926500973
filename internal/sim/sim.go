package sim

import (
	"context"
	"math/rand"
	"sync"

	"field-controller/internal/model"
	"field-controller/internal/sensor"
)

// Walker is a bounded random-walk source for bench runs. Drift biases the
// walk so quantities like soil moisture trend the way a real field does
// between waterings.
type Walker struct {
	name  string
	kind  model.SensorKind
	min   float64
	max   float64
	step  float64
	drift float64

	mu    sync.Mutex
	value float64
	rng   *rand.Rand
}

func NewWalker(name string, kind model.SensorKind, min, max, start, step, drift float64, seed int64) *Walker {
	return &Walker{
		name:  name,
		kind:  kind,
		min:   min,
		max:   max,
		step:  step,
		drift: drift,
		value: start,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (w *Walker) Name() string           { return w.name }
func (w *Walker) Kind() model.SensorKind { return w.kind }

func (w *Walker) Read(_ context.Context) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.value += w.drift + (w.rng.Float64()*2-1)*w.step
	w.value = clamp(w.value, w.min, w.max)
	return w.value, nil
}

// Wet forces the walker upward, imitating the moisture gain of a watering.
func (w *Walker) Wet(amount float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.value = clamp(w.value+amount, w.min, w.max)
}

// RainSim is a rain contact that is dry most of the time and wet in short
// random bursts.
type RainSim struct {
	name string
	odds float64

	mu   sync.Mutex
	wet  bool
	left int
	rng  *rand.Rand
}

func NewRainSim(name string, odds float64, seed int64) *RainSim {
	return &RainSim{name: name, odds: odds, rng: rand.New(rand.NewSource(seed))}
}

func (r *RainSim) Name() string           { return r.name }
func (r *RainSim) Kind() model.SensorKind { return model.KindRain }

func (r *RainSim) Read(_ context.Context) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wet {
		r.left--
		if r.left <= 0 {
			r.wet = false
		}
		return 1, nil
	}
	if r.rng.Float64() < r.odds {
		r.wet = true
		r.left = 5 + r.rng.Intn(10)
		return 1, nil
	}
	return 0, nil
}

// DefaultSources builds the bench sensor set. Soil drifts downward so the
// irrigation path exercises itself on a long enough run.
func DefaultSources(seed int64) []sensor.Source {
	return []sensor.Source{
		NewWalker("sim-temperature", model.KindTemperature, 5, 42, 24, 0.4, 0, seed),
		NewWalker("sim-humidity", model.KindHumidity, 15, 95, 55, 1.0, 0, seed+1),
		NewWalker("sim-soil", model.KindSoil, 5, 85, 45, 0.8, -0.15, seed+2),
		NewWalker("sim-light", model.KindLight, 0, 1000, 500, 25, 0, seed+3),
		NewWalker("sim-cpu-temp", model.KindCPUTemp, 40, 88, 52, 0.7, 0, seed+4),
		NewRainSim("sim-rain", 0.01, seed+5),
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
