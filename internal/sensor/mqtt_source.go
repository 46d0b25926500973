package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"field-controller/internal/model"
	"field-controller/pkg/clock"
	"field-controller/pkg/mqttx"
)

// ErrStale means no sufficiently fresh sample has arrived on the topic.
var ErrStale = errors.New("no fresh sample")

// MQTTSource exposes the latest sample seen on a sensor topic as a Source.
// Remote nodes (or fieldsim) publish; the poll path only reads the cell.
type MQTTSource struct {
	name       string
	kind       model.SensorKind
	staleAfter time.Duration
	clk        clock.Clock

	mu     sync.Mutex
	value  float64
	seenAt time.Time
}

func NewMQTTSource(name string, kind model.SensorKind, staleAfter time.Duration, clk clock.Clock) *MQTTSource {
	if staleAfter <= 0 {
		staleAfter = 90 * time.Second
	}
	if clk == nil {
		clk = clock.System()
	}
	return &MQTTSource{name: name, kind: kind, staleAfter: staleAfter, clk: clk}
}

func (s *MQTTSource) Name() string           { return s.name }
func (s *MQTTSource) Kind() model.SensorKind { return s.kind }

// Handler returns the MQTT callback that feeds this source.
func (s *MQTTSource) Handler() mqtt.MessageHandler {
	return mqttx.JSONHandler("sensor", func(sample model.SensorSample) {
		s.Accept(sample)
	})
}

// Accept records a sample when it matches this source's kind.
func (s *MQTTSource) Accept(sample model.SensorSample) {
	if sample.Kind != s.kind {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = sample.Value
	s.seenAt = s.clk.Now()
}

// Read returns the latest sample, or ErrStale when none arrived inside the
// freshness window, so the aggregator tags the cycle instead of reusing
// long-dead values.
func (s *MQTTSource) Read(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenAt.IsZero() {
		return 0, fmt.Errorf("%w on %s", ErrStale, s.name)
	}
	if age := s.clk.Now().Sub(s.seenAt); age > s.staleAfter {
		return 0, fmt.Errorf("%w on %s: last sample %s old", ErrStale, s.name, age.Round(time.Second))
	}
	return s.value, nil
}
