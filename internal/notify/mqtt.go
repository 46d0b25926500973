package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"field-controller/pkg/clock"
	"field-controller/pkg/mqttx"
)

// Envelope is what the GSM/SMS bridge consumes from the notify topic.
type Envelope struct {
	Message  string    `json:"message"`
	Priority Priority  `json:"priority"`
	At       time.Time `json:"at"`
}

// MQTTNotifier publishes envelopes to the outbound topic behind a circuit
// breaker: with the broker gone the dispatcher gets an immediate failure and
// keeps its cooldown window open instead of stalling the cycle.
type MQTTNotifier struct {
	pub   mqttx.IPublisher
	topic string
	cb    *gobreaker.CircuitBreaker
	clk   clock.Clock
}

func NewMQTTNotifier(pub mqttx.IPublisher, topic string, clk clock.Clock) *MQTTNotifier {
	if clk == nil {
		clk = clock.System()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifier",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("notify: breaker %s %s -> %s", name, from, to)
		},
	})
	return &MQTTNotifier{pub: pub, topic: topic, cb: cb, clk: clk}
}

func (n *MQTTNotifier) Send(_ context.Context, message string, priority Priority) error {
	_, err := n.cb.Execute(func() (interface{}, error) {
		return nil, n.pub.PublishJSON(n.topic, Envelope{
			Message:  message,
			Priority: priority,
			At:       n.clk.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("notify send: %w", err)
	}
	return nil
}
