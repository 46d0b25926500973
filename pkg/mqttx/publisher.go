package mqttx

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher is the publishing contract components depend on, so tests can
// substitute a recording fake.
type IPublisher interface {
	PublishJSON(topic string, v interface{}) error
}

// Publisher writes JSON payloads with a bounded wait per publish.
type Publisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
}

func NewPublisher(client mqtt.Client, qos byte, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{client: client, qos: qos, timeout: timeout}
}

// PublishJSON marshals v and publishes it, waiting at most the configured
// timeout for the broker acknowledgment.
func (p *Publisher) PublishJSON(topic string, v interface{}) error {
	return p.publish(topic, v, false)
}

// PublishRetained is PublishJSON with the retained flag, for last-known-state
// topics new subscribers should see immediately.
func (p *Publisher) PublishRetained(topic string, v interface{}) error {
	return p.publish(topic, v, true)
}

func (p *Publisher) publish(topic string, v interface{}, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal for %s: %w", topic, err)
	}
	token := p.client.Publish(topic, p.qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: timeout after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
