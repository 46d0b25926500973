// Package detect turns camera detection events into threat alerts. The
// camera service publishes per-frame classifications; only configured threat
// classes matter, and a label that alerted recently stays quiet until its
// window expires.
package detect

import (
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"field-controller/internal/model"
	"field-controller/pkg/clock"
	"field-controller/pkg/dedup"
	"field-controller/pkg/mqttx"
)

const (
	// minConfidence drops low-quality classifications at the door.
	minConfidence = 0.5
	// maxLabels bounds how many distinct labels one event may alert on.
	maxLabels = 2
)

// OfferFunc receives the threat alerts produced from one event.
type OfferFunc func(alerts []model.Alert)

type Consumer struct {
	classes map[string]struct{}
	deduper *dedup.Deduper
	offer   OfferFunc
	clk     clock.Clock
}

func NewConsumer(classes []string, window time.Duration, offer OfferFunc, clk clock.Clock) *Consumer {
	if clk == nil {
		clk = clock.System()
	}
	set := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		set[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	return &Consumer{
		classes: set,
		deduper: dedup.New(window, 256),
		offer:   offer,
		clk:     clk,
	}
}

// Handler returns the MQTT handler for the detection topic.
func (c *Consumer) Handler() mqtt.MessageHandler {
	return mqttx.JSONHandler("detect", c.Accept)
}

// Accept filters one event down to alert-worthy detections and forwards the
// resulting alerts, at most one per distinct label.
func (c *Consumer) Accept(ev model.DetectionEvent) {
	at := ev.At
	if at.IsZero() {
		at = c.clk.Now()
	}

	var alerts []model.Alert
	seen := make(map[string]struct{}, maxLabels)
	for _, det := range ev.Detections {
		label := strings.ToLower(strings.TrimSpace(det.Label))
		if label == "" || det.Confidence < minConfidence {
			continue
		}
		if _, ok := c.classes[label]; !ok {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		if len(seen) >= maxLabels {
			break
		}
		if !c.deduper.ShouldProcess(label) {
			log.Printf("detect: %s still inside alert window, skipping", label)
			continue
		}
		seen[label] = struct{}{}
		alerts = append(alerts, model.Alert{
			Category: model.AlertThreat,
			Severity: model.SeverityCritical,
			Message:  fmt.Sprintf("%s detected near enclosure (%.0f%% confidence)", label, det.Confidence*100),
			Value:    det.Confidence,
			At:       at,
		})
	}
	if len(alerts) == 0 {
		return
	}
	log.Printf("detect: %d threat alert(s) from %s", len(alerts), ev.Source)
	c.offer(alerts)
}
