package detect

import (
	"sync"
	"testing"
	"time"

	"field-controller/internal/model"
)

type collector struct {
	mu     sync.Mutex
	alerts []model.Alert
}

func (c *collector) offer(alerts []model.Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alerts...)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

func event(dets ...model.Detection) model.DetectionEvent {
	return model.DetectionEvent{Source: "cam-1", Detections: dets, At: time.Now()}
}

func TestAcceptFiltersClassesAndConfidence(t *testing.T) {
	col := &collector{}
	c := NewConsumer([]string{"person", "dog"}, 10*time.Minute, col.offer, nil)

	c.Accept(event(
		model.Detection{Label: "person", Confidence: 0.91},
		model.Detection{Label: "tractor", Confidence: 0.99},
		model.Detection{Label: "dog", Confidence: 0.2},
	))

	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(col.alerts))
	}
	a := col.alerts[0]
	if a.Category != model.AlertThreat || a.Severity != model.SeverityCritical {
		t.Fatalf("expected critical threat alert, got %s %s", a.Severity, a.Category)
	}
	if a.Value != 0.91 {
		t.Fatalf("expected confidence carried as value, got %v", a.Value)
	}
}

func TestAcceptDedupsLabelInsideWindow(t *testing.T) {
	col := &collector{}
	c := NewConsumer([]string{"person"}, 10*time.Minute, col.offer, nil)

	c.Accept(event(model.Detection{Label: "person", Confidence: 0.9}))
	c.Accept(event(model.Detection{Label: "person", Confidence: 0.95}))
	if col.count() != 1 {
		t.Fatalf("expected repeat label suppressed, got %d alerts", col.count())
	}
}

func TestAcceptCapsDistinctLabels(t *testing.T) {
	col := &collector{}
	c := NewConsumer([]string{"person", "dog", "cat", "bird"}, 10*time.Minute, col.offer, nil)

	c.Accept(event(
		model.Detection{Label: "person", Confidence: 0.9},
		model.Detection{Label: "dog", Confidence: 0.9},
		model.Detection{Label: "cat", Confidence: 0.9},
		model.Detection{Label: "bird", Confidence: 0.9},
	))
	if col.count() != 2 {
		t.Fatalf("expected at most 2 labels per event, got %d alerts", col.count())
	}
}

func TestAcceptNormalizesLabelCase(t *testing.T) {
	col := &collector{}
	c := NewConsumer([]string{"Person"}, 10*time.Minute, col.offer, nil)

	c.Accept(event(model.Detection{Label: " PERSON ", Confidence: 0.9}))
	if col.count() != 1 {
		t.Fatalf("expected case-insensitive class match, got %d alerts", col.count())
	}
}

func TestAcceptEmptyEventNoCallback(t *testing.T) {
	called := false
	c := NewConsumer([]string{"person"}, 10*time.Minute, func([]model.Alert) { called = true }, nil)
	c.Accept(event())
	if called {
		t.Fatal("expected no callback for empty event")
	}
}
