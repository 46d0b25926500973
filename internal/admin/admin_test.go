package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"field-controller/internal/model"
)

type stubStatus struct {
	status model.CycleStatus
}

func (s stubStatus) Status() model.CycleStatus { return s.status }

type stubAlerts struct {
	alerts []model.Alert
}

func (s stubAlerts) History() []model.Alert { return s.alerts }

func get(t *testing.T, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestReadyzOK(t *testing.T) {
	s := New(":0", nil, stubStatus{}, stubAlerts{})
	rec := get(t, s.handleReadyz)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode readyz: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("expected ok, got %s", body.Status)
	}
}

func TestReadyzDegradedOnErrors(t *testing.T) {
	s := New(":0", nil, stubStatus{status: model.CycleStatus{ConsecutiveErrors: 3}}, stubAlerts{})
	rec := get(t, s.handleReadyz)
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded must still serve, got %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode readyz: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("expected degraded, got %s", body.Status)
	}
}

func TestReadyzDegradedOnDegradedReading(t *testing.T) {
	s := New(":0", nil, stubStatus{status: model.CycleStatus{Reading: model.Reading{Degraded: true}}}, stubAlerts{})
	rec := get(t, s.handleReadyz)
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode readyz: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("expected degraded, got %s", body.Status)
	}
}

func TestReadyzDownWhenHalted(t *testing.T) {
	s := New(":0", nil, stubStatus{status: model.CycleStatus{Halted: true}}, stubAlerts{})
	rec := get(t, s.handleReadyz)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when halted, got %d", rec.Code)
	}
}

func TestStatusServesCycleStatus(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s := New(":0", nil, stubStatus{status: model.CycleStatus{FieldID: "field-1", Seq: 42, At: now}}, stubAlerts{})
	rec := get(t, s.handleStatus)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body model.CycleStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if body.FieldID != "field-1" || body.Seq != 42 {
		t.Fatalf("unexpected status body %+v", body)
	}
}

func TestAlertsEmptyIsArray(t *testing.T) {
	s := New(":0", nil, stubStatus{}, stubAlerts{})
	rec := get(t, s.handleAlerts)
	if got := rec.Body.String(); got != "[]\n" {
		t.Fatalf("expected empty JSON array, got %q", got)
	}
}

func TestAlertsServesHistory(t *testing.T) {
	alerts := []model.Alert{{Category: model.AlertSoilLow, Severity: model.SeverityWarning, Message: "soil low"}}
	s := New(":0", nil, stubStatus{}, stubAlerts{alerts: alerts})
	rec := get(t, s.handleAlerts)
	var body []model.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(body) != 1 || body[0].Category != model.AlertSoilLow {
		t.Fatalf("unexpected alerts body %+v", body)
	}
}
