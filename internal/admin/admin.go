// Package admin is the local HTTP surface: liveness, readiness, the latest
// cycle status, recent alerts and prometheus metrics.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"field-controller/internal/model"
)

// StatusSource exposes the latest cycle summary.
type StatusSource interface {
	Status() model.CycleStatus
}

// AlertSource exposes the recent alert history.
type AlertSource interface {
	History() []model.Alert
}

type Server struct {
	srv    *http.Server
	mqtt   mqtt.Client
	status StatusSource
	alerts AlertSource
}

// New builds the admin server. mqttClient may be nil when the daemon runs
// without a broker; readiness then ignores broker state.
func New(addr string, mqttClient mqtt.Client, status StatusSource, alerts AlertSource) *Server {
	s := &Server{mqtt: mqttClient, status: status, alerts: alerts}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/alerts", s.handleAlerts)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error { return s.srv.ListenAndServe() }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	type readiness struct {
		Status            string `json:"status"`
		MQTTConnected     bool   `json:"mqtt_connected"`
		ConsecutiveErrors int    `json:"consecutive_errors"`
		DegradedReading   bool   `json:"degraded_reading"`
		Halted            bool   `json:"halted"`
	}
	cs := s.status.Status()
	st := readiness{
		MQTTConnected:     s.mqtt != nil && s.mqtt.IsConnectionOpen(),
		ConsecutiveErrors: cs.ConsecutiveErrors,
		DegradedReading:   cs.Reading.Degraded,
		Halted:            cs.Halted,
	}
	brokerDown := s.mqtt != nil && !st.MQTTConnected

	code := http.StatusOK
	switch {
	case st.Halted || brokerDown:
		st.Status = "down"
		code = http.StatusServiceUnavailable
	case st.ConsecutiveErrors > 0 || st.DegradedReading:
		st.Status = "degraded"
	default:
		st.Status = "ok"
	}
	writeJSON(w, code, st)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	hist := s.alerts.History()
	if hist == nil {
		hist = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, hist)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
