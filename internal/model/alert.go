package model

import "time"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for dispatch sorting; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

type AlertCategory string

const (
	AlertTemperatureLow  AlertCategory = "temperature-low"
	AlertTemperatureHigh AlertCategory = "temperature-high"
	AlertHumidityLow     AlertCategory = "humidity-low"
	AlertHumidityHigh    AlertCategory = "humidity-high"
	AlertSoilLow         AlertCategory = "soil-low"
	AlertRain            AlertCategory = "rain"
	AlertCPUHot          AlertCategory = "cpu-hot"
	AlertThreat          AlertCategory = "threat"
	AlertSystemError     AlertCategory = "system-error"
	AlertIrrigation      AlertCategory = "irrigation"
	AlertHealthCPU       AlertCategory = "health-cpu"
	AlertHealthMemory    AlertCategory = "health-memory"
	AlertHealthDisk      AlertCategory = "health-disk"
)

// Alert is one threshold or system finding. Threshold stays nil for findings
// that have no configured bound (threats, system errors).
type Alert struct {
	Category  AlertCategory `json:"category"`
	Severity  Severity      `json:"severity"`
	Message   string        `json:"message"`
	Value     float64       `json:"value,omitempty"`
	Threshold *float64      `json:"threshold,omitempty"`
	At        time.Time     `json:"at"`
}
