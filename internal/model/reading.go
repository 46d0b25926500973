package model

import "time"

// SensorKind identifies what a sensor source measures.
type SensorKind string

const (
	KindTemperature SensorKind = "temperature"
	KindHumidity    SensorKind = "humidity"
	KindSoil        SensorKind = "soil"
	KindRain        SensorKind = "rain"
	KindLight       SensorKind = "light"
	KindCPUTemp     SensorKind = "cpu_temp"
)

// SensorError records one collaborator failure inside a poll.
type SensorError struct {
	Sensor string `json:"sensor"`
	Reason string `json:"reason"`
}

// Reading is one cycle's normalized sensor snapshot. A metric stays nil when
// its sensor failed that cycle; the failure is listed in Errors instead of
// aborting the poll.
type Reading struct {
	Timestamp    time.Time     `json:"timestamp"`
	Temperature  *float64      `json:"temperature,omitempty"`
	Humidity     *float64      `json:"humidity,omitempty"`
	SoilMoisture *float64      `json:"soil_moisture,omitempty"`
	Light        *float64      `json:"light,omitempty"`
	CPUTemp      *float64      `json:"cpu_temp,omitempty"`
	RainDetected bool          `json:"rain_detected"`
	Errors       []SensorError `json:"errors,omitempty"`
	Degraded     bool          `json:"degraded,omitempty"`
}

func (r Reading) ErrorCount() int { return len(r.Errors) }

// FailedSensors lists the names of sensors that errored, in poll order.
func (r Reading) FailedSensors() []string {
	if len(r.Errors) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		names = append(names, e.Sensor)
	}
	return names
}
