package model

import "time"

// SensorSample is one raw sensor value on the wire, published by remote
// sensor nodes or by the simulator.
type SensorSample struct {
	FieldID   string     `json:"field_id"`
	Sensor    string     `json:"sensor"`
	Kind      SensorKind `json:"kind"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
}
