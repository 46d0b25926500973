package model

import "time"

// Detection is one classified object reported by the camera service.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// DetectionEvent is the payload the detection service publishes per frame.
type DetectionEvent struct {
	Source     string      `json:"source"`
	Detections []Detection `json:"detections"`
	At         time.Time   `json:"at"`
}
