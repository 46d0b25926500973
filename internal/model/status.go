package model

import "time"

// IrrigationStatus is a read-only view of the irrigation state machine taken
// under its lock. LastEnd is zero until the first activation has finished.
type IrrigationStatus struct {
	Active      bool      `json:"active"`
	AutoEnabled bool      `json:"auto_enabled"`
	StartedAt   time.Time `json:"started_at"`
	LastEnd     time.Time `json:"last_end"`
}

// HealthSnapshot is one host-health sample.
type HealthSnapshot struct {
	CPUTemp   float64   `json:"cpu_temp"`
	MemoryPct float64   `json:"memory_pct"`
	DiskPct   float64   `json:"disk_pct"`
	At        time.Time `json:"at"`
}

// CycleStatus is the per-cycle summary published on the status topic and
// served on /status.
type CycleStatus struct {
	FieldID           string           `json:"field_id"`
	Seq               uint64           `json:"seq"`
	At                time.Time        `json:"at"`
	Reading           Reading          `json:"reading"`
	Irrigation        IrrigationStatus `json:"irrigation"`
	ConsecutiveErrors int              `json:"consecutive_errors"`
	RestartCount      int              `json:"restart_count"`
	Halted            bool             `json:"halted"`
	UptimeSeconds     int64            `json:"uptime_seconds"`
}
