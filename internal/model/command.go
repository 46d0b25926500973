package model

// Actions accepted on the command topic.
const (
	ActionIrrigate = "irrigate"
	ActionStop     = "stop"
	ActionAuto     = "auto"
	ActionReport   = "report"
)

// Command is an operator request delivered over MQTT. DurationS applies to
// irrigate (0 means the configured default); Enabled applies to auto.
type Command struct {
	Action    string `json:"action"`
	DurationS int    `json:"duration_s,omitempty"`
	Enabled   *bool  `json:"enabled,omitempty"`
}
