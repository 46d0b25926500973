package notify

import (
	"bytes"
	"text/template"
)

// messageTemplates holds every outbound text the controller sends. Keeping
// them in one place makes the SMS bridge's payloads reviewable.
const messageTemplates = `
{{define "startup"}}{{.Field}} controller online ({{.Mode}} mode){{end}}

{{define "shutdown"}}{{.Field}} controller shutting down{{end}}

{{define "restart"}}{{.Field}} controller restarting after {{.Errors}} consecutive errors (restart {{.Restart}} of {{.Max}}){{end}}

{{define "halt"}}{{.Field}} controller HALTED after exhausting {{.Max}} restarts; manual intervention required{{end}}

{{define "emergency-stop"}}{{.Field}} irrigation emergency stop, valve closed after {{.Ran}}{{end}}

{{define "alerts"}}{{.Field}}: {{.Count}} alert(s){{range .Lines}}
- {{.}}{{end}}{{end}}

{{define "report"}}{{.Field}} daily report {{.Date}}
readings: {{.Count}} ({{.Errors}} sensor errors)
temperature: {{printf "%.1f" .TempMin}}/{{printf "%.1f" .TempAvg}}/{{printf "%.1f" .TempMax}} C
humidity: {{printf "%.1f" .HumAvg}} %
soil: {{printf "%.1f" .SoilMin}}/{{printf "%.1f" .SoilAvg}}/{{printf "%.1f" .SoilMax}} %
rain cycles: {{.RainCycles}}{{end}}
`

var messages = template.Must(template.New("notify").Parse(messageTemplates))

// StartupData, LifecycleData, AlertsData and ReportData are the per-template
// payloads; Render panics only on programmer error (unknown template).
type StartupData struct {
	Field string
	Mode  string
}

type LifecycleData struct {
	Field   string
	Errors  int
	Restart int
	Max     int
	Ran     string
}

type AlertsData struct {
	Field string
	Count int
	Lines []string
}

type ReportData struct {
	Field      string
	Date       string
	Count      int
	Errors     int
	TempMin    float64
	TempAvg    float64
	TempMax    float64
	HumAvg     float64
	SoilMin    float64
	SoilAvg    float64
	SoilMax    float64
	RainCycles int
}

// Render executes the named message template.
func Render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := messages.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
