// fieldtop is a read-only terminal dashboard for a running fieldd: it
// subscribes to the status and notification topics and renders the latest
// cycle summary plus a recent message feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"field-controller/internal/model"
	"field-controller/internal/notify"
	"field-controller/pkg/mqttx"
)

const feedSize = 12

// ── Messages ─────────────────────────────────────────────────────────

type statusMsg model.CycleStatus

type notifyMsg notify.Envelope

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorLabel    = lipgloss.Color("252")
	colorValue    = lipgloss.Color("250")
	colorDim      = lipgloss.Color("240")
	colorGood     = lipgloss.Color("82")
	colorWarn     = lipgloss.Color("220")
	colorCrit     = lipgloss.Color("196")
	colorFooterBg = lipgloss.Color("235")
)

// ── Model ────────────────────────────────────────────────────────────

type dashboard struct {
	field    string
	status   model.CycleStatus
	seen     bool
	lastSeen time.Time
	feed     []notify.Envelope
	width    int
	height   int
}

func newDashboard(field string) dashboard {
	return dashboard{field: field}
}

func (d dashboard) Init() tea.Cmd {
	return tickCmd()
}

func (d dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height

	case statusMsg:
		d.status = model.CycleStatus(msg)
		d.seen = true
		d.lastSeen = time.Now()

	case notifyMsg:
		d.feed = append([]notify.Envelope{notify.Envelope(msg)}, d.feed...)
		if len(d.feed) > feedSize {
			d.feed = d.feed[:feedSize]
		}

	case tickMsg:
		// re-render so the staleness age keeps counting
		return d, tickCmd()
	}

	return d, nil
}

// ── View ─────────────────────────────────────────────────────────────

func (d dashboard) View() string {
	if d.width == 0 {
		return "  Connecting..."
	}
	width := d.width - 2
	if width < 48 {
		width = 48
	}

	sections := []string{d.renderTitle(width)}
	if !d.seen {
		waiting := lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(1, 1).
			Render("Waiting for a status publish on the broker...")
		sections = append(sections, waiting)
	} else {
		sections = append(sections, d.renderReadings(width))
		sections = append(sections, d.renderIrrigation(width))
		sections = append(sections, d.renderCounters(width))
	}
	sections = append(sections, d.renderFeed(width))
	sections = append(sections, d.renderFooter(width))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (d dashboard) renderTitle(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("FIELD CONTROLLER")

	field := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true).
		Render(d.field)

	age := ""
	if d.seen {
		age = lipgloss.NewStyle().
			Foreground(colorDim).
			Render(fmt.Sprintf("  last status %s ago", time.Since(d.lastSeen).Round(time.Second)))
	}
	right := field + age

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (d dashboard) renderReadings(width int) string {
	r := d.status.Reading
	rain := "dry"
	if r.RainDetected {
		rain = "RAIN"
	}
	rows := []string{
		metricRow("temperature", fmtVal(r.Temperature, " C")),
		metricRow("humidity", fmtVal(r.Humidity, " %")),
		metricRow("soil moisture", fmtVal(r.SoilMoisture, " %")),
		metricRow("light", fmtVal(r.Light, "")),
		metricRow("cpu temp", fmtVal(r.CPUTemp, " C")),
		metricRow("rain", rain),
	}
	if len(r.Errors) > 0 {
		failed := lipgloss.NewStyle().Foreground(colorWarn).
			Render(fmt.Sprintf("degraded: %s", strings.Join(r.FailedSensors(), ", ")))
		rows = append(rows, failed)
	}
	return panel("readings", rows, width)
}

func (d dashboard) renderIrrigation(width int) string {
	irr := d.status.Irrigation
	state := lipgloss.NewStyle().Foreground(colorGood).Render("idle")
	if irr.Active {
		state = lipgloss.NewStyle().Foreground(colorTitleFg).Bold(true).
			Render(fmt.Sprintf("WATERING since %s", irr.StartedAt.Format("15:04:05")))
	}
	mode := "auto"
	if !irr.AutoEnabled {
		mode = "manual only"
	}
	rows := []string{
		metricRow("valve", state),
		metricRow("mode", mode),
	}
	if !irr.LastEnd.IsZero() {
		rows = append(rows, metricRow("last run ended", irr.LastEnd.Format("15:04:05")))
	}
	return panel("irrigation", rows, width)
}

func (d dashboard) renderCounters(width int) string {
	st := d.status
	health := lipgloss.NewStyle().Foreground(colorGood).Render("ok")
	switch {
	case st.Halted:
		health = lipgloss.NewStyle().Foreground(colorCrit).Bold(true).Render("HALTED")
	case st.ConsecutiveErrors > 0:
		health = lipgloss.NewStyle().Foreground(colorWarn).
			Render(fmt.Sprintf("%d consecutive errors", st.ConsecutiveErrors))
	case st.Reading.Degraded:
		health = lipgloss.NewStyle().Foreground(colorWarn).Render("degraded reading")
	}
	rows := []string{
		metricRow("state", health),
		metricRow("cycle", fmt.Sprintf("%d", st.Seq)),
		metricRow("restarts", fmt.Sprintf("%d", st.RestartCount)),
		metricRow("uptime", (time.Duration(st.UptimeSeconds) * time.Second).String()),
	}
	return panel("controller", rows, width)
}

func (d dashboard) renderFeed(width int) string {
	if len(d.feed) == 0 {
		return panel("messages", []string{
			lipgloss.NewStyle().Foreground(colorDim).Render("no notifications yet"),
		}, width)
	}
	rows := make([]string, 0, len(d.feed))
	for _, env := range d.feed {
		ts := lipgloss.NewStyle().Foreground(colorDim).Render(env.At.Format("15:04:05"))
		msg := lipgloss.NewStyle().Foreground(colorValue).Render(firstLine(env.Message))
		if env.Priority == notify.PriorityHigh {
			msg = lipgloss.NewStyle().Foreground(colorCrit).Bold(true).Render(firstLine(env.Message))
		}
		rows = append(rows, ts+"  "+msg)
	}
	return panel("messages", rows, width)
}

func (d dashboard) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)
	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(dimS.Render("q") + keyS.Render(":quit"))
}

// ── Helpers ──────────────────────────────────────────────────────────

func panel(title string, rows []string, width int) string {
	head := lipgloss.NewStyle().Bold(true).Foreground(colorLabel).Render(title)
	content := lipgloss.JoinVertical(lipgloss.Left, append([]string{head}, rows...)...)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(content)
}

func metricRow(label, value string) string {
	l := lipgloss.NewStyle().Foreground(colorDim).Width(16).Render(label)
	return l + lipgloss.NewStyle().Foreground(colorValue).Render(value)
}

func fmtVal(v *float64, unit string) string {
	if v == nil {
		return "--"
	}
	return fmt.Sprintf("%.1f%s", *v, unit)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// ── Main ─────────────────────────────────────────────────────────────

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	clientID := flag.String("client-id", "fieldtop", "MQTT client ID")
	username := flag.String("username", "", "MQTT username")
	password := flag.String("password", "", "MQTT password")
	fieldID := flag.String("field-id", "field-1", "field identifier")
	prefix := flag.String("prefix", "field", "topic prefix")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := mqttx.Connect(ctx, mqttx.Config{
		Broker:   *broker,
		ClientID: *clientID,
		Username: *username,
		Password: *password,
	})
	if err != nil {
		log.Fatalf("fieldtop: %v", err)
	}

	p := tea.NewProgram(newDashboard(*fieldID), tea.WithAltScreen())

	statusTopic := *prefix + "/" + *fieldID + "/status"
	notifyTopic := *prefix + "/" + *fieldID + "/notify"
	err = mqttx.Subscribe(client, statusTopic, 0, mqttx.JSONHandler("status", func(st model.CycleStatus) {
		p.Send(statusMsg(st))
	}))
	if err != nil {
		log.Fatalf("fieldtop: %v", err)
	}
	err = mqttx.Subscribe(client, notifyTopic, 1, mqttx.JSONHandler("notify", func(env notify.Envelope) {
		p.Send(notifyMsg(env))
	}))
	if err != nil {
		log.Fatalf("fieldtop: %v", err)
	}

	if _, err := p.Run(); err != nil {
		log.Fatalf("fieldtop: %v", err)
	}
}
