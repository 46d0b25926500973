// Package report builds the daily summary from persisted readings and hands
// it outward. Reports are a convenience surface; a failed send never touches
// the control loop.
package report

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"field-controller/internal/notify"
	"field-controller/internal/store"
)

type Generator struct {
	files    *store.FileStore
	notifier notify.Notifier
	field    string
	dir      string
}

func NewGenerator(files *store.FileStore, notifier notify.Notifier, field, dir string) (*Generator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir %s: %w", dir, err)
	}
	return &Generator{
		files:    files,
		notifier: notifier,
		field:    field,
		dir:      dir,
	}, nil
}

// Generate summarizes the given day, writes text, PDF and XLSX files, and
// sends the text summary through the notifier best-effort.
func (g *Generator) Generate(ctx context.Context, day time.Time) error {
	st, err := g.files.Stats(day)
	if err != nil {
		return fmt.Errorf("daily stats: %w", err)
	}

	text, err := notify.Render("report", notify.ReportData{
		Field:      g.field,
		Date:       day.Format("2006-01-02"),
		Count:      st.Count,
		Errors:     st.Errors,
		TempMin:    st.TempMin,
		TempAvg:    st.TempAvg,
		TempMax:    st.TempMax,
		HumAvg:     st.HumAvg,
		SoilMin:    st.SoilMin,
		SoilAvg:    st.SoilAvg,
		SoilMax:    st.SoilMax,
		RainCycles: st.RainCycles,
	})
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	stamp := day.Format("20060102")
	if err := os.WriteFile(g.path(stamp, "txt"), []byte(text+"\n"), 0o644); err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	pdfBytes, err := buildPDF(g.field, st)
	if err != nil {
		return fmt.Errorf("build pdf report: %w", err)
	}
	if err := os.WriteFile(g.path(stamp, "pdf"), pdfBytes, 0o644); err != nil {
		return fmt.Errorf("write pdf report: %w", err)
	}

	xlsxBytes, err := buildXLSX(g.field, st)
	if err != nil {
		return fmt.Errorf("build xlsx report: %w", err)
	}
	if err := os.WriteFile(g.path(stamp, "xlsx"), xlsxBytes, 0o644); err != nil {
		return fmt.Errorf("write xlsx report: %w", err)
	}

	log.Printf("report: wrote daily report for %s (%d readings)", day.Format("2006-01-02"), st.Count)
	if g.notifier != nil {
		if err := g.notifier.Send(ctx, text, notify.PriorityNormal); err != nil {
			log.Printf("report: send failed: %v", err)
		}
	}
	return nil
}

func (g *Generator) path(stamp, ext string) string {
	return filepath.Join(g.dir, "report_"+stamp+"."+ext)
}
