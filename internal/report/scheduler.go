package report

import (
	"context"
	"log"
	"sync"
	"time"

	"field-controller/internal/store"
)

// Scheduler fires the previous day's report once per day at a configured
// HH:MM, then prunes expired data files.
type Scheduler struct {
	gen       *Generator
	files     *store.FileStore
	dailyAt   string
	retention int

	mu      sync.Mutex
	lastRun time.Time
}

func NewScheduler(gen *Generator, files *store.FileStore, dailyAt string, retentionDays int) *Scheduler {
	return &Scheduler{
		gen:       gen,
		files:     files,
		dailyAt:   dailyAt,
		retention: retentionDays,
	}
}

// Start blocks until ctx is done, checking the schedule once a minute.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now) {
				continue
			}
			s.runOnce(ctx, now)
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	if now.Hour() != hour || now.Minute() != minute {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sameDay(s.lastRun, now) {
		return false
	}
	s.lastRun = now
	return true
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	if err := s.gen.Generate(ctx, now.AddDate(0, 0, -1)); err != nil {
		log.Printf("report: generate failed: %v", err)
	}
	removed, err := s.files.CleanupOld(now, s.retention)
	if err != nil {
		log.Printf("report: cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("report: removed %d expired data file(s)", removed)
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
