package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"field-controller/internal/model"
)

const fileDateLayout = "20060102"

// FileStore appends one JSON record per line to a daily file under dir.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) fileFor(day time.Time) string {
	return filepath.Join(s.dir, "sensors_"+day.Format(fileDateLayout)+".json")
}

func (s *FileStore) Append(_ context.Context, r model.Reading) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.fileFor(r.Timestamp), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open daily file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append reading: %w", err)
	}
	return nil
}

// ReadDay loads all readings recorded on the given day. Malformed lines are
// skipped so one bad write cannot poison a whole day.
func (s *FileStore) ReadDay(day time.Time) ([]model.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.fileFor(day))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open daily file: %w", err)
	}
	defer f.Close()

	var out []model.Reading
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var r model.Reading
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			log.Printf("store: skipping malformed record in %s: %v", s.fileFor(day), err)
			continue
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("scan daily file: %w", err)
	}
	return out, nil
}

// DailyStats summarizes one day's readings for the report.
type DailyStats struct {
	Date       time.Time
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

// Stats computes min/avg/max aggregates over the given day. Readings whose
// optional fields are unset are excluded from that metric's aggregate.
func (s *FileStore) Stats(day time.Time) (DailyStats, error) {
	readings, err := s.ReadDay(day)
	if err != nil {
		return DailyStats{}, err
	}
	st := DailyStats{
		Date:    day,
		Count:   len(readings),
		TempMin: math.MaxFloat64, TempMax: -math.MaxFloat64,
		SoilMin: math.MaxFloat64, SoilMax: -math.MaxFloat64,
	}
	var tempSum, humSum, soilSum float64
	var tempN, humN, soilN int
	for _, r := range readings {
		st.Errors += r.ErrorCount()
		if r.RainDetected {
			st.RainCycles++
		}
		if r.Temperature != nil {
			v := *r.Temperature
			tempSum += v
			tempN++
			if v < st.TempMin {
				st.TempMin = v
			}
			if v > st.TempMax {
				st.TempMax = v
			}
		}
		if r.Humidity != nil {
			humSum += *r.Humidity
			humN++
		}
		if r.SoilMoisture != nil {
			v := *r.SoilMoisture
			soilSum += v
			soilN++
			if v < st.SoilMin {
				st.SoilMin = v
			}
			if v > st.SoilMax {
				st.SoilMax = v
			}
		}
	}
	if tempN > 0 {
		st.TempAvg = tempSum / float64(tempN)
	} else {
		st.TempMin, st.TempMax = 0, 0
	}
	if humN > 0 {
		st.HumAvg = humSum / float64(humN)
	}
	if soilN > 0 {
		st.SoilAvg = soilSum / float64(soilN)
	} else {
		st.SoilMin, st.SoilMax = 0, 0
	}
	return st, nil
}

// CleanupOld removes daily files older than retention days and returns how
// many were deleted.
func (s *FileStore) CleanupOld(now time.Time, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pattern := filepath.Join(s.dir, "sensors_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, fmt.Errorf("glob daily files: %w", err)
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	removed := 0
	for _, path := range matches {
		base := filepath.Base(path)
		stamp := base[len("sensors_") : len(base)-len(".json")]
		day, err := time.Parse(fileDateLayout, stamp)
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			if err := os.Remove(path); err != nil {
				log.Printf("store: remove %s: %v", path, err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}
