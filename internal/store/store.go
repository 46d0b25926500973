// Package store persists cycle readings. Writes are fire-and-forget from the
// control loop's point of view; a failed append is logged by the caller and
// never stops the cycle.
package store

import (
	"context"
	"log"

	"field-controller/internal/model"
)

// Recorder appends one reading per cycle.
type Recorder interface {
	Append(ctx context.Context, r model.Reading) error
}

// MultiRecorder fans a reading out to every backend. Each failure is logged;
// the first one is returned so the caller still sees the cycle degraded.
type MultiRecorder []Recorder

func (m MultiRecorder) Append(ctx context.Context, r model.Reading) error {
	var firstErr error
	for _, rec := range m {
		if err := rec.Append(ctx, r); err != nil {
			log.Printf("store: append failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
