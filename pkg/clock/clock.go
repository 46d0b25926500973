package clock

import "time"

// Clock abstracts wall-clock reads for components that make cooldown and
// interval decisions, so tests can drive them deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the real wall clock.
func System() Clock { return systemClock{} }
