// Package display renders the two-line local status surface.
package display

import "log"

type Display interface {
	Show(line1, line2 string) error
	Close() error
}

// LogDisplay stands in for the LCD in simulation mode.
type LogDisplay struct{}

func (LogDisplay) Show(line1, line2 string) error {
	log.Printf("display: %s | %s", line1, line2)
	return nil
}

func (LogDisplay) Close() error { return nil }
