package notify

import (
	"context"
	"log"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notifier forwards an operator-facing message. High priority jumps the
// delivery queue on the transport side, not here.
type Notifier interface {
	Send(ctx context.Context, message string, priority Priority) error
}

// LogNotifier is the sink used when no broker is configured: messages land
// in the process log only.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, message string, priority Priority) error {
	log.Printf("notify (%s): %s", priority, message)
	return nil
}
