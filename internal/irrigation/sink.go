package irrigation

import (
	"context"
	"log"
)

// LogSink is the valve used when no relay is wired (sim and mqtt modes):
// switch requests land in the process log only.
type LogSink struct{}

func (LogSink) Activate(context.Context) error {
	log.Print("irrigation: valve open (log sink)")
	return nil
}

func (LogSink) Stop(context.Context) error {
	log.Print("irrigation: valve closed (log sink)")
	return nil
}
