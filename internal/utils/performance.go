package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// Timer measures the duration of a long-running operation and logs it.
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
}

// NewTimer starts a timer for the named operation.
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{start: time.Now(), name: name, log: log}
}

// Stop stops the timer and logs the duration. Operations over 30 seconds are
// logged at warn level.
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)

	event := t.log.Debug()
	if duration > 30*time.Second {
		event = t.log.Warn()
	}
	event.
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Msg("Operation timed")

	return duration
}
