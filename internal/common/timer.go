// Package common holds the timing and runtime snapshot helpers shared by the
// miner and the HTTP server.
package common

import (
	"fmt"
	"time"
)

// Timer measures one named stage.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewNamedTimer starts a timer for the stage name.
func NewNamedTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop records and returns the elapsed duration. Later calls re-measure.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the duration recorded by the last Stop.
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the stage name.
func (t *Timer) Name() string {
	return t.name
}

func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.duration)
	}
	return t.duration.String()
}
