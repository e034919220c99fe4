package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer(t *testing.T) {
	timer := NewNamedTimer("segment")
	assert.Equal(t, "segment", timer.Name())
	assert.Zero(t, timer.Duration())

	time.Sleep(10 * time.Millisecond)

	duration := timer.Stop()
	assert.GreaterOrEqual(t, duration, 10*time.Millisecond)
	assert.Equal(t, duration, timer.Duration())

	str := timer.String()
	assert.Contains(t, str, "segment: ")
	assert.Contains(t, str, "ms")
}

func TestUnnamedTimerString(t *testing.T) {
	timer := &Timer{duration: 1500 * time.Millisecond}
	assert.Equal(t, "1.5s", timer.String())
}
