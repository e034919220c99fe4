package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTakeMemorySnapshot(t *testing.T) {
	snap := TakeMemorySnapshot()
	assert.Positive(t, snap.HeapAlloc)
	assert.Positive(t, snap.Sys)
	assert.Positive(t, snap.Goroutines)

	str := snap.String()
	assert.Contains(t, str, "heap:")
	assert.Contains(t, str, "KB")
	assert.Contains(t, str, "goroutines:")
}

func BenchmarkTakeMemorySnapshot(b *testing.B) {
	for range b.N {
		TakeMemorySnapshot()
	}
}
