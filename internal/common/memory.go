package common

import (
	"fmt"
	"runtime"
)

// MemorySnapshot is the subset of runtime statistics reported by health
// checks and verbose batch statistics.
type MemorySnapshot struct {
	HeapAlloc  uint64 `json:"heap_alloc_bytes"`
	HeapInuse  uint64 `json:"heap_inuse_bytes"`
	Sys        uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

// TakeMemorySnapshot reads the current runtime statistics.
func TakeMemorySnapshot() MemorySnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemorySnapshot{
		HeapAlloc:  m.HeapAlloc,
		HeapInuse:  m.HeapInuse,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
}

func (m MemorySnapshot) String() string {
	return fmt.Sprintf("heap: %d KB, in use: %d KB, sys: %d KB, gc: %d, goroutines: %d",
		m.HeapAlloc/1024, m.HeapInuse/1024, m.Sys/1024, m.NumGC, m.Goroutines)
}
