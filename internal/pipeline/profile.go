package pipeline

import (
	"sync"
	"time"
)

// Profiler aggregates stage timings across runs.
type Profiler struct {
	mu     sync.Mutex
	runs   int64
	stages map[string]time.Duration
}

// Record adds one stage duration.
func (p *Profiler) Record(stage string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stages == nil {
		p.stages = make(map[string]time.Duration)
	}
	p.stages[stage] += d
}

// Run counts one finished run.
func (p *Profiler) Run() {
	p.mu.Lock()
	p.runs++
	p.mu.Unlock()
}

// Snapshot returns cumulative metrics in milliseconds for readability.
func (p *Profiler) Snapshot() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[string]any{"receipts": p.runs}
	for stage, d := range p.stages {
		out[stage+"_ms_total"] = d.Milliseconds()
		if p.runs > 0 {
			out[stage+"_ms_per_receipt"] = float64(d.Microseconds()) / 1000.0 / float64(p.runs)
		}
	}
	return out
}
