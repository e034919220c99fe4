package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/MeKo-Tech/receiptminer/internal/raster"
)

// ParallelConfig holds configuration for mining several receipts at once.
type ParallelConfig struct {
	MaxWorkers       int              // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback // Optional progress reporting
}

// DefaultParallelConfig returns one worker per CPU.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

// Job is one receipt to mine. Load is called on a worker, so sources are
// read only when a worker is free.
type Job struct {
	ID   string
	Load func(ctx context.Context) (raster.Raster, error)
}

// RasterJob wraps an already decoded raster.
func RasterJob(id string, r raster.Raster) Job {
	return Job{ID: id, Load: func(context.Context) (raster.Raster, error) { return r, nil }}
}

// FileJob loads path when the job runs.
func FileJob(path string) Job {
	return Job{
		ID: ReceiptIDFromPath(path),
		Load: func(context.Context) (raster.Raster, error) {
			r, _, err := raster.Load(path)
			return r, err
		},
	}
}

// JobResult is the outcome of one job. Exactly one of Result and Err is
// set; Stack is captured when the job panicked.
type JobResult struct {
	Index  int
	ID     string
	Result *Result
	Err    error
	Stack  []byte
}

// MineAll mines jobs with a worker pool. Per-receipt failures are reported
// in the results and never stop the other jobs; the returned error is
// only set when ctx ends before all jobs ran.
func (m *Miner) MineAll(ctx context.Context, jobs []Job) ([]JobResult, error) {
	if len(jobs) == 0 {
		return nil, errors.New("no receipts provided")
	}
	config := m.cfg.Parallel
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	if config.MaxWorkers > len(jobs) {
		config.MaxWorkers = len(jobs)
	}

	progress := newProgressTracker(config.ProgressCallback, len(jobs))
	defer progress.finish()

	queue := make(chan int, len(jobs))
	results := make(chan JobResult, len(jobs))

	var wg sync.WaitGroup
	for range config.MaxWorkers {
		wg.Add(1)
		go m.worker(ctx, jobs, queue, results, &wg)
	}

	go func() {
		defer close(queue)
		for i := range jobs {
			select {
			case queue <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]JobResult, len(jobs))
	done := make([]bool, len(jobs))
	for r := range results {
		ordered[r.Index] = r
		done[r.Index] = true
		progress.record(r)
	}

	if err := ctx.Err(); err != nil {
		for i := range ordered {
			if !done[i] {
				ordered[i] = JobResult{Index: i, ID: jobs[i].ID, Err: err}
			}
		}
		return ordered, err
	}
	return ordered, nil
}

func (m *Miner) worker(ctx context.Context, jobs []Job, queue <-chan int, results chan<- JobResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case i, ok := <-queue:
			if !ok {
				return
			}
			results <- m.runJob(ctx, i, jobs[i])
		case <-ctx.Done():
			return
		}
	}
}

func (m *Miner) runJob(ctx context.Context, index int, job Job) (out JobResult) {
	out = JobResult{Index: index, ID: job.ID}
	defer func() {
		if p := recover(); p != nil {
			out.Result = nil
			out.Err = fmt.Errorf("receipt %s: panic: %v", job.ID, p)
			out.Stack = debug.Stack()
			m.logger.Error("receipt mining panicked", "receipt_id", job.ID, "panic", p)
		}
	}()
	if job.Load == nil {
		out.Err = fmt.Errorf("receipt %s: no source", job.ID)
		return out
	}
	r, err := job.Load(ctx)
	if err != nil {
		out.Err = fmt.Errorf("receipt %s: %w", job.ID, err)
		return out
	}
	out.Result, out.Err = m.Mine(ctx, job.ID, r)
	return out
}

// ParallelStats holds statistics about a MineAll call.
type ParallelStats struct {
	TotalReceipts      int           `json:"total_receipts"`
	MinedReceipts      int           `json:"mined_receipts"`
	FailedReceipts     int           `json:"failed_receipts"`
	WorkerCount        int           `json:"worker_count"`
	TotalDuration      time.Duration `json:"total_duration_ns"`
	AveragePerReceipt  time.Duration `json:"average_per_receipt_ns"`
	ThroughputPerSec   float64       `json:"throughput_per_sec"`
	ValidationFindings int           `json:"validation_findings"`
}

// CalculateParallelStats summarizes results.
func CalculateParallelStats(results []JobResult, duration time.Duration, workerCount int) ParallelStats {
	s := ParallelStats{
		TotalReceipts: len(results),
		WorkerCount:   workerCount,
		TotalDuration: duration,
	}
	for _, r := range results {
		if r.Err != nil || r.Result == nil {
			s.FailedReceipts++
			continue
		}
		s.MinedReceipts++
		s.ValidationFindings += len(r.Result.Errors)
	}
	if s.MinedReceipts > 0 {
		s.AveragePerReceipt = duration / time.Duration(s.MinedReceipts)
		s.ThroughputPerSec = float64(s.MinedReceipts) / duration.Seconds()
	}
	return s
}
