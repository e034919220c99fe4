// Package batch mines many receipts at once and collects per-receipt
// failures.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/receiptminer/internal/export"
	"github.com/MeKo-Tech/receiptminer/internal/pipeline"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
)

// ErrReceiptsFailed is returned when ContinueOnError is off and at least
// one receipt failed. The Result is still returned.
var ErrReceiptsFailed = errors.New("some receipts failed")

// ProcessBatch mines every receipt named by in with miner.
func ProcessBatch(ctx context.Context, miner *pipeline.Miner, in Inputs, config Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sources, err := buildSources(ctx, in, config, logger)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, errors.New("no receipts found")
	}

	var sink *export.ReportSink
	if config.ReportDir != "" {
		if sink, err = export.NewReportSink(config.ReportDir); err != nil {
			return nil, err
		}
	}

	// Loaded rasters are kept only for the report sink.
	rasters := make([]raster.Raster, len(sources))
	jobs := make([]pipeline.Job, len(sources))
	for i, s := range sources {
		job := s.job
		if sink != nil && job.Load != nil {
			load := job.Load
			job.Load = func(ctx context.Context) (raster.Raster, error) {
				r, err := load(ctx)
				rasters[i] = r
				return r, err
			}
		}
		jobs[i] = job
	}

	startTime := time.Now()
	results, runErr := miner.MineAll(ctx, jobs)
	duration := time.Since(startTime)

	res := &Result{
		Entries:     make([]export.Entry, len(results)),
		Duration:    duration,
		WorkerCount: workerCount(miner, len(jobs)),
	}
	for i, r := range results {
		e := export.Entry{Source: sources[i].name}
		if r.Err != nil {
			e.Error = r.Err.Error()
			res.Failures = append(res.Failures, Failure{ID: r.ID, Err: r.Err, Stack: r.Stack})
			logger.Warn("receipt failed", "receipt_id", r.ID, "source", e.Source, "error", r.Err)
		} else {
			e.Record = r.Result.Record
			e.Warnings = r.Result.Warnings
			e.Inconsistencies = r.Result.Errors
		}
		res.Entries[i] = e

		if sink != nil {
			rep, err := sink.Write(e, rasters[i])
			if err != nil {
				logger.Warn("failed to write receipt report", "source", e.Source, "error", err)
				continue
			}
			res.Reports = append(res.Reports, rep)
		}
	}

	if runErr != nil {
		return res, fmt.Errorf("batch processing interrupted: %w", runErr)
	}
	if len(res.Failures) > 0 && !config.ContinueOnError {
		return res, fmt.Errorf("%w: %d of %d", ErrReceiptsFailed, len(res.Failures), len(results))
	}
	return res, nil
}

func workerCount(m *pipeline.Miner, jobs int) int {
	n := m.Config().Parallel.MaxWorkers
	if n <= 0 || n > jobs {
		return jobs
	}
	return n
}
