package batch

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/receiptminer/internal/common"
	"github.com/MeKo-Tech/receiptminer/internal/export"
)

// FormatResults formats the entries in the given format.
func (r *Result) FormatResults(format export.Format) (string, error) {
	var buf bytes.Buffer
	if err := export.Write(&buf, format, r.Entries); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format export.Format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile == "" {
		_, err = io.WriteString(w, output)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if !quiet {
		_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
	}
	return nil
}

// Stats summarizes the batch.
type Stats struct {
	Total              int
	Mined              int
	Failed             int
	Workers            int
	Duration           time.Duration
	AveragePerReceipt  time.Duration
	ThroughputPerSec   float64
	Warnings           int
	ValidationFindings int
}

// Stats computes the batch summary.
func (r *Result) Stats() Stats {
	s := Stats{
		Total:    len(r.Entries),
		Failed:   len(r.Failures),
		Workers:  r.WorkerCount,
		Duration: r.Duration,
	}
	s.Mined = s.Total - s.Failed
	for _, e := range r.Entries {
		s.Warnings += len(e.Warnings)
		s.ValidationFindings += len(e.Inconsistencies)
	}
	if s.Mined > 0 {
		s.AveragePerReceipt = r.Duration / time.Duration(s.Mined)
		if secs := r.Duration.Seconds(); secs > 0 {
			s.ThroughputPerSec = float64(s.Mined) / secs
		}
	}
	return s
}

// PrintStats prints processing statistics and, with verbose set, the stack
// of every panicked receipt.
func (r *Result) PrintStats(w io.Writer, verbose bool) {
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total receipts: %d\n", stats.Total)
	_, _ = fmt.Fprintf(w, "  Mined: %d\n", stats.Mined)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.Failed)
	_, _ = fmt.Fprintf(w, "  Warnings: %d\n", stats.Warnings)
	_, _ = fmt.Fprintf(w, "  Inconsistencies: %d\n", stats.ValidationFindings)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.Workers)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per receipt: %v\n", stats.AveragePerReceipt.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f receipts/sec\n", stats.ThroughputPerSec)
	if verbose {
		_, _ = fmt.Fprintf(w, "  Memory: %s\n", common.TakeMemorySnapshot())
	}

	for _, f := range r.Failures {
		_, _ = fmt.Fprintf(w, "  ! %s: %v\n", f.ID, f.Err)
		if verbose && len(f.Stack) > 0 {
			_, _ = fmt.Fprintf(w, "%s\n", f.Stack)
		}
	}
}
