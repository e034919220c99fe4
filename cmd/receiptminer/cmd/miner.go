package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/receiptminer/internal/acquire"
	"github.com/MeKo-Tech/receiptminer/internal/batch"
	"github.com/MeKo-Tech/receiptminer/internal/config"
	"github.com/MeKo-Tech/receiptminer/internal/export"
	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/pipeline"
)

// minerOptions are the optional collaborators of a command's miner.
type minerOptions struct {
	progress pipeline.ProgressCallback
	registry prometheus.Registerer
}

// buildMiner wires the linked OCR engine into a miner configured from cfg.
func buildMiner(cfg *config.Config, opts minerOptions) (*pipeline.Miner, error) {
	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		return nil, err
	}
	engine, err := ocr.NewEngine(cfg.ToEngineOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to start OCR engine: %w", err)
	}

	logger := slog.Default()
	b := pipeline.NewBuilder().
		WithConfig(pc).
		WithEngine(engine).
		WithLogger(logger)
	if cfg.Diagnostics.Enabled {
		b.WithDiagnostics(pipeline.NewFileDiagnostics(cfg.Diagnostics.Dir, logger))
	}
	if opts.registry != nil {
		b.WithMetrics(pipeline.NewMetrics(opts.registry))
	}
	if opts.progress != nil {
		b.WithProgressCallback(opts.progress)
	}

	m, err := b.Build()
	if err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("failed to build receipt miner: %w", err)
	}
	return m, nil
}

// buildSource creates the fiscal-code acquisition client.
func buildSource(cfg *config.Config) (*acquire.Client, error) {
	return acquire.New(cfg.ToAcquireConfig(), acquire.WithLogger(slog.Default()))
}

// outputFlags registers the flags shared by every mining command.
func outputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json, yaml, csv)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().String("report-dir", "", "directory for per-receipt text reports and raster copies")
	cmd.Flags().Bool("diagnostics", false, "dump intermediate regions and OCR text")
	cmd.Flags().String("diagnostics-dir", "diagnostics", "directory for diagnostic dumps")
	cmd.Flags().String("validation-mode", "correcting", "validation mode (correcting, reporting)")
	cmd.Flags().Bool("stats", false, "print processing statistics to stderr")
	cmd.Flags().BoolP("quiet", "q", false, "suppress informational messages")

	bindFlag(cmd.Flags(), "format", "output.format")
	bindFlag(cmd.Flags(), "output", "output.file")
	bindFlag(cmd.Flags(), "report-dir", "output.report_dir")
	bindFlag(cmd.Flags(), "diagnostics", "diagnostics.enabled")
	bindFlag(cmd.Flags(), "diagnostics-dir", "diagnostics.dir")
	bindFlag(cmd.Flags(), "validation-mode", "validation.mode")
}

// batchConfig maps the configuration and the output flags of cmd.
func batchConfig(cmd *cobra.Command, cfg *config.Config) (batch.Config, error) {
	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return batch.Config{}, err
	}
	bc := batch.DefaultConfig()
	bc.Format = format
	bc.OutputFile = cfg.Output.File
	bc.ReportDir = cfg.Output.ReportDir
	bc.ContinueOnError = cfg.Batch.ContinueOnError
	bc.Recursive = cfg.Batch.Recursive
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ShowStats, _ = cmd.Flags().GetBool("stats")
	return bc, nil
}

// runBatch mines inputs and writes the results the way every mining
// command does.
func runBatch(cmd *cobra.Command, cfg *config.Config, in batch.Inputs, bc batch.Config, opts minerOptions) error {
	miner, err := buildMiner(cfg, opts)
	if err != nil {
		return err
	}
	defer func() { _ = miner.Close() }()

	res, runErr := batch.ProcessBatch(cmd.Context(), miner, in, bc, slog.Default())
	if res == nil {
		return runErr
	}
	if err := res.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return err
	}
	if bc.ShowStats {
		res.PrintStats(cmd.ErrOrStderr(), cfg.Verbose)
	}
	if runErr == nil && len(res.Failures) > 0 && !bc.Quiet {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d receipts failed\n", len(res.Failures), len(res.Entries))
	}
	return runErr
}

// writeOutput writes s to file, or to w when file is empty.
func writeOutput(w io.Writer, file string, s []byte) error {
	if file == "" {
		_, err := w.Write(s)
		return err
	}
	return os.WriteFile(file, s, 0o600)
}
