package cmd

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/receiptminer/internal/acquire"
	"github.com/MeKo-Tech/receiptminer/internal/batch"
	"github.com/MeKo-Tech/receiptminer/internal/pipeline"
)

// batchCmd represents the batch command for parallel receipt mining.
var batchCmd = &cobra.Command{
	Use:   "batch [paths...]",
	Short: "Mine many receipts in parallel",
	Long: `Mine receipt images, PDFs and fiscal codes in parallel.

Paths may be files, directories or glob patterns. PDF pages become separate
receipts. A receipt that fails is reported with its error; with
--continue-on-error=false the command then exits non-zero.

Examples:
  receiptminer batch receipts/ --recursive --workers 8
  receiptminer batch 'scans/*.jpg' --format csv --output receipts.csv
  receiptminer batch --codes-file codes.txt --progress --stats
  receiptminer batch receipts/ --exclude 'draft_*' --report-dir reports/`,
	RunE: runBatchCommand,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	outputFlags(batchCmd)
	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().StringSlice("include", nil, "only mine files whose name matches these patterns")
	batchCmd.Flags().StringSlice("exclude", nil, "skip files whose name matches these patterns")
	batchCmd.Flags().IntP("workers", "w", 4, "number of parallel workers")
	batchCmd.Flags().Bool("continue-on-error", true, "succeed even when some receipts fail")
	batchCmd.Flags().String("codes-file", "", "file with fiscal codes to fetch and mine")
	batchCmd.Flags().String("pages", "", "page range for PDF inputs")
	batchCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	batchCmd.Flags().Bool("progress-log", false, "log progress instead of drawing a bar")

	bindFlag(batchCmd.Flags(), "recursive", "batch.recursive")
	bindFlag(batchCmd.Flags(), "workers", "batch.workers")
	bindFlag(batchCmd.Flags(), "continue-on-error", "batch.continue_on_error")
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	bc, err := batchConfig(cmd, cfg)
	if err != nil {
		return err
	}
	bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	bc.PageRange, _ = cmd.Flags().GetString("pages")

	in := batch.Inputs{Paths: args}
	if file, _ := cmd.Flags().GetString("codes-file"); file != "" {
		if in.FiscalCodes, err = readCodesFile(file); err != nil {
			return err
		}
		var client *acquire.Client
		if client, err = buildSource(cfg); err != nil {
			return err
		}
		in.Source = client
	}
	if len(in.Paths) == 0 && len(in.FiscalCodes) == 0 {
		return errors.New("nothing to mine: give paths or --codes-file")
	}

	var opts minerOptions
	if on, _ := cmd.Flags().GetBool("progress-log"); on {
		opts.progress = pipeline.NewLogProgressCallback(slog.Default(), slog.LevelInfo, "batch: ").WithInterval(10)
	} else if on, _ := cmd.Flags().GetBool("progress"); on && !bc.Quiet {
		opts.progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Mining ").WithETA(true)
	}
	return runBatch(cmd, cfg, in, bc, opts)
}
