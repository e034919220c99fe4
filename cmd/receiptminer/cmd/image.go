package cmd

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/receiptminer/internal/export"
	"github.com/MeKo-Tech/receiptminer/internal/pipeline"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
)

// imageCmd mines receipt image files one after another.
var imageCmd = &cobra.Command{
	Use:   "image [files...]",
	Short: "Mine receipt images",
	Long: `Mine one or more receipt images into structured records.

Each file is mined in order. A receipt that cannot be mined is reported with
its error and does not stop the others.

Supported formats: JPEG, PNG, BMP, TIFF

Examples:
  receiptminer image receipt.jpg
  receiptminer image a.png b.png --format json --output records.json
  receiptminer image receipt.jpg --diagnostics --diagnostics-dir /tmp/diag`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImageCommand,
}

func init() {
	rootCmd.AddCommand(imageCmd)
	outputFlags(imageCmd)
}

func runImageCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	for _, path := range args {
		if !raster.IsSupported(path) {
			return fmt.Errorf("unsupported image file: %s", path)
		}
	}

	miner, err := buildMiner(cfg, minerOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = miner.Close() }()

	var sink *export.ReportSink
	if cfg.Output.ReportDir != "" {
		if sink, err = export.NewReportSink(cfg.Output.ReportDir); err != nil {
			return err
		}
	}

	entries := make([]export.Entry, 0, len(args))
	failed := 0
	for _, path := range args {
		e := export.Entry{Source: path}
		img, _, err := raster.Load(path)
		if err == nil {
			res, mineErr := miner.Mine(cmd.Context(), pipeline.ReceiptIDFromPath(path), img)
			if mineErr == nil {
				e.Record, e.Warnings, e.Inconsistencies = res.Record, res.Warnings, res.Errors
			}
			err = mineErr
		}
		if err != nil {
			if cmd.Context().Err() != nil {
				return err
			}
			failed++
			e.Error = err.Error()
			slog.Warn("receipt failed", "source", path, "error", err)
		}
		if sink != nil {
			if _, err := sink.Write(e, img); err != nil {
				slog.Warn("failed to write receipt report", "source", path, "error", err)
			}
		}
		entries = append(entries, e)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, entries); err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), cfg.Output.File, buf.Bytes()); err != nil {
		return err
	}
	if failed == len(args) {
		return fmt.Errorf("no receipt could be mined")
	}
	return nil
}
