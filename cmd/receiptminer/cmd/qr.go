package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/receiptminer/internal/barcode"
	"github.com/MeKo-Tech/receiptminer/internal/batch"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
)

// qrCmd reads fiscal codes from QR photos and optionally mines them.
var qrCmd = &cobra.Command{
	Use:   "qr [images...]",
	Short: "Read fiscal codes from receipt QR photos",
	Long: `Decode the QR code on receipt photos and print the fiscal code of each.
With --mine the receipts are then fetched and mined.

Examples:
  receiptminer qr photo.jpg
  receiptminer qr *.jpg --mine --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQRCommand,
}

func init() {
	rootCmd.AddCommand(qrCmd)
	outputFlags(qrCmd)
	qrCmd.Flags().Bool("mine", false, "fetch and mine the receipts behind the codes")
}

func runQRCommand(cmd *cobra.Command, args []string) error {
	scanner := barcode.NewScanner(nil)
	mine, _ := cmd.Flags().GetBool("mine")

	var codes []string
	for _, path := range args {
		img, _, err := raster.Load(path)
		if err == nil {
			var code string
			code, err = scanner.ScanRaster(cmd.Context(), img)
			if err == nil {
				codes = append(codes, code)
				if !mine {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", path, code)
				}
				continue
			}
		}
		if cmd.Context().Err() != nil {
			return cmd.Context().Err()
		}
		slog.Warn("no fiscal code found", "source", path, "error", err)
		if !mine {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s\terror: %v\n", path, err)
		}
	}
	if len(codes) == 0 {
		return errors.New("no QR code could be decoded")
	}
	if !mine {
		return nil
	}

	cfg := GetConfig()
	bc, err := batchConfig(cmd, cfg)
	if err != nil {
		return err
	}
	source, err := buildSource(cfg)
	if err != nil {
		return err
	}
	return runBatch(cmd, cfg, batch.Inputs{FiscalCodes: codes, Source: source}, bc, minerOptions{})
}
