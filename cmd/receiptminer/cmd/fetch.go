package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/receiptminer/internal/batch"
)

// fetchCmd acquires receipts by fiscal code and mines them.
var fetchCmd = &cobra.Command{
	Use:   "fetch [fiscal-codes...]",
	Short: "Fetch receipts by fiscal code and mine them",
	Long: `Download receipt images from the monitoring service by fiscal code and
mine them. Codes may also be QR payloads; the text after the last '=' is used.

Examples:
  receiptminer fetch 7Hc3AbXy
  receiptminer fetch --codes-file codes.txt --format csv --output receipts.csv
  receiptminer fetch 7Hc3AbXy --url-template 'https://mirror.example/docs/{fiscal_code}'`,
	RunE: runFetchCommand,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	outputFlags(fetchCmd)
	fetchCmd.Flags().String("codes-file", "", "file with one fiscal code or QR payload per line")
	fetchCmd.Flags().String("url-template", "", "receipt URL template containing {fiscal_code}")
	fetchCmd.Flags().Int("fetch-timeout", 30, "download timeout in seconds")
	fetchCmd.Flags().Int("workers", 4, "number of parallel workers")
	bindFlag(fetchCmd.Flags(), "url-template", "acquisition.url_template")
	bindFlag(fetchCmd.Flags(), "fetch-timeout", "acquisition.timeout_sec")
	bindFlag(fetchCmd.Flags(), "workers", "batch.workers")
}

func runFetchCommand(cmd *cobra.Command, args []string) error {
	codes := append([]string(nil), args...)
	if file, _ := cmd.Flags().GetString("codes-file"); file != "" {
		fromFile, err := readCodesFile(file)
		if err != nil {
			return err
		}
		codes = append(codes, fromFile...)
	}
	if len(codes) == 0 {
		return errors.New("no fiscal codes given")
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

func readCodesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open codes file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return batch.ReadFiscalCodes(f)
}
