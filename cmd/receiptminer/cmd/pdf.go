package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/receiptminer/internal/batch"
	"github.com/MeKo-Tech/receiptminer/internal/pdf"
)

// pdfCmd mines receipts embedded in PDF files, one receipt per page.
var pdfCmd = &cobra.Command{
	Use:   "pdf [files...]",
	Short: "Mine receipts from PDF files",
	Long: `Mine receipts from PDF files. Every page is treated as one receipt; the
largest image on the page is mined.

Examples:
  receiptminer pdf scans.pdf
  receiptminer pdf scans.pdf --pages 1-3,7 --format csv
  receiptminer pdf locked.pdf --password secret`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPDFCommand,
}

func init() {
	rootCmd.AddCommand(pdfCmd)
	outputFlags(pdfCmd)
	pdfCmd.Flags().String("pages", "", "page range to mine (e.g. 1-3,5)")
	pdfCmd.Flags().String("password", "", "user password for encrypted PDFs")
	pdfCmd.Flags().String("owner-password", "", "owner password for encrypted PDFs")
	pdfCmd.Flags().Int("workers", 4, "number of parallel workers")
	bindFlag(pdfCmd.Flags(), "workers", "batch.workers")
}

func runPDFCommand(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		if !isPDFPath(path) {
			return fmt.Errorf("not a PDF file: %s", path)
		}
	}

	cfg := GetConfig()
	bc, err := batchConfig(cmd, cfg)
	if err != nil {
		return err
	}
	bc.PageRange, _ = cmd.Flags().GetString("pages")
	user, _ := cmd.Flags().GetString("password")
	owner, _ := cmd.Flags().GetString("owner-password")
	if user != "" || owner != "" {
		bc.Credentials = &pdf.Credentials{UserPassword: user, OwnerPassword: owner}
	}

	return runBatch(cmd, cfg, batch.Inputs{Paths: args}, bc, minerOptions{})
}

func isPDFPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
