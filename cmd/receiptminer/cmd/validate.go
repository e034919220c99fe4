package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/receiptminer/internal/export"
	"github.com/MeKo-Tech/receiptminer/internal/validate"
)

// errInconsistent makes validate exit non-zero under --strict.
var errInconsistent = errors.New("inconsistent receipts found")

// validateCmd re-checks exported records.
var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Check exported receipt records for consistency",
	Long: `Run the consistency checks on records previously exported as JSON, YAML
or CSV. In correcting mode the corrected records are written in the chosen
output format.

Examples:
  receiptminer validate records.json
  receiptminer validate records.csv --validation-mode reporting --strict
  receiptminer validate records.yaml --format json --output fixed.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidateCommand,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	flags := validateCmd.Flags()
	flags.StringP("format", "f", "text", "output format (text, json, yaml, csv)")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("validation-mode", "correcting", "validation mode (correcting, reporting)")
	flags.Float64("tolerance", validate.DefaultTolerance, "absolute tolerance of every check")
	flags.Bool("strict", false, "exit non-zero when any record is inconsistent")

	bindFlag(flags, "format", "output.format")
	bindFlag(flags, "output", "output.file")
	bindFlag(flags, "validation-mode", "validation.mode")
	bindFlag(flags, "tolerance", "validation.tolerance")
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	mode, err := validate.ParseMode(cfg.Validation.Mode)
	if err != nil {
		return err
	}
	v := validate.New(validate.Config{Mode: mode, Tolerance: cfg.Validation.Tolerance}, slog.Default())

	var entries []export.Entry
	inconsistent := 0
	for _, path := range args {
		read, err := readEntries(path)
		if err != nil {
			return err
		}
		for _, e := range read {
			if e.Record == nil {
				entries = append(entries, e)
				continue
			}
			e.Inconsistencies = v.Validate(e.Record)
			if len(e.Inconsistencies) > 0 {
				inconsistent++
			}
			entries = append(entries, e)
		}
	}

	var out strings.Builder
	if err := export.Write(&out, format, entries); err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), cfg.Output.File, []byte(out.String())); err != nil {
		return err
	}
	if strict, _ := cmd.Flags().GetBool("strict"); strict && inconsistent > 0 {
		return fmt.Errorf("%w: %d of %d", errInconsistent, inconsistent, len(entries))
	}
	return nil
}

// readEntries reads an export file, picking the format from the extension.
func readEntries(path string) ([]export.Entry, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if strings.EqualFold(ext, "txt") {
		ext = string(export.FormatText)
	}
	format, err := export.ParseFormat(ext)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	entries, err := export.Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}
