package batch

import (
	"errors"
	"time"

	"github.com/MeKo-Tech/receiptminer/internal/export"
	"github.com/MeKo-Tech/receiptminer/internal/pdf"
)

// Config holds all configuration for batch processing.
type Config struct {
	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// PDF settings
	PageRange   string
	Credentials *pdf.Credentials

	// Output settings
	Format     export.Format
	OutputFile string
	ReportDir  string

	// ContinueOnError keeps a batch successful when receipts fail. The
	// failures are still reported.
	ContinueOnError bool

	Quiet     bool
	ShowStats bool
}

// DefaultConfig returns text output that tolerates failed receipts.
func DefaultConfig() Config {
	return Config{Format: export.FormatText, ContinueOnError: true}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := export.ParseFormat(string(c.Format)); err != nil {
		return err
	}
	if c.Credentials != nil && c.Credentials.UserPassword == "" && c.Credentials.OwnerPassword == "" {
		return errors.New("empty pdf credentials")
	}
	return nil
}

// Failure is a receipt that could not be mined.
type Failure struct {
	ID    string
	Err   error
	Stack []byte
}

// Result holds the result of batch processing.
type Result struct {
	Entries     []export.Entry
	Failures    []Failure
	Duration    time.Duration
	WorkerCount int
	Reports     []export.Report
}
