// Package validate cross-checks an extracted receipt and applies bounded
// corrections.
package validate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/receiptminer/internal/receipt"
)

// Mode selects whether corrections are written back.
type Mode string

const (
	// Correcting writes each check's corrections into the record; later
	// checks see them.
	Correcting Mode = "correcting"
	// Reporting leaves the record untouched and runs every check on the
	// original values.
	Reporting Mode = "reporting"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Correcting, Reporting:
		return m, nil
	case "":
		return Correcting, nil
	default:
		return "", fmt.Errorf("unknown validation mode %q", s)
	}
}

// DefaultTolerance is the absolute currency tolerance of every check.
const DefaultTolerance = 1.0

// Config configures a Validator.
type Config struct {
	Mode      Mode
	Tolerance float64
}

// DefaultConfig returns correcting mode with tolerance 1.
func DefaultConfig() Config {
	return Config{Mode: Correcting, Tolerance: DefaultTolerance}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %v", c.Tolerance)
	}
	return nil
}

// Checks returns the consistency checks in execution order.
func Checks() []Check {
	return []Check{CheckLineItems, CheckTax, CheckPaymentTypes, CheckTotal}
}

// Validator runs the checks over records.
type Validator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Validator.
func New(cfg Config, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Mode == "" {
		cfg.Mode = Correcting
	}
	return &Validator{cfg: cfg, logger: logger}
}

// Mode returns the configured mode.
func (v *Validator) Mode() Mode { return v.cfg.Mode }

// Validate runs all checks once, in fixed order, and returns their errors
// concatenated. Checks are not re-run after a later correction, so one
// check's fix can leave an earlier check's rule broken. In correcting mode
// r is updated in place and line items repaired by a heuristic are not
// reported; in reporting mode they are reported with the proposed repair.
func (v *Validator) Validate(r *receipt.Record) Errors {
	correcting := v.cfg.Mode == Correcting
	current := *r.Clone()
	var all Errors
	for _, check := range Checks() {
		next, errs := check(current, v.cfg.Tolerance)
		for _, e := range errs {
			if e.repaired && correcting {
				v.logger.Debug("line item repaired", "receipt_id", r.ID, "message", e.Message)
				continue
			}
			e.CorrectionApplied = correcting && e.Category != CategoryLineItem
			e.repaired = false
			v.logger.Warn("receipt inconsistency",
				"receipt_id", r.ID,
				"category", e.Category,
				"message", e.Message,
				"corrected", e.CorrectionApplied)
			all = append(all, e)
		}
		if correcting {
			current = next
		}
	}
	if correcting {
		*r = current
	}
	return all
}
