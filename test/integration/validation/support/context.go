// Package support holds the step definitions of the validation feature
// suite.
package support

import (
	"io"
	"log/slog"

	"github.com/MeKo-Tech/receiptminer/internal/receipt"
	"github.com/MeKo-Tech/receiptminer/internal/validate"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	Record    *receipt.Record
	Original  *receipt.Record
	Tolerance float64
	Mode      validate.Mode

	LastErrors validate.Errors
	Validated  bool
}

// NewTestContext creates an empty scenario state with the default
// validator settings.
func NewTestContext() *TestContext {
	return &TestContext{
		Record:    &receipt.Record{ID: "scenario"},
		Tolerance: validate.DefaultTolerance,
		Mode:      validate.Correcting,
	}
}

// validator builds a quiet validator from the scenario settings.
func (testCtx *TestContext) validator() *validate.Validator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return validate.New(validate.Config{Mode: testCtx.Mode, Tolerance: testCtx.Tolerance}, logger)
}
