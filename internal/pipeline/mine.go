package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/receiptminer/internal/common"
	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/payment"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/MeKo-Tech/receiptminer/internal/receipt"
	"github.com/MeKo-Tech/receiptminer/internal/segment"
	"github.com/MeKo-Tech/receiptminer/internal/validate"
)

// Stage names, also used as metric labels.
const (
	StageSegmentation = "segmentation"
	StageGeneral      = "general"
	StageProducts     = "products"
	StagePayment      = "payment"
	StageValidation   = "validation"
)

// Outcome labels for finished runs.
const (
	OutcomeOK           = "ok"
	OutcomeSegmentation = "segmentation_error"
	OutcomeRecognition  = "recognition_error"
	OutcomeCancelled    = "cancelled"
	OutcomeError        = "error"
)

// Timing holds per-stage durations of one run.
type Timing struct {
	SegmentationNs int64 `json:"segmentation_ns"`
	GeneralNs      int64 `json:"general_ns"`
	ProductsNs     int64 `json:"products_ns"`
	PaymentNs      int64 `json:"payment_ns"`
	ValidationNs   int64 `json:"validation_ns"`
	TotalNs        int64 `json:"total_ns"`
}

// Result is the outcome of mining one receipt.
type Result struct {
	Run      RunContext       `json:"run"`
	Record   *receipt.Record  `json:"record"`
	Warnings receipt.Warnings `json:"warnings,omitempty"`
	Errors   validate.Errors  `json:"validation_errors,omitempty"`
	// ColumnSource tells whether product columns came from the header
	// words or the histogram fallback.
	ColumnSource string `json:"column_source"`
	Timing       Timing `json:"timing"`
}

// Mine runs the full pipeline over one receipt raster. Only segmentation,
// recognition and cancellation errors are returned; field-level failures
// end up in Result.Warnings.
func (m *Miner) Mine(ctx context.Context, receiptID string, r raster.Raster) (*Result, error) {
	if m == nil || m.rec == nil || m.seg == nil {
		return nil, errors.New("miner not initialized")
	}
	run := NewRun(receiptID)
	logger := m.logger.With("receipt_id", run.ReceiptID, "run_id", run.RunID)
	logger.Debug("mining receipt", "width", r.Width(), "height", r.Height())

	res := &Result{Run: run, Record: &receipt.Record{ID: receiptID}}
	start := time.Now()
	err := m.mine(ctx, run, logger, r, res)
	res.Timing.TotalNs = time.Since(start).Nanoseconds()
	m.profiler.Run()

	outcome := classify(err)
	m.metrics.observeOutcome(outcome)
	if err != nil {
		logger.Error("receipt mining failed", "outcome", outcome, "error", err)
		return nil, fmt.Errorf("receipt %s: %w", receiptID, err)
	}
	m.metrics.observeFindings(res.Warnings, res.Errors)
	logger.Info("receipt mined",
		"items", len(res.Record.Items),
		"warnings", len(res.Warnings),
		"validation_errors", len(res.Errors),
		"duration_ms", time.Duration(res.Timing.TotalNs).Milliseconds())
	return res, nil
}

// MineImage converts img to grayscale and mines it.
func (m *Miner) MineImage(ctx context.Context, receiptID string, img image.Image) (*Result, error) {
	r, err := raster.FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("receipt %s: %w", receiptID, err)
	}
	return m.Mine(ctx, receiptID, r)
}

// MineFile loads an image file and mines it under its base name.
func (m *Miner) MineFile(ctx context.Context, path string) (*Result, error) {
	r, _, err := raster.Load(path)
	if err != nil {
		return nil, err
	}
	return m.Mine(ctx, ReceiptIDFromPath(path), r)
}

// ReceiptIDFromPath strips directory and extension.
func ReceiptIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (m *Miner) mine(ctx context.Context, run RunContext, logger *slog.Logger, r raster.Raster, res *Result) error {
	var layout segment.Layout
	err := m.stage(ctx, StageSegmentation, &res.Timing.SegmentationNs, func() error {
		var err error
		if layout, err = m.seg.Split(r); err != nil {
			return err
		}
		m.diag.LogImage(run, "receipt", r)
		for _, z := range layout.Zones() {
			m.diag.LogImage(run, string(z.Role), z.Raster)
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = m.stage(ctx, StageGeneral, &res.Timing.GeneralNs, func() error {
		info, ws, err := m.keywords.GeneralInfo(ctx, layout.General, m.seg)
		if err != nil {
			return err
		}
		res.Record.General = info
		res.Warnings = append(res.Warnings, ws...)
		m.diag.LogText(run, "general", fmt.Sprintf("%+v", info))
		return nil
	})
	if err != nil {
		return err
	}

	err = m.stage(ctx, StageProducts, &res.Timing.ProductsNs, func() error {
		header, err := m.rec.Recognize(ctx, layout.Products.Raster, m.cfg.Specs.ColumnHeader)
		if err != nil {
			return err
		}
		cols, err := m.seg.ProductColumns(layout.Products, header)
		if err != nil {
			return err
		}
		res.ColumnSource = cols.Source
		for _, z := range cols.Zones() {
			m.diag.LogImage(run, string(z.Role), z.Raster)
		}
		items, ws, err := m.items.Extract(ctx, cols)
		if err != nil {
			return err
		}
		res.Record.Items = items
		res.Warnings = append(res.Warnings, ws...)
		logger.Debug("line items extracted", "items", len(items), "columns", cols.Source)
		return nil
	})
	if err != nil {
		return err
	}

	err = m.stage(ctx, StagePayment, &res.Timing.PaymentNs, func() error {
		info, ws, err := m.payment.Extract(ctx, layout.Payment)
		var ce *payment.CountError
		if errors.As(err, &ce) {
			ws.Add(receipt.PaymentCount, "payment", "%v; payment breakdown left at zero", ce)
			logger.Warn("payment breakdown dropped", "values", ce.Got)
			err = nil
		}
		if err != nil {
			return err
		}
		res.Record.Payment = info
		res.Warnings = append(res.Warnings, ws...)
		return nil
	})
	if err != nil {
		return err
	}

	return m.stage(ctx, StageValidation, &res.Timing.ValidationNs, func() error {
		res.Errors = m.validator.Validate(res.Record)
		m.diag.LogText(run, "receipt", receipt.Render(res.Record))
		return nil
	})
}

// stage runs fn after a cancellation checkpoint and records its duration.
func (m *Miner) stage(ctx context.Context, name string, dst *int64, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("before %s: %w", name, err)
	}
	timer := common.NewNamedTimer(name)
	err := fn()
	d := timer.Stop()
	*dst = d.Nanoseconds()
	m.metrics.observeStage(name, d)
	m.profiler.Record(name, d)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func classify(err error) string {
	var se *segment.SegmentationError
	var re *ocr.RecognitionError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded) && !errors.As(err, &re):
		return OutcomeCancelled
	case errors.As(err, &se):
		return OutcomeSegmentation
	case errors.As(err, &re):
		return OutcomeRecognition
	default:
		return OutcomeError
	}
}
