package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/ocr/ocrtest"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/MeKo-Tech/receiptminer/internal/receipt"
	"github.com/MeKo-Tech/receiptminer/internal/segment"
	"github.com/MeKo-Tech/receiptminer/internal/testutil"
	"github.com/MeKo-Tech/receiptminer/internal/validate"
)

// halvesSegmenter uses the real layout split but cuts payment blocks into
// fixed halves, so the scripted OCR output decides the payment rows.
type halvesSegmenter struct {
	*segment.Segmenter
}

func halves(z segment.Zone) (segment.Zone, segment.Zone, error) {
	w := z.Raster.Width()
	names, err := z.Cols(segment.RolePaymentNames, 0, w/2)
	if err != nil {
		return segment.Zone{}, segment.Zone{}, err
	}
	values, err := z.Cols(segment.RolePaymentValues, w/2, w)
	return names, values, err
}

func (halvesSegmenter) PaymentAmountColumns(z segment.Zone) (segment.Zone, segment.Zone, error) {
	return halves(z)
}

func (halvesSegmenter) PaymentTypeColumns(z segment.Zone) (segment.Zone, segment.Zone, error) {
	return halves(z)
}

type recorder struct {
	mu     sync.Mutex
	images []string
	texts  map[string]string
	runs   map[string]bool
}

func newRecorder() *recorder {
	return &recorder{texts: map[string]string{}, runs: map[string]bool{}}
}

func (r *recorder) LogImage(run RunContext, tag string, _ raster.Raster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images = append(r.images, tag)
	r.runs[run.RunID] = true
}

func (r *recorder) LogText(run RunContext, tag, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts[tag] = content
	r.runs[run.RunID] = true
}

func generalTokens() []ocr.Token {
	return ocrtest.Lines(10, 20,
		"Object name: Test Market",
		"Object address: Baku",
		"Object code: 77",
		"Taxpayer name: Test LLC",
		"TIN: 1234567",
		"Sale receipt № 42",
		"Cashier: Aysel Date: 01.01.2025",
		"Time: 12:00:00",
	)
}

func headerTokens() []ocr.Token {
	return []ocr.Token{
		ocrtest.Tok("Product", 0, 5),
		ocrtest.Tok("Quantity", 100, 5),
		ocrtest.Tok("Price", 200, 5),
		ocrtest.Tok("Total", 300, 5),
	}
}

// scriptedReceipt answers every field of one cashless receipt with two
// line items.
func scriptedReceipt() *ocrtest.Engine {
	return ocrtest.New().
		Always(ocr.FieldGeneral, generalTokens()...).
		Push(ocr.FieldColumnHeader, headerTokens()...).
		Push(ocr.FieldQuantities, ocrtest.Column(0, 10, 30, "2", "1")...).
		Push(ocr.FieldProductNames, ocrtest.Line("Bread 2 0.50", 0, 3)...).
		Push(ocr.FieldProductNames, ocrtest.Line("Milk 1 1.20", 0, 5)...).
		Push(ocr.FieldPrices, ocrtest.Tok("0.50", 0, 5)).
		Push(ocr.FieldPrices, ocrtest.Tok("1.20", 0, 5)).
		Push(ocr.FieldAmounts, ocrtest.Tok("1.00", 0, 5)).
		Push(ocr.FieldAmounts, ocrtest.Tok("1.20", 0, 5)).
		Push(ocr.FieldPaymentAmounts, ocrtest.Column(0, 5, 20, "2.20", "0.00")...).
		Push(ocr.FieldPaymentTypeNames, ocrtest.Lines(5, 20, "Cashless:", "Cash:", "Bonus:", "Prepayment:", "Credit:")...).
		Push(ocr.FieldPaymentTypeValues, ocrtest.Column(0, 5, 20, "2.20", "0.00", "0.00", "0.00", "0.00")...)
}

func newMiner(t *testing.T, engine ocr.Engine, opts ...func(*Builder)) *Miner {
	t.Helper()
	b := NewBuilder().
		WithEngine(engine).
		WithSegmenter(halvesSegmenter{segment.New(segment.DefaultConfig())})
	for _, o := range opts {
		o(b)
	}
	m, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func standardRaster(t *testing.T) raster.Raster {
	c, _ := testutil.StandardReceipt()
	return c.Raster(t)
}

func TestMine_StandardReceipt(t *testing.T) {
	engine := scriptedReceipt()
	diag := newRecorder()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := newMiner(t, engine, func(b *Builder) { b.WithDiagnostics(diag).WithMetrics(metrics) })

	res, err := m.Mine(context.Background(), "R-1", standardRaster(t))
	require.NoError(t, err)

	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.Errors)
	assert.Equal(t, segment.CutsFromHeader, res.ColumnSource)
	assert.Equal(t, "R-1", res.Run.ReceiptID)
	assert.NotEmpty(t, res.Run.RunID)

	rec := res.Record
	assert.Equal(t, "R-1", rec.ID)
	assert.Equal(t, "Test Market", rec.General.Name)
	assert.Equal(t, "Aysel", rec.General.Cashier)
	assert.Equal(t, "01.01.2025", rec.General.Date)
	assert.Equal(t, "12:00:00", rec.General.Time)
	assert.Equal(t, []receipt.LineItem{
		{Name: "Bread", Quantity: 2, Price: 0.5, Amount: 1},
		{Name: "Milk", Quantity: 1, Price: 1.2, Amount: 1.2},
	}, rec.Items)
	assert.InDelta(t, 2.2, rec.Payment.Total, 1e-9)
	assert.InDelta(t, 2.2, rec.Payment.Cashless, 1e-9)
	assert.InDelta(t, 2.2, rec.Payment.Tax, 1e-9)

	assert.Contains(t, diag.images, "receipt")
	assert.Contains(t, diag.images, string(segment.RoleProducts))
	assert.Contains(t, diag.images, string(segment.RoleQuantity))
	assert.Contains(t, diag.texts["receipt"], "Test Market")
	assert.Len(t, diag.runs, 1)

	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.receipts.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 5, promtest.CollectAndCount(metrics.stageDuration))
	assert.Equal(t, 0, engine.Remaining())
	assert.EqualValues(t, 1, m.Profile()["receipts"])
}

func TestMine_SegmentationErrorIsFatal(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := newMiner(t, ocrtest.New(), func(b *Builder) { b.WithMetrics(metrics) })

	res, err := m.Mine(context.Background(), "blank", testutil.NewCanvas(300, 400).Raster(t))
	require.Error(t, err)
	assert.Nil(t, res)

	var se *segment.SegmentationError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "receipt blank")
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.receipts.WithLabelValues(OutcomeSegmentation)))
}

func TestMine_RecognitionErrorIsFatal(t *testing.T) {
	engine := ocrtest.New().Fail(ocr.FieldGeneral, errors.New("engine crashed"))
	m := newMiner(t, engine)

	_, err := m.Mine(context.Background(), "R-2", standardRaster(t))
	var re *ocr.RecognitionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ocr.FieldGeneral, re.Field)
	assert.Equal(t, OutcomeRecognition, classify(err))
}

func TestMine_CancelledBeforeFirstStage(t *testing.T) {
	m := newMiner(t, scriptedReceipt())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Mine(ctx, "R-3", standardRaster(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeCancelled, classify(err))
}

func TestMine_PaymentCountErrorDegrades(t *testing.T) {
	engine := ocrtest.New().
		Always(ocr.FieldGeneral, generalTokens()...).
		Push(ocr.FieldColumnHeader, headerTokens()...).
		Push(ocr.FieldQuantities, ocrtest.Tok("1", 0, 10)).
		Push(ocr.FieldProductNames, ocrtest.Line("Tea 1 2.20", 0, 3)...).
		Push(ocr.FieldPrices, ocrtest.Tok("2.20", 0, 5)).
		Push(ocr.FieldAmounts, ocrtest.Tok("2.20", 0, 5)).
		Push(ocr.FieldPaymentAmounts, ocrtest.Column(0, 5, 20, "2.20", "0.00")...).
		Push(ocr.FieldPaymentTypeNames, ocrtest.Lines(300, 20, "Cashless:", "Cash:")...).
		Push(ocr.FieldPaymentTypeValues, ocrtest.Column(0, 5, 20, "2.20", "0", "0", "0", "0", "0")...)
	m := newMiner(t, engine)

	res, err := m.Mine(context.Background(), "R-4", standardRaster(t))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Warnings.Count(receipt.PaymentCount))
	assert.Zero(t, res.Record.Payment.Cashless)
	assert.Contains(t, res.Errors.Categories(), validate.CategoryPaymentParts)
}

func TestMine_ReportingModeKeepsValues(t *testing.T) {
	engine := ocrtest.New().
		Always(ocr.FieldGeneral, generalTokens()...).
		Push(ocr.FieldColumnHeader, headerTokens()...).
		Push(ocr.FieldQuantities, ocrtest.Tok("2", 0, 10)).
		Push(ocr.FieldProductNames, ocrtest.Line("Tea 2 150", 0, 3)...).
		Push(ocr.FieldPrices, ocrtest.Tok("150", 0, 5)).
		Push(ocr.FieldAmounts, ocrtest.Tok("3.00", 0, 5)).
		Push(ocr.FieldPaymentAmounts, ocrtest.Column(0, 5, 20, "3.00", "0.00")...).
		Push(ocr.FieldPaymentTypeNames, ocrtest.Lines(5, 20, "Cashless:", "Cash:", "Bonus:", "Prepayment:", "Credit:")...).
		Push(ocr.FieldPaymentTypeValues, ocrtest.Column(0, 5, 20, "3.00", "0", "0", "0", "0")...)
	m := newMiner(t, engine, func(b *Builder) { b.WithValidationMode(validate.Reporting) })

	res, err := m.Mine(context.Background(), "R-5", standardRaster(t))
	require.NoError(t, err)
	require.Len(t, res.Record.Items, 1)
	assert.Equal(t, 150.0, res.Record.Items[0].Price)
	assert.Equal(t, []validate.Category{validate.CategoryLineItem}, res.Errors.Categories())
}

func TestBuilder_Validate(t *testing.T) {
	_, err := NewBuilder().Build()
	assert.ErrorContains(t, err, "no OCR engine")

	b := NewBuilder().WithEngine(ocrtest.New()).WithTolerance(0.5).WithOCRTimeout(0).WithParallelWorkers(3)
	assert.Equal(t, 0.5, b.Config().Validation.Tolerance)
	assert.Equal(t, 3, b.Config().Parallel.MaxWorkers)
	assert.NoError(t, b.Validate())

	cfg := DefaultConfig()
	cfg.Keywords.OneToken = 150
	assert.ErrorContains(t, NewBuilder().WithEngine(ocrtest.New()).WithConfig(cfg).Validate(), "similarity")

	cfg = DefaultConfig()
	cfg.Payment.CashThreshold = -1
	assert.Error(t, cfg.Validate())
}

func TestMiner_CloseReleasesEngine(t *testing.T) {
	engine := ocrtest.New()
	m, err := NewBuilder().WithEngine(engine).Build()
	require.NoError(t, err)
	require.NoError(t, m.Close())
	assert.True(t, engine.Closed())

	var nilMiner *Miner
	assert.NoError(t, nilMiner.Close())
}

func TestReceiptIDFromPath(t *testing.T) {
	assert.Equal(t, "7Hc3Ab", ReceiptIDFromPath("/data/receipts/7Hc3Ab.png"))
	assert.Equal(t, "scan.v2", ReceiptIDFromPath("scan.v2.jpg"))
}
