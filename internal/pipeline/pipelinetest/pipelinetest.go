// Package pipelinetest builds miners over scripted OCR output for tests of
// packages that drive the pipeline.
package pipelinetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/ocr/ocrtest"
	"github.com/MeKo-Tech/receiptminer/internal/pipeline"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/MeKo-Tech/receiptminer/internal/segment"
	"github.com/MeKo-Tech/receiptminer/internal/testutil"
)

// Segmenter uses the real layout split but cuts payment blocks into fixed
// halves, so the scripted OCR output decides the payment rows.
type Segmenter struct {
	*segment.Segmenter
}

// NewSegmenter wraps a default segmenter.
func NewSegmenter() Segmenter {
	return Segmenter{segment.New(segment.DefaultConfig())}
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

func (Segmenter) PaymentAmountColumns(z segment.Zone) (segment.Zone, segment.Zone, error) {
	return halves(z)
}

func (Segmenter) PaymentTypeColumns(z segment.Zone) (segment.Zone, segment.Zone, error) {
	return halves(z)
}

// Engine answers every recognition of every receipt with the same
// cashless one-item receipt: Tea, 1 x 2.20.
func Engine() *ocrtest.Engine {
	return ocrtest.New().
		Always(ocr.FieldGeneral, ocrtest.Lines(10, 20,
			"Object name: Test Market",
			"Object address: Baku",
			"Object code: 77",
			"Taxpayer name: Test LLC",
			"TIN: 1234567",
			"Sale receipt № 42",
			"Cashier: Aysel Date: 01.01.2025",
			"Time: 12:00:00",
		)...).
		Always(ocr.FieldColumnHeader,
			ocrtest.Tok("Product", 0, 5),
			ocrtest.Tok("Quantity", 100, 5),
			ocrtest.Tok("Price", 200, 5),
			ocrtest.Tok("Total", 300, 5)).
		Always(ocr.FieldQuantities, ocrtest.Tok("1", 0, 10)).
		Always(ocr.FieldProductNames, ocrtest.Line("Tea 1 2.20", 0, 3)...).
		Always(ocr.FieldPrices, ocrtest.Tok("2.20", 0, 5)).
		Always(ocr.FieldAmounts, ocrtest.Tok("2.20", 0, 5)).
		Always(ocr.FieldPaymentAmounts, ocrtest.Column(0, 5, 20, "2.20", "0.00")...).
		Always(ocr.FieldPaymentTypeNames, ocrtest.Lines(5, 20, "Cashless:", "Cash:", "Bonus:", "Prepayment:", "Credit:")...).
		Always(ocr.FieldPaymentTypeValues, ocrtest.Column(0, 5, 20, "2.20", "0", "0", "0", "0")...)
}

// Raster returns the synthetic standard receipt.
func Raster(t *testing.T) raster.Raster {
	t.Helper()
	c, _ := testutil.StandardReceipt()
	return c.Raster(t)
}

// NewMiner builds a miner over engine with the halves segmenter and closes
// it when the test ends.
func NewMiner(t *testing.T, engine ocr.Engine, opts ...func(*pipeline.Builder)) *pipeline.Miner {
	t.Helper()
	b := pipeline.NewBuilder().
		WithEngine(engine).
		WithSegmenter(NewSegmenter())
	for _, o := range opts {
		o(b)
	}
	m, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}
