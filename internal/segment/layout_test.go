package segment

import (
	"image"
	"testing"

	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/MeKo-Tech/receiptminer/internal/testutil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawConfig() Config {
	cfg := DefaultConfig()
	cfg.CleanEdges = false
	return cfg
}

func TestSplit_StandardReceipt(t *testing.T) {
	c, geo := testutil.StandardReceipt()
	layout, err := New(DefaultConfig()).Split(c.Raster(t))
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, geo.Width, geo.GeneralEnd), layout.General.Rect())
	assert.Equal(t, image.Rect(0, geo.ProductsStart, geo.Width, geo.ProductsEnd), layout.Products.Rect())
	assert.Equal(t, image.Rect(0, geo.PaymentStart, geo.Width, geo.PaymentEnd), layout.Payment.Rect())
	assert.Equal(t, RoleGeneral, layout.General.Role)
	assert.Equal(t, RoleProducts, layout.Products.Role)
	assert.Equal(t, RolePayment, layout.Payment.Role)
	assert.Len(t, layout.Zones(), 3)
}

func TestSplit_UniformRasterFails(t *testing.T) {
	r := testutil.NewCanvas(200, 400).Raster(t)
	_, err := New(DefaultConfig()).Split(r)

	var se *SegmentationError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, ErrTooFewBoundaries)
}

func TestSplit_BlackRasterFails(t *testing.T) {
	c := testutil.NewCanvas(50, 50).Block(0, 0, 50, 50)
	_, err := New(DefaultConfig()).Split(c.Raster(t))
	require.ErrorIs(t, err, ErrEmptyHistogram)
}

func TestSplit_EmptyRasterFails(t *testing.T) {
	_, err := New(DefaultConfig()).Split(raster.Raster{})
	require.ErrorIs(t, err, ErrEmptyHistogram)
}

func TestSplit_SingleBlockFails(t *testing.T) {
	c := testutil.NewCanvas(200, 600).Rule(100, 2).Rule(400, 2)
	_, err := New(DefaultConfig()).Split(c.Raster(t))
	require.ErrorIs(t, err, ErrTooFewBoundaries)
}

func TestSplit_PaymentCollapsedByMargin(t *testing.T) {
	c := testutil.NewCanvas(200, 600).Rule(100, 2).Rule(300, 2).Rule(400, 2)
	_, err := New(DefaultConfig()).Split(c.Raster(t))
	require.ErrorIs(t, err, ErrDegenerateZone)
}

// Zones produced from any receipt with detectable boundaries are disjoint
// and ordered top to bottom.
func TestSplit_ZonesDisjointProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 40
	properties := gopter.NewProperties(params)

	properties.Property("general < products < payment", prop.ForAll(
		func(top, general, products, payment, thickness int) bool {
			h := top + general + products + payment + 20
			c := testutil.NewCanvas(120, h)
			y := top
			c.Rule(y, thickness)
			y += general
			c.Rule(y, thickness)
			y += products
			c.Rule(y, thickness)
			y += payment
			c.Rule(y, thickness)

			r, err := raster.FromImage(c.Gray())
			if err != nil {
				return false
			}
			layout, err := New(DefaultConfig()).Split(r)
			if err != nil {
				return false
			}
			g, p, m := layout.General.Rect(), layout.Products.Rect(), layout.Payment.Rect()
			return !g.Empty() && !p.Empty() && !m.Empty() &&
				g.Max.Y <= p.Min.Y && p.Max.Y <= m.Min.Y &&
				g.In(r.Bounds()) && p.In(r.Bounds()) && m.In(r.Bounds())
		},
		gen.IntRange(0, 40),
		gen.IntRange(60, 200),
		gen.IntRange(40, 200),
		gen.IntRange(200, 300),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}

func TestSplitPayment_StandardReceipt(t *testing.T) {
	c, geo := testutil.StandardReceipt()
	seg := New(DefaultConfig())
	layout, err := seg.Split(c.Raster(t))
	require.NoError(t, err)

	amount, paymentType, err := seg.SplitPayment(layout.Payment)
	require.NoError(t, err)
	assert.Equal(t, RolePaymentAmount, amount.Role)
	assert.Equal(t, RolePaymentType, paymentType.Role)

	top := layout.Payment.Rect().Min.Y
	assert.InDelta(t, geo.AmountEnd, amount.Rect().Max.Y-top, 1)
	assert.InDelta(t, geo.TypeStart, paymentType.Rect().Min.Y-top, 1)
	assert.InDelta(t, geo.TypeEnd, paymentType.Rect().Max.Y-top, 1)
}

func TestSplitPayment_RawRules(t *testing.T) {
	c := testutil.NewCanvas(300, 300).Rule(0, 1).Rule(100, 2).Rule(200, 2)
	seg := New(rawConfig())
	zone := Zone{Role: RolePayment, Raster: c.Raster(t)}

	amount, paymentType, err := seg.SplitPayment(zone)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 96), amount.Rect())
	assert.Equal(t, image.Rect(0, 106, 300, 200), paymentType.Rect())
}

func TestSplitPayment_NoRule(t *testing.T) {
	zone := Zone{Role: RolePayment, Raster: testutil.NewCanvas(100, 100).Raster(t)}
	_, _, err := New(rawConfig()).SplitPayment(zone)
	require.ErrorIs(t, err, ErrTooFewBoundaries)
}

func nameValueBlock(t *testing.T) Zone {
	c := testutil.NewCanvas(300, 60).Block(10, 20, 80, 40).Block(220, 20, 280, 40)
	return Zone{Role: RolePaymentAmount, Raster: c.Raster(t)}
}

func TestNameValueColumns(t *testing.T) {
	seg := New(rawConfig())

	names, values, err := seg.PaymentAmountColumns(nameValueBlock(t))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 219, 60), names.Rect())
	assert.Equal(t, image.Rect(219, 0, 300, 60), values.Rect())
	assert.Equal(t, RolePaymentNames, names.Role)
	assert.Equal(t, RolePaymentValues, values.Role)
}

func TestNameValueColumns_Offset(t *testing.T) {
	seg := New(rawConfig())

	names, values, err := seg.PaymentTypeColumns(nameValueBlock(t))
	require.NoError(t, err)
	assert.Equal(t, 169, names.Rect().Max.X)
	assert.Equal(t, 169, values.Rect().Min.X)
}

func TestSplitGeneral(t *testing.T) {
	zone := Zone{Role: RoleGeneral, Raster: testutil.NewCanvas(200, 100).Raster(t)}
	cashier, dateTime, err := New(DefaultConfig()).SplitGeneral(zone, 60)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 58, 100, 100), cashier.Rect())
	assert.Equal(t, image.Rect(100, 58, 200, 100), dateTime.Rect())
	assert.Equal(t, RoleCashier, cashier.Role)
	assert.Equal(t, RoleDateTime, dateTime.Role)

	_, _, err = New(DefaultConfig()).SplitGeneral(zone, 150)
	require.ErrorIs(t, err, ErrDegenerateZone)
}

func headerTokens() []ocr.Token {
	return []ocr.Token{
		{Text: "Product", Left: 0, Top: 2, Width: 50, Height: 12},
		{Text: "Quantity", Left: 100, Top: 2, Width: 56, Height: 12},
		{Text: "Prlce", Left: 160, Top: 3, Width: 35, Height: 12},
		{Text: "Total", Left: 220, Top: 2, Width: 35, Height: 12},
	}
}

func TestProductColumns_FromHeader(t *testing.T) {
	zone := Zone{Role: RoleProducts, Raster: testutil.NewCanvas(300, 200).Raster(t)}
	cols, err := New(DefaultConfig()).ProductColumns(zone, headerTokens())
	require.NoError(t, err)

	assert.Equal(t, CutsFromHeader, cols.Source)
	assert.Equal(t, [4]Span{{0, 100}, {100, 160}, {160, 220}, {220, 300}}, cols.Bounds)
	assert.Equal(t, image.Rect(100, 15, 160, 200), cols.Quantity.Rect())
	assert.Equal(t, RoleAmount, cols.Amount.Role)
	assert.Len(t, cols.Zones(), 4)
}

func TestProductColumns_HistogramFallback(t *testing.T) {
	c := testutil.NewCanvas(300, 100).
		Block(10, 10, 90, 90).
		Block(120, 10, 150, 90).
		Block(180, 10, 230, 90).
		Block(260, 10, 290, 90)
	zone := Zone{Role: RoleProducts, Raster: c.Raster(t)}

	cols, err := New(rawConfig()).ProductColumns(zone, headerTokens()[:2])
	require.NoError(t, err)
	assert.Equal(t, CutsFromHistogram, cols.Source)
	assert.Equal(t, [4]Span{{9, 119}, {119, 179}, {179, 259}, {259, 299}}, cols.Bounds)
}

func TestProductColumns_NothingFound(t *testing.T) {
	zone := Zone{Role: RoleProducts, Raster: testutil.NewCanvas(300, 100).Raster(t)}
	_, err := New(rawConfig()).ProductColumns(zone, nil)
	var se *SegmentationError
	require.ErrorAs(t, err, &se)
}

func TestHeaderCuts_OutOfOrder(t *testing.T) {
	tokens := headerTokens()
	tokens[1].Left = 250
	_, _, err := New(DefaultConfig()).HeaderCuts(tokens)
	require.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.PaymentTypeOffset = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Receipt.ThresholdScale = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Headers[2] = ""
	assert.Error(t, cfg.Validate())
}
