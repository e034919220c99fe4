package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Canvas draws synthetic receipt rasters: white paper, black ink.
type Canvas struct {
	img  *image.Gray
	face font.Face
}

// NewCanvas returns a white canvas of the given size.
func NewCanvas(w, h int) *Canvas {
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return &Canvas{img: img, face: basicfont.Face7x13}
}

// Rule draws a full-width horizontal line starting at row y.
func (c *Canvas) Rule(y, thickness int) *Canvas {
	return c.Block(0, y, c.img.Rect.Dx(), y+thickness)
}

// Band draws a full-width horizontal line of the given gray level.
func (c *Canvas) Band(y, thickness int, level uint8) *Canvas {
	r := image.Rect(0, y, c.img.Rect.Dx(), y+thickness)
	draw.Draw(c.img, r, image.NewUniform(color.Gray{Y: level}), image.Point{}, draw.Src)
	return c
}

// Block fills the rectangle [x0,x1) x [y0,y1) with ink.
func (c *Canvas) Block(x0, y0, x1, y1 int) *Canvas {
	draw.Draw(c.img, image.Rect(x0, y0, x1, y1), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return c
}

// Text draws s with its top-left corner near (x, y).
func (c *Canvas) Text(x, y int, s string) *Canvas {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(color.Black),
		Face: c.face,
		Dot:  fixed.P(x, y+c.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
	return c
}

// Gray returns the canvas image.
func (c *Canvas) Gray() *image.Gray { return c.img }

// Raster converts the canvas into a Raster.
func (c *Canvas) Raster(t *testing.T) raster.Raster {
	t.Helper()
	r, err := raster.FromImage(c.img)
	require.NoError(t, err)
	return r
}

// ReceiptGeometry records where StandardReceipt placed its rules. All rows
// are in root raster coordinates.
type ReceiptGeometry struct {
	Width, Height int
	// GeneralEnd, ProductsStart/End and PaymentStart/End are the zone
	// extents the default segmenter configuration must produce.
	GeneralEnd    int
	ProductsStart int
	ProductsEnd   int
	PaymentStart  int
	PaymentEnd    int
	// AmountEnd and TypeStart/End are relative to the payment zone and
	// assume edge cleaning, which widens each band by one row on both sides.
	AmountEnd int
	TypeStart int
	TypeEnd   int
}

// StandardReceipt draws a receipt laid out like the e-kassa template: a
// header block, a products block and a payment block separated by
// full-width rules. The payment block is divided by two light gray bands
// that only show up once edges are extracted.
func StandardReceipt() (*Canvas, ReceiptGeometry) {
	const w, h = 600, 1000
	c := NewCanvas(w, h)

	c.Rule(60, 2).Rule(400, 2).Rule(620, 2).Rule(950, 2)
	c.Band(700, 2, 200).Band(760, 2, 200)

	c.Text(20, 10, "Object name: Test Market")
	c.Text(20, 80, "Object address: Baku")
	c.Text(20, 110, "TIN: 1234567")
	c.Text(20, 300, "Cashier: Aysel")
	c.Text(220, 300, "Date: 01.01.2025")

	c.Text(10, 410, "Product    Quantity Price Total")
	c.Text(10, 440, "Bread        2      0.50  1.00")
	c.Text(10, 470, "Milk         1      1.20  1.20")

	c.Text(10, 630, "Total:              2.20")
	c.Text(10, 650, "Non-tax:            0.00")
	c.Text(10, 720, "Cashless:           2.20")
	c.Text(10, 740, "Cash:               0.00")

	// Zones start on the last row of a rule and stop at the first row of
	// the next one.
	return c, ReceiptGeometry{
		Width:         w,
		Height:        h,
		GeneralEnd:    401 - 50,
		ProductsStart: 401,
		ProductsEnd:   620,
		PaymentStart:  621,
		PaymentEnd:    950 - 160,
		AmountEnd:     (702 - 621) - 5,
		TypeStart:     (702 - 621) + 5,
		TypeEnd:       759 - 621,
	}
}
