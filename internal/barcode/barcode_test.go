package barcode

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/MeKo-Tech/receiptminer/internal/testutil"
)

const payload = "https://monitoring.e-kassa.gov.az/#/index?doc=7HcWNTHkStquLFJXcG2Gd3Kr9anpLzVt1DfHAXCKDexp"

// qrPhoto renders payload as a QR code on a larger page, drawn with dark
// and light levels of the given values.
func qrPhoto(t *testing.T, text string, dark, light uint8) *image.Gray {
	t.Helper()
	matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 240, 240, nil)
	require.NoError(t, err)

	page := image.NewGray(image.Rect(0, 0, 400, 360))
	for y := 0; y < page.Bounds().Dy(); y++ {
		for x := 0; x < page.Bounds().Dx(); x++ {
			page.SetGray(x, y, color.Gray{Y: light})
		}
	}
	for y := 0; y < matrix.GetHeight(); y++ {
		for x := 0; x < matrix.GetWidth(); x++ {
			if matrix.Get(x, y) {
				page.SetGray(80+x, 60+y, color.Gray{Y: dark})
			}
		}
	}
	return page
}

func TestFiscalCode(t *testing.T) {
	tests := map[string]string{
		payload:              "7HcWNTHkStquLFJXcG2Gd3Kr9anpLzVt1DfHAXCKDexp",
		"a=b=c":              "c",
		"  plaincode \n":     "plaincode",
		"https://x.az/?doc=": "",
		"":                   "",
		"doc= 5aBc ":         "5aBc",
	}
	for in, want := range tests {
		assert.Equal(t, want, FiscalCode(in), "payload %q", in)
	}
}

func TestScanner_Scan(t *testing.T) {
	code, err := NewScanner(nil).Scan(context.Background(), qrPhoto(t, payload, 0, 255))
	require.NoError(t, err)
	assert.Equal(t, "7HcWNTHkStquLFJXcG2Gd3Kr9anpLzVt1DfHAXCKDexp", code)
}

func TestScanner_LowContrastPhoto(t *testing.T) {
	code, err := NewScanner(nil).Scan(context.Background(), qrPhoto(t, "doc=ABC123", 90, 170))
	require.NoError(t, err)
	assert.Equal(t, "ABC123", code)
}

func TestScanner_NoCode(t *testing.T) {
	blank := testutil.NewCanvas(200, 200).Block(20, 20, 60, 60).Raster(t)
	_, err := NewScanner(nil).ScanRaster(context.Background(), blank)
	assert.ErrorIs(t, err, ErrNoCode)

	_, err = NewScanner(nil).ScanRaster(context.Background(), raster.Raster{})
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestScanner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScanner(nil).Scan(ctx, qrPhoto(t, payload, 0, 255))
	assert.True(t, errors.Is(err, context.Canceled))
}

type fixedBackend []Result

func (f fixedBackend) Decode(context.Context, image.Image, Options) ([]Result, error) {
	return f, nil
}

func TestScanner_SkipsEmptyPayloads(t *testing.T) {
	s := NewScanner(fixedBackend{{Value: "doc="}, {Value: "doc=XYZ"}})
	code, err := s.ScanRaster(context.Background(), testutil.NewCanvas(10, 10).Raster(t))
	require.NoError(t, err)
	assert.Equal(t, "XYZ", code)

	_, err = NewScanner(fixedBackend{}).ScanRaster(context.Background(), testutil.NewCanvas(10, 10).Raster(t))
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestRectFromPoints(t *testing.T) {
	assert.Equal(t, image.Rectangle{}, rectFromPoints(nil))
	assert.Equal(t, image.Rect(1, 2, 11, 21), rectFromPoints([]Point{{10, 2}, {1, 20}, {5, 5}}))
}

func TestBackend_ROI(t *testing.T) {
	img := qrPhoto(t, "doc=ROI", 0, 255)
	res, err := NewBackend().Decode(context.Background(), img, Options{ROI: image.Rect(60, 40, 340, 320)})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "doc=ROI", res[0].Value)
	assert.False(t, res[0].BBox.Empty())
}
