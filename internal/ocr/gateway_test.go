package ocr_test

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/ocr/ocrtest"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blankRaster(t *testing.T, w, h int) raster.Raster {
	t.Helper()
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return raster.FromGray(g)
}

func TestGateway_FiltersBlankTokens(t *testing.T) {
	eng := ocrtest.New().Push(ocr.FieldGeneral,
		ocrtest.Tok("TIN:", 0, 0),
		ocrtest.Tok("   ", 40, 0),
		ocrtest.Tok("", 60, 0),
		ocrtest.Tok(" 1234 ", 80, 0),
	)
	gw := ocr.NewGateway(eng)

	tokens, err := gw.Recognize(context.Background(), blankRaster(t, 50, 20), ocr.DefaultSpecs().General)
	require.NoError(t, err)
	assert.Equal(t, []string{"TIN:", "1234"}, ocr.Texts(tokens))
}

func TestGateway_AllBlankIsNotAnError(t *testing.T) {
	eng := ocrtest.New().Push(ocr.FieldQuantities, ocrtest.Tok(" ", 0, 0))
	gw := ocr.NewGateway(eng)

	tokens, err := gw.Recognize(context.Background(), blankRaster(t, 10, 10), ocr.DefaultSpecs().Quantities)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestGateway_EngineErrorIsRecognitionError(t *testing.T) {
	boom := errors.New("corrupt region")
	eng := ocrtest.New().Fail(ocr.FieldPrices, boom)
	gw := ocr.NewGateway(eng)

	_, err := gw.Recognize(context.Background(), blankRaster(t, 10, 10), ocr.DefaultSpecs().Prices)
	var re *ocr.RecognitionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ocr.FieldPrices, re.Field)
	assert.ErrorIs(t, err, boom)
	assert.False(t, re.Timeout())
}

func TestGateway_Timeout(t *testing.T) {
	eng := ocrtest.New().Delay(time.Second)
	gw := ocr.NewGateway(eng, ocr.WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := gw.Recognize(context.Background(), blankRaster(t, 10, 10), ocr.DefaultSpecs().Amounts)
	var re *ocr.RecognitionError
	require.ErrorAs(t, err, &re)
	assert.True(t, re.Timeout())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGateway_CancelledContext(t *testing.T) {
	eng := ocrtest.New()
	gw := ocr.NewGateway(eng)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Recognize(ctx, blankRaster(t, 10, 10), ocr.DefaultSpecs().General)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, eng.Calls(), "engine must not be called after cancellation")
}

func TestGateway_EmptyRegion(t *testing.T) {
	gw := ocr.NewGateway(ocrtest.New())
	_, err := gw.Recognize(context.Background(), raster.Raster{}, ocr.DefaultSpecs().General)
	require.ErrorIs(t, err, raster.ErrEmptyRegion)
}

func TestGateway_NilEngine(t *testing.T) {
	gw := ocr.NewGateway(nil)
	_, err := gw.Recognize(context.Background(), blankRaster(t, 4, 4), ocr.DefaultSpecs().General)
	require.Error(t, err)
}

func TestGateway_ObserverAndClose(t *testing.T) {
	eng := ocrtest.New().Push(ocr.FieldGeneral, ocrtest.Tok("a", 0, 0))
	var seen []string
	gw := ocr.NewGateway(eng, ocr.WithObserver(func(field string, _ time.Duration, n int, err error) {
		assert.NoError(t, err)
		assert.Equal(t, 1, n)
		seen = append(seen, field)
	}))

	_, err := gw.Recognize(context.Background(), blankRaster(t, 4, 4), ocr.DefaultSpecs().General)
	require.NoError(t, err)
	assert.Equal(t, []string{ocr.FieldGeneral}, seen)

	require.NoError(t, gw.Close())
	assert.True(t, eng.Closed())
}

func TestGateway_PassesRegionBounds(t *testing.T) {
	eng := ocrtest.New()
	gw := ocr.NewGateway(eng)
	root := blankRaster(t, 40, 40)
	sub, err := root.Region(image.Rect(10, 5, 30, 25))
	require.NoError(t, err)

	_, err = gw.Recognize(context.Background(), sub, ocr.DefaultSpecs().General)
	require.NoError(t, err)
	calls := eng.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 20, calls[0].Bounds.Dx())
	assert.Equal(t, 20, calls[0].Bounds.Dy())
}
