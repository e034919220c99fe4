package raster

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whiteGray(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return g
}

func TestFromImage_ConvertsColor(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 255, 255, 255
	}
	img.Set(1, 1, color.NRGBA{A: 255})

	r, err := FromImage(img)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Width())
	assert.Equal(t, 3, r.Height())
	assert.Equal(t, uint8(255), r.GrayAt(0, 0))
	assert.Equal(t, uint8(0), r.GrayAt(1, 1))
}

func TestFromImage_CopiesGray(t *testing.T) {
	g := whiteGray(2, 2)
	r, err := FromImage(g)
	require.NoError(t, err)

	g.Pix[0] = 0
	assert.Equal(t, uint8(255), r.GrayAt(0, 0), "raster must not alias the caller's buffer")
}

func TestFromImage_Nil(t *testing.T) {
	_, err := FromImage(nil)
	require.Error(t, err)
}

func TestRegion_LocalCoordinates(t *testing.T) {
	g := whiteGray(10, 10)
	g.SetGray(5, 6, color.Gray{Y: 7})
	r := FromGray(g)

	sub, err := r.Region(image.Rect(4, 4, 8, 8))
	require.NoError(t, err)
	assert.Equal(t, 4, sub.Width())
	assert.Equal(t, image.Pt(4, 4), sub.Origin())
	assert.Equal(t, uint8(7), sub.GrayAt(1, 2))

	nested, err := sub.Region(image.Rect(1, 2, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, uint8(7), nested.GrayAt(0, 0))
}

func TestRegion_RejectsOutside(t *testing.T) {
	r := FromGray(whiteGray(10, 10))

	_, err := r.Region(image.Rect(5, 5, 11, 9))
	var re *RegionError
	require.ErrorAs(t, err, &re)

	_, err = r.Region(image.Rect(3, 3, 3, 9))
	require.ErrorIs(t, err, ErrEmptyRegion)
}

func TestRowsAndCols_Clamp(t *testing.T) {
	r := FromGray(whiteGray(10, 20))

	band, err := r.Rows(-5, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, band.Height())
	assert.Equal(t, 10, band.Width())

	col, err := r.Cols(8, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, col.Width())

	_, err = r.Rows(25, 30)
	require.Error(t, err)
}

func TestCleanEdges_WhiteStaysWhite(t *testing.T) {
	r := CleanEdges(FromGray(whiteGray(12, 12)))
	for y := 0; y < r.Height(); y++ {
		for x := 0; x < r.Width(); x++ {
			require.Equal(t, uint8(255), r.GrayAt(x, y))
		}
	}
}

func TestCleanEdges_KeepsStrokes(t *testing.T) {
	g := whiteGray(30, 30)
	// dense vertical hairlines behave like a run of glyphs
	for y := 10; y < 20; y++ {
		for x := 5; x < 25; x++ {
			if (x-5)%4 < 2 {
				g.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	r := CleanEdges(FromGray(g))
	assert.Less(t, r.GrayAt(15, 15), uint8(128))
	assert.Equal(t, uint8(255), r.GrayAt(15, 2))
}

func TestMedian_RemovesSpeckle(t *testing.T) {
	g := whiteGray(9, 9)
	g.SetGray(4, 4, color.Gray{Y: 0})
	out := median(g, 5)
	assert.Equal(t, uint8(255), out.GrayAt(4, 4).Y)
}

func TestUpscale(t *testing.T) {
	r := FromGray(whiteGray(10, 5))
	up := r.Upscale(2)
	assert.Equal(t, 20, up.Width())
	assert.Equal(t, 10, up.Height())
	assert.Equal(t, r, r.Upscale(1))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g := whiteGray(6, 4)
	g.SetGray(2, 1, color.Gray{Y: 40})
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FromGray(g)))

	r, format, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, uint8(40), r.GrayAt(2, 1))
}

func TestLoad_Errors(t *testing.T) {
	_, _, err := Load("")
	require.Error(t, err)

	_, _, err = Load("receipt.gif")
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "load", le.Operation)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, Save(path, FromGray(whiteGray(8, 8))))

	r, meta, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, r.Width())
	assert.Equal(t, "png", meta.Format)
	assert.Positive(t, meta.SizeBytes)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a.PNG"))
	assert.True(t, IsSupported("a.tiff"))
	assert.False(t, IsSupported("a.pdf"))
}
