package raster

import (
	"image"
	"math"
	"slices"

	"github.com/disintegration/imaging"
)

var (
	sobelX = [9]float64{-1, 0, 1, -2, 0, 2, -1, 0, 1}
	sobelY = [9]float64{-1, -2, -1, 0, 0, 0, 1, 2, 1}
)

// medianWindow is the side of the square median filter used after edge
// extraction to suppress antialiasing speckle.
const medianWindow = 5

// CleanEdges replaces the raster with an inverted Sobel edge magnitude map
// smoothed by a 5x5 median filter. Text strokes stay dark, flat background
// and shaded fills become white, which sharpens projection-histogram gaps.
func CleanEdges(r Raster) Raster {
	if r.Empty() {
		return r
	}
	opts := &imaging.ConvolveOptions{Abs: true}
	gx := imaging.Convolve3x3(r.img, sobelX, opts)
	gy := imaging.Convolve3x3(r.img, sobelY, opts)

	w, h := r.Width(), r.Height()
	inv := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := gx.PixOffset(x, y)
			mag := math.Hypot(float64(gx.Pix[i]), float64(gy.Pix[i]))
			if mag > 255 {
				mag = 255
			}
			inv.Pix[y*inv.Stride+x] = 255 - uint8(math.Round(mag))
		}
	}
	return Raster{img: median(inv, medianWindow)}
}

// median applies a square median filter with replicated borders.
func median(src *image.Gray, size int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	half := size / 2
	window := make([]uint8, 0, size*size)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			window = window[:0]
			for dy := -half; dy <= half; dy++ {
				yy := clamp(y+dy, 0, h-1)
				row := src.Pix[yy*src.Stride:]
				for dx := -half; dx <= half; dx++ {
					window = append(window, row[clamp(x+dx, 0, w-1)])
				}
			}
			slices.Sort(window)
			out.Pix[y*out.Stride+x] = window[len(window)/2]
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
