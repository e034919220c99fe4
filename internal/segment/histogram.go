package segment

import "github.com/MeKo-Tech/receiptminer/internal/raster"

// Histograms holds the projection profiles of a raster. Rows has one entry
// per row (sum across the row) scaled so the brightest row equals the
// raster width; Cols has one entry per column scaled so the brightest
// column equals the raster height. Background is white, so blank lines sit
// at the top of the scale and ink pulls values down.
type Histograms struct {
	Rows   []float64
	Cols   []float64
	Width  int
	Height int
}

// Project computes both projection histograms. With clean set, the raster is
// first turned into an inverted edge map to suppress shading and
// antialiasing.
func Project(r raster.Raster, clean bool) (Histograms, error) {
	if r.Empty() {
		return Histograms{}, ErrEmptyHistogram
	}
	if clean {
		r = raster.CleanEdges(r)
	}

	w, h := r.Width(), r.Height()
	rows := make([]float64, h)
	cols := make([]float64, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(r.GrayAt(x, y))
			rows[y] += v
			cols[x] += v
		}
	}

	if !scaleTo(rows, float64(w)) || !scaleTo(cols, float64(h)) {
		return Histograms{}, ErrEmptyHistogram
	}
	return Histograms{Rows: rows, Cols: cols, Width: w, Height: h}, nil
}

func scaleTo(v []float64, extent float64) bool {
	peak := 0.0
	for _, x := range v {
		if x > peak {
			peak = x
		}
	}
	if peak == 0 {
		return false
	}
	for i := range v {
		v[i] = v[i] / peak * extent
	}
	return true
}
