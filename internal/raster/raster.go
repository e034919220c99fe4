// Package raster holds the single-channel receipt image and the read-only
// region views the segmenter and extractors work on.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// RegionError reports a region that does not fit inside its parent raster.
type RegionError struct {
	Operation string
	Parent    image.Rectangle
	Requested image.Rectangle
	Err       error
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("raster %s: region %v outside %v: %v", e.Operation, e.Requested, e.Parent, e.Err)
}

func (e *RegionError) Unwrap() error { return e.Err }

// ErrEmptyRegion is returned when a requested region has no pixels.
var ErrEmptyRegion = errors.New("empty region")

// Raster is an immutable grayscale image. Regions share pixel storage with
// their parent; nothing in this package writes to the pixels after creation.
type Raster struct {
	img *image.Gray
}

// FromImage converts any decoded image into a Raster. Non-gray inputs are
// converted with imaging.Grayscale; gray inputs are copied so the caller
// keeps ownership of its buffer.
func FromImage(img image.Image) (Raster, error) {
	if img == nil {
		return Raster{}, errors.New("raster: nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return Raster{}, &RegionError{Operation: "convert", Parent: b, Requested: b, Err: ErrEmptyRegion}
	}

	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if g, ok := img.(*image.Gray); ok {
		draw.Draw(out, out.Bounds(), g, b.Min, draw.Src)
		return Raster{img: out}, nil
	}

	nrgba := imaging.Grayscale(img)
	for y := 0; y < b.Dy(); y++ {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+b.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return Raster{img: out}, nil
}

// FromGray wraps an existing gray image without copying. The caller must not
// modify the image afterwards.
func FromGray(g *image.Gray) Raster {
	return Raster{img: g}
}

// Width of the raster in pixels.
func (r Raster) Width() int {
	if r.img == nil {
		return 0
	}
	return r.img.Rect.Dx()
}

// Height of the raster in pixels.
func (r Raster) Height() int {
	if r.img == nil {
		return 0
	}
	return r.img.Rect.Dy()
}

// Empty reports whether the raster has no pixels.
func (r Raster) Empty() bool { return r.Width() == 0 || r.Height() == 0 }

// Bounds returns the raster rectangle in local coordinates (origin 0,0).
func (r Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width(), r.Height())
}

// Origin returns the top-left corner of this raster inside the root raster.
func (r Raster) Origin() image.Point {
	if r.img == nil {
		return image.Point{}
	}
	return r.img.Rect.Min
}

// GrayAt returns the intensity at local coordinates.
func (r Raster) GrayAt(x, y int) uint8 {
	p := r.img.Rect.Min
	return r.img.GrayAt(p.X+x, p.Y+y).Y
}

// Image exposes the underlying image for encoders and OCR engines. The
// returned value must be treated as read-only.
func (r Raster) Image() image.Image {
	return r.img
}

// Region returns a view of the local rectangle rect. The rectangle must be
// non-empty and lie fully inside the raster.
func (r Raster) Region(rect image.Rectangle) (Raster, error) {
	local := r.Bounds()
	if rect.Empty() {
		return Raster{}, &RegionError{Operation: "region", Parent: local, Requested: rect, Err: ErrEmptyRegion}
	}
	if !rect.In(local) {
		return Raster{}, &RegionError{Operation: "region", Parent: local, Requested: rect, Err: errors.New("out of bounds")}
	}
	abs := rect.Add(r.Origin())
	sub, ok := r.img.SubImage(abs).(*image.Gray)
	if !ok {
		return Raster{}, &RegionError{Operation: "region", Parent: local, Requested: rect, Err: errors.New("unexpected image type")}
	}
	return Raster{img: sub}, nil
}

// ClampedRegion clips rect to the raster before taking the view. It still
// fails when nothing remains after clipping.
func (r Raster) ClampedRegion(rect image.Rectangle) (Raster, error) {
	return r.Region(rect.Intersect(r.Bounds()))
}

// Rows returns the horizontal band [y0, y1) spanning the full width.
func (r Raster) Rows(y0, y1 int) (Raster, error) {
	return r.ClampedRegion(image.Rect(0, y0, r.Width(), y1))
}

// Cols returns the vertical band [x0, x1) spanning the full height.
func (r Raster) Cols(x0, x1 int) (Raster, error) {
	return r.ClampedRegion(image.Rect(x0, 0, x1, r.Height()))
}

// Clone copies the pixels into a fresh raster with origin 0,0.
func (r Raster) Clone() Raster {
	out := image.NewGray(r.Bounds())
	if r.img != nil {
		draw.Draw(out, out.Bounds(), r.img, r.Origin(), draw.Src)
	}
	return Raster{img: out}
}

// Upscale enlarges the raster by factor using Lanczos resampling.
func (r Raster) Upscale(factor float64) Raster {
	if factor <= 1 || r.Empty() {
		return r
	}
	w := int(float64(r.Width()) * factor)
	h := int(float64(r.Height()) * factor)
	resized := imaging.Resize(r.img, w, h, imaging.Lanczos)
	out, err := FromImage(resized)
	if err != nil {
		return r
	}
	return out
}

// Contrast returns a copy with contrast adjusted by percentage (-100..100).
func (r Raster) Contrast(percentage float64) Raster {
	if r.Empty() {
		return r
	}
	out, err := FromImage(imaging.AdjustContrast(r.img, percentage))
	if err != nil {
		return r
	}
	return out
}
