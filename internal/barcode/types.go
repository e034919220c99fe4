package barcode

import (
	"context"
	"errors"
	"image"
)

// ErrNoCode is returned when an image contains no decodable QR code.
var ErrNoCode = errors.New("barcode: no QR code found")

// Options controls backend decoding behavior.
type Options struct {
	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool

	// ROI optionally restricts decoding to a sub-rectangle of the image.
	// If zero-sized or out of bounds, backends should ignore it.
	ROI image.Rectangle
}

// Point is an integer point in image coordinates.
type Point struct {
	X int
	Y int
}

// Result represents a decoded QR code.
type Result struct {
	Value  string
	Points []Point         // finder pattern centers if available
	BBox   image.Rectangle // bounding box if derivable from points
}

// Backend is a pluggable QR decoder implementation.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// NewBackend returns the default gozxing backend.
func NewBackend() Backend { return &gozxingBackend{} }
