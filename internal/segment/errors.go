package segment

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyHistogram is returned for a raster without any measurable intensity.
	ErrEmptyHistogram = errors.New("empty projection histogram")
	// ErrTooFewBoundaries is returned when gap detection yields fewer pairs than needed.
	ErrTooFewBoundaries = errors.New("too few boundary pairs")
	// ErrDegenerateZone is returned when margins collapse a zone to nothing.
	ErrDegenerateZone = errors.New("degenerate zone")
	// ErrHeaderNotFound is returned when the product column headers are not all recognized.
	ErrHeaderNotFound = errors.New("column header not found")
)

// SegmentationError reports that the layout of a receipt could not be
// determined. It is fatal for the receipt.
type SegmentationError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *SegmentationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("segmentation failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("segmentation failed at %s: %s: %v", e.Stage, e.Reason, e.Err)
}

func (e *SegmentationError) Unwrap() error { return e.Err }

func segErr(stage string, err error, format string, args ...any) *SegmentationError {
	return &SegmentationError{Stage: stage, Reason: fmt.Sprintf(format, args...), Err: err}
}
