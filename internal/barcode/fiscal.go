package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/receiptminer/internal/raster"
)

// QRContrast is the contrast boost applied to photos before decoding. An
// imaging percentage of 100 doubles the distance from mid-gray.
const QRContrast = 100

// FiscalCode returns the fiscal code carried by a receipt QR payload: the
// text after the last '='. Payloads without '=' are returned trimmed.
func FiscalCode(payload string) string {
	payload = strings.TrimSpace(payload)
	if i := strings.LastIndexByte(payload, '='); i >= 0 {
		return strings.TrimSpace(payload[i+1:])
	}
	return payload
}

// Scanner finds the fiscal code in receipt photos.
type Scanner struct {
	backend Backend
}

// NewScanner creates a Scanner. A nil backend selects NewBackend.
func NewScanner(b Backend) *Scanner {
	if b == nil {
		b = NewBackend()
	}
	return &Scanner{backend: b}
}

// Scan decodes the first QR code in img and returns its fiscal code.
func (s *Scanner) Scan(ctx context.Context, img image.Image) (string, error) {
	r, err := raster.FromImage(img)
	if err != nil {
		return "", fmt.Errorf("barcode: %w", err)
	}
	return s.ScanRaster(ctx, r)
}

// ScanRaster is Scan for an already-grayscale raster. It tries the
// contrast-boosted image first and the raw one second.
func (s *Scanner) ScanRaster(ctx context.Context, r raster.Raster) (string, error) {
	if r.Empty() {
		return "", ErrNoCode
	}
	var firstErr error
	for _, candidate := range []raster.Raster{r.Contrast(QRContrast), r} {
		results, err := s.backend.Decode(ctx, candidate.Image(), Options{TryHarder: true})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, res := range results {
			if code := FiscalCode(res.Value); code != "" {
				return code, nil
			}
		}
	}
	switch {
	case firstErr == nil:
		return "", ErrNoCode
	case errors.Is(firstErr, ErrNoCode):
		return "", firstErr
	default:
		return "", fmt.Errorf("%w: %v", ErrNoCode, firstErr)
	}
}
