//go:build !tesseract

package ocr

import (
	"context"
	"errors"
	"image"
)

// ErrNoEngine is returned when no OCR engine was linked into the binary.
var ErrNoEngine = errors.New("ocr: no engine linked; build with -tags=tesseract")

type noEngine struct{}

func newDefaultEngine(EngineOptions) (Engine, error) { return noEngine{}, nil }

func (noEngine) Recognize(context.Context, image.Image, FieldSpec) ([]Token, error) {
	return nil, ErrNoEngine
}

func (noEngine) Close() error { return nil }
