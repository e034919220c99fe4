//go:build tesseract

package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// ErrNoEngine is kept for API parity with builds that lack an engine.
var ErrNoEngine = errors.New("ocr: no engine linked")

type tesseractEngine struct {
	tessdata string
}

func newDefaultEngine(opts EngineOptions) (Engine, error) {
	return &tesseractEngine{tessdata: opts.TessdataPrefix}, nil
}

// Recognize uses a fresh client per call. Tesseract clients are not safe for
// concurrent use and a timed-out call may still be running in the background.
func (e *tesseractEngine) Recognize(ctx context.Context, img image.Image, spec FieldSpec) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if e.tessdata != "" {
		if err := client.SetTessdataPrefix(e.tessdata); err != nil {
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if spec.Language != "" {
		if err := client.SetLanguage(strings.Split(spec.Language, "+")...); err != nil {
			return nil, fmt.Errorf("set language %q: %w", spec.Language, err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(spec.PageSegMode)); err != nil {
		return nil, fmt.Errorf("set page segmentation mode %d: %w", spec.PageSegMode, err)
	}
	if spec.Whitelist != "" {
		if err := client.SetWhitelist(spec.Whitelist); err != nil {
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("load region: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := make([]Token, 0, len(boxes))
	for _, b := range boxes {
		tokens = append(tokens, Token{
			Text:       b.Word,
			Top:        b.Box.Min.Y,
			Left:       b.Box.Min.X,
			Width:      b.Box.Dx(),
			Height:     b.Box.Dy(),
			Confidence: b.Confidence,
		})
	}
	return tokens, nil
}

func (e *tesseractEngine) Close() error { return nil }
