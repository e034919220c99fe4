// Package ocr is the gateway between the receipt pipeline and an external
// optical character recognition engine.
package ocr

import (
	"context"
	"image"
	"strings"
)

// Token is one recognized unit (usually a word) with its bounding box in the
// coordinates of the region that was recognized.
type Token struct {
	Text       string  `json:"text"`
	Top        int     `json:"top"`
	Left       int     `json:"left"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Bottom returns the first row below the token.
func (t Token) Bottom() int { return t.Top + t.Height }

// Right returns the first column right of the token.
func (t Token) Right() int { return t.Left + t.Width }

// CenterY returns the vertical center of the token box.
func (t Token) CenterY() float64 { return float64(t.Top) + float64(t.Height)/2 }

// Rect returns the token box as a rectangle.
func (t Token) Rect() image.Rectangle {
	return image.Rect(t.Left, t.Top, t.Right(), t.Bottom())
}

// Texts returns the token texts in order.
func Texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

// Join space-joins the token texts.
func Join(tokens []Token) string {
	return strings.Join(Texts(tokens), " ")
}

// Engine recognizes text in an image region according to a FieldSpec.
// Implementations must return tokens in reading order and honor ctx where
// the underlying engine allows it.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, spec FieldSpec) ([]Token, error)
	Close() error
}
