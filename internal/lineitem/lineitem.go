// Package lineitem extracts product rows from the products zone using the
// quantity column as the row anchor.
package lineitem

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/MeKo-Tech/receiptminer/internal/receipt"
	"github.com/MeKo-Tech/receiptminer/internal/segment"
)

// Config holds the row-band margins and retry settings.
type Config struct {
	// ProductLineMargin, PriceLineMargin and AmountLineMargin extend each
	// band upward by that many pixels in the respective column.
	ProductLineMargin int
	PriceLineMargin   int
	AmountLineMargin  int
	// NameTrailingTokens is the number of tokens dropped from the end of a
	// name band; they belong to the following row.
	NameTrailingTokens int
	// SmallImageScale is the upscale factor for single-token retries.
	SmallImageScale float64
}

// DefaultConfig returns the margins of the e-kassa template.
func DefaultConfig() Config {
	return Config{
		ProductLineMargin:  3,
		PriceLineMargin:    5,
		AmountLineMargin:   5,
		NameTrailingTokens: 2,
		SmallImageScale:    3,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ProductLineMargin < 0 || c.PriceLineMargin < 0 || c.AmountLineMargin < 0 {
		return fmt.Errorf("line margins must not be negative")
	}
	if c.NameTrailingTokens < 0 {
		return fmt.Errorf("name trailing tokens must not be negative: %d", c.NameTrailingTokens)
	}
	if c.SmallImageScale < 1 {
		return fmt.Errorf("small image scale must be >= 1, got %.2f", c.SmallImageScale)
	}
	return nil
}

// Extractor turns product columns into line items.
type Extractor struct {
	rec    ocr.Recognizer
	specs  ocr.Specs
	cfg    Config
	logger *slog.Logger
}

// New creates an Extractor.
func New(rec ocr.Recognizer, specs ocr.Specs, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{rec: rec, specs: specs, cfg: cfg, logger: logger}
}

// Extract reads every product row. Recognition errors abort; unparsable
// numbers become receipt.Unparsed with a warning.
func (e *Extractor) Extract(ctx context.Context, cols segment.Columns) ([]receipt.LineItem, receipt.Warnings, error) {
	var warnings receipt.Warnings

	anchors, err := e.anchors(ctx, cols.Quantity)
	if err != nil {
		return nil, nil, err
	}
	if len(anchors) == 0 {
		warnings.Add(receipt.NumericParse, "quantity", "no quantity recognized in products zone")
		e.logger.Warn("no quantity anchors")
		return nil, warnings, nil
	}

	items := make([]receipt.LineItem, 0, len(anchors))
	for i, a := range anchors {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		next := -1
		if i+1 < len(anchors) {
			next = anchors[i+1].Top
		}

		name, err := e.name(ctx, cols.Name, a.Top, next, fmt.Sprintf("items[%d].name", i), &warnings)
		if err != nil {
			return nil, nil, err
		}
		item := receipt.LineItem{Name: name}

		q, ok := ocr.ParseNumber(ocr.Texts(a.Tokens))
		if !ok {
			q, err = e.number(ctx, cols.Quantity, a.Top, next, e.cfg.ProductLineMargin, e.specs.Quantities, fmt.Sprintf("items[%d].quantity", i), &warnings)
			if err != nil {
				return nil, nil, err
			}
		}
		item.Quantity = q

		if item.Price, err = e.number(ctx, cols.Price, a.Top, next, e.cfg.PriceLineMargin, e.specs.Prices, fmt.Sprintf("items[%d].price", i), &warnings); err != nil {
			return nil, nil, err
		}
		if item.Amount, err = e.number(ctx, cols.Amount, a.Top, next, e.cfg.AmountLineMargin, e.specs.Amounts, fmt.Sprintf("items[%d].amount", i), &warnings); err != nil {
			return nil, nil, err
		}
		items = append(items, item)
	}
	return items, warnings, nil
}

// anchors recognizes the quantity column and groups its tokens into rows.
// An empty result triggers one upscaled small-image pass.
func (e *Extractor) anchors(ctx context.Context, quantity segment.Zone) ([]ocr.Row, error) {
	tokens, err := e.rec.Recognize(ctx, quantity.Raster, e.specs.Quantities)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		e.logger.Debug("quantity column empty, retrying as small image")
		if tokens, err = e.small(ctx, quantity.Raster); err != nil {
			return nil, err
		}
	}
	return ocr.GroupRows(tokens), nil
}

// band returns rows [top-margin, next) of column, or down to its bottom
// when next is negative.
func band(column segment.Zone, top, next, margin int) (segment.Zone, error) {
	end := next
	if end < 0 {
		end = column.Raster.Height()
	}
	return column.Rows(column.Role, top-margin, end)
}

// name reads the product name band and drops the trailing quantity and
// price tokens the name column also picks up. An unreadable band or a
// band with nothing but those tokens gives receipt.Missing.
func (e *Extractor) name(ctx context.Context, column segment.Zone, top, next int, field string, warnings *receipt.Warnings) (string, error) {
	b, err := band(column, top, next, e.cfg.ProductLineMargin)
	if err != nil {
		warnings.Add(receipt.FieldNotFound, field, "empty band: %v", err)
		e.logger.Warn("empty product name band", "top", top, "error", err)
		return receipt.Missing, nil
	}
	tokens, err := e.rec.Recognize(ctx, b.Raster, e.specs.ProductNames)
	if err != nil {
		return "", err
	}
	keep := len(tokens) - e.cfg.NameTrailingTokens
	if keep <= 0 {
		warnings.Add(receipt.FieldNotFound, field, "%d tokens, %d trailing expected", len(tokens), e.cfg.NameTrailingTokens)
		return receipt.Missing, nil
	}
	return strings.Join(ocr.Texts(tokens[:keep]), " "), nil
}

// number reads one numeric cell. A failed parse is retried on the upscaled
// band with the small-image spec before falling back to receipt.Unparsed.
func (e *Extractor) number(ctx context.Context, column segment.Zone, top, next, margin int, spec ocr.FieldSpec, field string, warnings *receipt.Warnings) (float64, error) {
	b, err := band(column, top, next, margin)
	if err != nil {
		warnings.Add(receipt.NumericParse, field, "empty band: %v", err)
		return receipt.Unparsed, nil
	}
	tokens, err := e.rec.Recognize(ctx, b.Raster, spec)
	if err != nil {
		return 0, err
	}
	if v, ok := ocr.ParseNumber(ocr.Texts(tokens)); ok {
		return v, nil
	}

	retry, err := e.small(ctx, b.Raster)
	if err != nil {
		return 0, err
	}
	if v, ok := ocr.ParseNumber(ocr.Texts(retry)); ok {
		return v, nil
	}
	warnings.Add(receipt.NumericParse, field, "could not parse %q", ocr.Join(tokens))
	e.logger.Warn("numeric field unparsed", "field", field, "text", ocr.Join(tokens))
	return receipt.Unparsed, nil
}

// small runs the small-image spec over an upscaled copy of r and maps the
// token boxes back to r's coordinates.
func (e *Extractor) small(ctx context.Context, r raster.Raster) ([]ocr.Token, error) {
	scale := e.cfg.SmallImageScale
	tokens, err := e.rec.Recognize(ctx, r.Upscale(scale), e.specs.SmallImage)
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		tokens[i].Top = int(float64(tokens[i].Top) / scale)
		tokens[i].Left = int(float64(tokens[i].Left) / scale)
		tokens[i].Width = int(float64(tokens[i].Width) / scale)
		tokens[i].Height = int(float64(tokens[i].Height) / scale)
	}
	return tokens, nil
}
