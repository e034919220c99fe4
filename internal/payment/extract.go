package payment

import (
	"context"
	"log/slog"

	"github.com/MeKo-Tech/receiptminer/internal/fuzzy"
	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/receipt"
	"github.com/MeKo-Tech/receiptminer/internal/segment"
)

// Splitter cuts the payment zone. *segment.Segmenter implements it.
type Splitter interface {
	SplitPayment(payment segment.Zone) (amount, paymentType segment.Zone, err error)
	PaymentAmountColumns(block segment.Zone) (names, values segment.Zone, err error)
	PaymentTypeColumns(block segment.Zone) (names, values segment.Zone, err error)
}

// Config holds the similarity thresholds.
type Config struct {
	// CashThreshold applies to the two cash-transaction labels.
	CashThreshold float64
	// LabelThreshold applies when classifying a name row by its label.
	LabelThreshold float64
}

// DefaultConfig returns 70/70.
func DefaultConfig() Config {
	return Config{CashThreshold: 70, LabelThreshold: 70}
}

// Extractor reads the payment zone.
type Extractor struct {
	rec    ocr.Recognizer
	split  Splitter
	specs  ocr.Specs
	cfg    Config
	logger *slog.Logger
}

// New creates an Extractor.
func New(rec ocr.Recognizer, split Splitter, specs ocr.Specs, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{rec: rec, split: split, specs: specs, cfg: cfg, logger: logger}
}

// Extract reads totals and the payment-method breakdown. Segmentation and
// recognition errors are returned; a value count that can be assigned
// neither by geometry nor by position yields a *CountError alongside the
// totals that were read.
func (e *Extractor) Extract(ctx context.Context, zone segment.Zone) (receipt.PaymentInfo, receipt.Warnings, error) {
	var warnings receipt.Warnings

	amountBlock, typeBlock, err := e.split.SplitPayment(zone)
	if err != nil {
		return receipt.PaymentInfo{}, nil, err
	}

	amounts, err := e.amounts(ctx, amountBlock, &warnings)
	if err != nil {
		return receipt.PaymentInfo{}, nil, err
	}
	info := receipt.PaymentInfo{Total: amounts.Total, NonTax: amounts.NonTax, Tax: amounts.Tax}

	if err := ctx.Err(); err != nil {
		return receipt.PaymentInfo{}, nil, err
	}
	dist, err := e.distribution(ctx, typeBlock, &warnings)
	if err != nil {
		return info, warnings, err
	}
	info.Cashless, info.Cash = dist.Cashless, dist.Cash
	info.PaidCash, info.Change = dist.PaidCash, dist.Change
	info.Bonus, info.Prepayment, info.Credit = dist.Bonus, dist.Prepayment, dist.Credit
	return info, warnings, nil
}

func (e *Extractor) amounts(ctx context.Context, block segment.Zone, warnings *receipt.Warnings) (Amounts, error) {
	_, valuesZone, err := e.split.PaymentAmountColumns(block)
	if err != nil {
		return Amounts{}, err
	}
	tokens, err := e.rec.Recognize(ctx, valuesZone.Raster, e.specs.PaymentAmounts)
	if err != nil {
		return Amounts{}, err
	}
	values := rowValues(ocr.GroupRows(tokens), "payment.amounts", warnings)
	a, ok := TotalsFrom(values)
	if !ok {
		warnings.Add(receipt.NumericParse, "payment.total", "amount block has %d values, need 2", len(values))
		e.logger.Warn("payment totals incomplete", "values", len(values))
		a = Amounts{Total: receipt.Unparsed, NonTax: receipt.Unparsed, Tax: receipt.Unparsed}
		if len(values) == 1 {
			a.Total = values[0]
		}
	}
	return a, nil
}

func (e *Extractor) distribution(ctx context.Context, block segment.Zone, warnings *receipt.Warnings) (Distribution, error) {
	namesZone, valuesZone, err := e.split.PaymentTypeColumns(block)
	if err != nil {
		return Distribution{}, err
	}
	nameTokens, err := e.rec.Recognize(ctx, namesZone.Raster, e.specs.PaymentTypeNames)
	if err != nil {
		return Distribution{}, err
	}
	valueTokens, err := e.rec.Recognize(ctx, valuesZone.Raster, e.specs.PaymentTypeValues)
	if err != nil {
		return Distribution{}, err
	}

	nameRows := ocr.GroupRows(nameTokens)
	valueRows := ocr.GroupRows(valueTokens)

	texts := ocr.Texts(nameTokens)
	for _, r := range nameRows {
		texts = append(texts, r.Text())
	}
	paidCash := IsPaidCash(texts, e.cfg.CashThreshold)

	if d, ok := e.byGeometry(nameRows, valueRows); ok {
		if !paidCash {
			d.PaidCash, d.Change = 0, 0
		}
		return d, nil
	}

	warnings.Add(receipt.PaymentCount, "payment.type", "labels not aligned with values, assigning %d values by position", len(valueRows))
	e.logger.Warn("payment values assigned by position", "values", len(valueRows), "paid_cash", paidCash)
	return Distribute(rowValues(valueRows, "payment.type", warnings), paidCash)
}

// byGeometry pairs each value row with the name row it overlaps most and
// classifies that name against Labels. It fails when any value row cannot
// be paired, parsed or classified, or two values claim the same label.
func (e *Extractor) byGeometry(names, values []ocr.Row) (Distribution, bool) {
	if len(names) == 0 || len(values) == 0 {
		return Distribution{}, false
	}
	var d Distribution
	used := make(map[string]bool)
	for _, v := range values {
		best, overlap := -1, 0
		for i, n := range names {
			if o := n.Overlap(v.Top, v.Bottom); o > overlap {
				best, overlap = i, o
			}
		}
		if best < 0 {
			return Distribution{}, false
		}
		m, ok := fuzzy.Best(names[best].Text(), Labels, e.cfg.LabelThreshold)
		if !ok || used[m.Text] {
			return Distribution{}, false
		}
		num, ok := ocr.ParseNumber(ocr.Texts(v.Tokens))
		if !ok {
			return Distribution{}, false
		}
		used[m.Text] = true
		d.set(m.Text, num)
	}
	return d, true
}

// rowValues parses one number per row. Unparsable rows are skipped with a
// warning, since every later value moves up one position.
func rowValues(rows []ocr.Row, field string, warnings *receipt.Warnings) []float64 {
	out := make([]float64, 0, len(rows))
	for i, r := range rows {
		v, ok := ocr.ParseNumber(ocr.Texts(r.Tokens))
		if !ok {
			warnings.Add(receipt.NumericParse, field, "row %d %q skipped, later values shift up", i, r.Text())
			continue
		}
		out = append(out, v)
	}
	return out
}
