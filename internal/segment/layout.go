package segment

import (
	"fmt"

	"github.com/MeKo-Tech/receiptminer/internal/raster"
)

// Config holds the splitting rules and pixel margins of the receipt
// template. It is read-only once a Segmenter is built.
type Config struct {
	Receipt        SplittingRule
	PaymentBlocks  SplittingRule
	PaymentAmount  SplittingRule
	PaymentType    SplittingRule
	ProductColumns SplittingRule

	GeneralBottomMargin int
	PaymentBottomMargin int
	PaymentBlockMargin  int
	// PaymentTypeOffset is subtracted from the detected payment-type column
	// boundaries; the gap search lags the true boundary by this amount on
	// the current template.
	PaymentTypeOffset int
	CashierTopMargin  int

	// CleanEdges enables edge cleaning for the intra-zone splits. The
	// whole-receipt split always works on the raw raster.
	CleanEdges bool

	Headers         [4]string
	HeaderThreshold float64
}

// DefaultConfig returns the rules calibrated for the e-kassa template.
func DefaultConfig() Config {
	return Config{
		Receipt:             SplittingRule{ThresholdScale: 0.3, MinDifference: 30},
		PaymentBlocks:       SplittingRule{ThresholdScale: 0.5, MinDifference: 30},
		PaymentAmount:       SplittingRule{ThresholdScale: 0.03, MinDifference: 30},
		PaymentType:         SplittingRule{ThresholdScale: 0.03, MinDifference: 30},
		ProductColumns:      SplittingRule{ThresholdScale: 0.015, MinDifference: 30},
		GeneralBottomMargin: 50,
		PaymentBottomMargin: 160,
		PaymentBlockMargin:  5,
		PaymentTypeOffset:   50,
		CashierTopMargin:    2,
		CleanEdges:          true,
		Headers:             [4]string{"Product", "Quantity", "Price", "Total"},
		HeaderThreshold:     80,
	}
}

// Validate checks the rules and margins.
func (c Config) Validate() error {
	rules := map[string]SplittingRule{
		"receipt":         c.Receipt,
		"payment_blocks":  c.PaymentBlocks,
		"payment_amount":  c.PaymentAmount,
		"payment_type":    c.PaymentType,
		"product_columns": c.ProductColumns,
	}
	for name, r := range rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("splitting rule %s: %w", name, err)
		}
	}
	for name, m := range map[string]int{
		"general_part_bottom":     c.GeneralBottomMargin,
		"payment_part_bottom":     c.PaymentBottomMargin,
		"payment_amount_part":     c.PaymentBlockMargin,
		"payment_type_name_value": c.PaymentTypeOffset,
		"cashier_date_time_top":   c.CashierTopMargin,
	} {
		if m < 0 {
			return fmt.Errorf("margin %s must not be negative: %d", name, m)
		}
	}
	for i, h := range c.Headers {
		if h == "" {
			return fmt.Errorf("column header %d is empty", i)
		}
	}
	return nil
}

// Layout holds the three top-level zones, top to bottom.
type Layout struct {
	General  Zone
	Products Zone
	Payment  Zone
	// Separators are the boundary spans the products and payment zones
	// were cut from.
	Separators [2]Span
}

// Zones returns the zones in reading order.
func (l Layout) Zones() []Zone { return []Zone{l.General, l.Products, l.Payment} }

// Segmenter performs layout segmentation. It holds no per-receipt state and
// may be shared between goroutines.
type Segmenter struct {
	cfg Config
}

// New creates a Segmenter.
func New(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg}
}

// Config returns the segmenter configuration.
func (s *Segmenter) Config() Config { return s.cfg }

// Split divides a full receipt into general, products and payment zones.
// The last two boundary pairs found with the receipt rule frame the
// products and payment blocks; earlier pairs are ignored.
func (s *Segmenter) Split(r raster.Raster) (Layout, error) {
	const stage = "receipt"
	hist, err := Project(r, false)
	if err != nil {
		return Layout{}, segErr(stage, err, "raster %dx%d", r.Width(), r.Height())
	}

	pairs := Boundaries(hist.Rows, hist.Width, s.cfg.Receipt, Ink)
	if len(pairs) < 2 {
		return Layout{}, segErr(stage, ErrTooFewBoundaries, "found %d, need 2", len(pairs))
	}
	prod, tot := pairs[len(pairs)-2], pairs[len(pairs)-1]

	root := Zone{Raster: r}
	generalEnd := prod.Start - s.cfg.GeneralBottomMargin
	paymentEnd := tot.End - s.cfg.PaymentBottomMargin
	if generalEnd <= 0 {
		return Layout{}, segErr(stage, ErrDegenerateZone, "general zone ends at %d", generalEnd)
	}
	if paymentEnd <= tot.Start {
		return Layout{}, segErr(stage, ErrDegenerateZone, "payment zone [%d, %d)", tot.Start, paymentEnd)
	}

	general, err := root.Rows(RoleGeneral, 0, generalEnd)
	if err != nil {
		return Layout{}, segErr(stage, err, "general zone")
	}
	products, err := root.Rows(RoleProducts, prod.Start, prod.End)
	if err != nil {
		return Layout{}, segErr(stage, err, "products zone")
	}
	payment, err := root.Rows(RolePayment, tot.Start, paymentEnd)
	if err != nil {
		return Layout{}, segErr(stage, err, "payment zone")
	}

	return Layout{
		General:    general,
		Products:   products,
		Payment:    payment,
		Separators: [2]Span{prod, tot},
	}, nil
}

// SplitGeneral cuts the general zone at the cashier line: everything from
// cashierTop minus the configured margin down is split into a left
// (cashier) and right (date and time) half.
func (s *Segmenter) SplitGeneral(general Zone, cashierTop int) (cashier, dateTime Zone, err error) {
	const stage = "general"
	y := cashierTop - s.cfg.CashierTopMargin
	if y < 0 {
		y = 0
	}
	h, w := general.Raster.Height(), general.Raster.Width()
	if y >= h || w < 2 {
		return Zone{}, Zone{}, segErr(stage, ErrDegenerateZone, "cashier line at %d of %d", y, h)
	}
	lower, err := general.Rows(RoleGeneral, y, h)
	if err != nil {
		return Zone{}, Zone{}, segErr(stage, err, "lower general part")
	}
	if cashier, err = lower.Cols(RoleCashier, 0, w/2); err != nil {
		return Zone{}, Zone{}, segErr(stage, err, "cashier part")
	}
	if dateTime, err = lower.Cols(RoleDateTime, w/2, w); err != nil {
		return Zone{}, Zone{}, segErr(stage, err, "date-time part")
	}
	return cashier, dateTime, nil
}

// SplitPayment separates the payment zone into the amount block (totals and
// tax) and the payment-type block using the first strong rule inside it.
func (s *Segmenter) SplitPayment(payment Zone) (amount, paymentType Zone, err error) {
	const stage = "payment"
	hist, err := Project(payment.Raster, s.cfg.CleanEdges)
	if err != nil {
		return Zone{}, Zone{}, segErr(stage, err, "payment zone")
	}
	m := s.cfg.PaymentBlockMargin
	// The zone starts on the rule that closed the products block; markers
	// inside the top margin belong to it.
	markers := Markers(hist.Rows, hist.Width, s.cfg.PaymentBlocks.ThresholdScale, Ink)
	for len(markers) > 0 && markers[0] <= m {
		markers = markers[1:]
	}
	pairs := Pairs(markers, s.cfg.PaymentBlocks.MinDifference)
	if len(pairs) == 0 {
		return Zone{}, Zone{}, segErr(stage, ErrTooFewBoundaries, "no payment block boundary")
	}
	first := pairs[0]

	if amount, err = payment.Rows(RolePaymentAmount, 0, first.Start-m); err != nil {
		return Zone{}, Zone{}, segErr(stage, err, "amount block")
	}
	if paymentType, err = payment.Rows(RolePaymentType, first.Start+m, first.End); err != nil {
		return Zone{}, Zone{}, segErr(stage, err, "payment-type block")
	}
	return amount, paymentType, nil
}

// NameValueColumns splits a payment block into its label column and its
// value column. offset shifts both cut points left.
func (s *Segmenter) NameValueColumns(block Zone, rule SplittingRule, offset int) (names, values Zone, err error) {
	stage := string(block.Role)
	hist, err := Project(block.Raster, s.cfg.CleanEdges)
	if err != nil {
		return Zone{}, Zone{}, segErr(stage, err, "column histogram")
	}
	pairs := Boundaries(hist.Cols, hist.Height, rule, Blank)
	if len(pairs) == 0 {
		return Zone{}, Zone{}, segErr(stage, ErrTooFewBoundaries, "no column boundary")
	}
	namesEnd := pairs[0].End - offset
	valuesStart := pairs[len(pairs)-1].Start - offset

	if names, err = block.Cols(RolePaymentNames, 0, namesEnd); err != nil {
		return Zone{}, Zone{}, segErr(stage, err, "names column")
	}
	if values, err = block.Cols(RolePaymentValues, valuesStart, block.Raster.Width()); err != nil {
		return Zone{}, Zone{}, segErr(stage, err, "values column")
	}
	return names, values, nil
}

// PaymentAmountColumns applies NameValueColumns with the amount rule.
func (s *Segmenter) PaymentAmountColumns(block Zone) (names, values Zone, err error) {
	return s.NameValueColumns(block, s.cfg.PaymentAmount, 0)
}

// PaymentTypeColumns applies NameValueColumns with the payment-type rule and
// offset.
func (s *Segmenter) PaymentTypeColumns(block Zone) (names, values Zone, err error) {
	return s.NameValueColumns(block, s.cfg.PaymentType, s.cfg.PaymentTypeOffset)
}
