// Package payment reads the totals block and the payment-method breakdown
// from the payment zone.
package payment

import (
	"fmt"

	"github.com/MeKo-Tech/receiptminer/internal/fuzzy"
)

// Cash-transaction labels. Both must be present for a cash-paying receipt.
const (
	PaidCashLabel = "Paid cash:"
	ChangeLabel   = "Change:"
)

// Method labels printed in the payment-type block.
const (
	CashlessLabel   = "Cashless:"
	CashLabel       = "Cash:"
	BonusLabel      = "Bonus:"
	PrepaymentLabel = "Prepayment:"
	CreditLabel     = "Credit:"
)

// Labels lists the method labels in print order.
var Labels = []string{CashlessLabel, CashLabel, PaidCashLabel, ChangeLabel, BonusLabel, PrepaymentLabel, CreditLabel}

// Value counts of the payment-type block.
const (
	CashlessCount = 5
	CashCount     = 7
)

// CountError reports a payment-type value count that positional
// assignment cannot handle.
type CountError struct {
	Got      int
	Expected int
	PaidCash bool
}

func (e *CountError) Error() string {
	return fmt.Sprintf("payment type block: got %d values, expected %d (paid cash: %t)", e.Got, e.Expected, e.PaidCash)
}

// Amounts are the totals of the amount block.
type Amounts struct {
	Total  float64
	NonTax float64
	Tax    float64
}

// Distribution is the payment-method breakdown.
type Distribution struct {
	Cashless   float64
	Cash       float64
	PaidCash   float64
	Change     float64
	Bonus      float64
	Prepayment float64
	Credit     float64
}

// set assigns v to the field of label.
func (d *Distribution) set(label string, v float64) {
	switch label {
	case CashlessLabel:
		d.Cashless = v
	case CashLabel:
		d.Cash = v
	case PaidCashLabel:
		d.PaidCash = v
	case ChangeLabel:
		d.Change = v
	case BonusLabel:
		d.Bonus = v
	case PrepaymentLabel:
		d.Prepayment = v
	case CreditLabel:
		d.Credit = v
	}
}

// IsPaidCash reports whether both cash-transaction labels occur among texts
// with a similarity of at least threshold.
func IsPaidCash(texts []string, threshold float64) bool {
	paid, change := false, false
	for _, t := range texts {
		if fuzzy.Ratio(PaidCashLabel, t) >= threshold {
			paid = true
		}
		if fuzzy.Ratio(ChangeLabel, t) >= threshold {
			change = true
		}
	}
	return paid && change
}

// Distribute assigns values by position: cashless, cash, then paid cash and
// change for cash-paying receipts, then bonus, prepayment and credit. A
// cashless receipt has paid cash and change forced to zero.
func Distribute(values []float64, paidCash bool) (Distribution, error) {
	want := CashlessCount
	if paidCash {
		want = CashCount
	}
	if len(values) != want {
		return Distribution{}, &CountError{Got: len(values), Expected: want, PaidCash: paidCash}
	}
	d := Distribution{Cashless: values[0], Cash: values[1]}
	rest := values[2:]
	if paidCash {
		d.PaidCash, d.Change = values[2], values[3]
		rest = values[4:]
	}
	d.Bonus, d.Prepayment, d.Credit = rest[0], rest[1], rest[2]
	return d, nil
}

// TotalsFrom builds Amounts from the amount-block values: total first, then
// the non-taxable part; tax is the difference.
func TotalsFrom(values []float64) (Amounts, bool) {
	if len(values) < 2 {
		return Amounts{}, false
	}
	return Amounts{Total: values[0], NonTax: values[1], Tax: values[0] - values[1]}, true
}
