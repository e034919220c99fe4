package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/receiptminer/internal/receipt"
)

// Check is one consistency rule. It returns the record with its correction
// applied and the inconsistencies found in the input. The input is never
// modified.
type Check func(r receipt.Record, tolerance float64) (receipt.Record, Errors)

// maxCorrections bounds the decimal-point candidates tried per value.
const maxCorrections = 3

// confusedQuantity is the digit a printed 1 is most often read as.
const confusedQuantity = 7

// ProposeCorrections returns up to three values obtained by inserting a
// decimal point into the digits of v, skipping v itself.
func ProposeCorrections(v float64) []float64 {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	var out []float64
	for i := 1; i < len(s) && len(out) < maxCorrections; i++ {
		c, err := strconv.ParseFloat(s[:i]+"."+s[i:], 64)
		if err != nil || c == v {
			continue
		}
		out = append(out, c)
	}
	return out
}

func isWhole(v float64) bool { return v == math.Trunc(v) && !math.IsInf(v, 0) }

// correctDecimal tries the decimal-point candidates of the value at field
// until the item becomes coherent. It returns the accepted candidate.
func correctDecimal(item *receipt.LineItem, field *float64, tolerance float64) (float64, bool) {
	if !isWhole(*field) {
		return 0, false
	}
	orig := *field
	for _, c := range ProposeCorrections(orig) {
		*field = c
		if item.Coherent(tolerance) {
			return c, true
		}
	}
	*field = orig
	return 0, false
}

// repairItem applies the first heuristic that makes item coherent and
// describes it, e.g. "price 150.0 -> 15.0".
func repairItem(item *receipt.LineItem, tolerance float64) (string, bool) {
	if item.Quantity == confusedQuantity && item.Price == item.Amount {
		item.Quantity = 1
		return fmt.Sprintf("quantity %s -> 1.0", num(confusedQuantity)), true
	}
	price := item.Price
	if c, ok := correctDecimal(item, &item.Price, tolerance); ok {
		return fmt.Sprintf("price %s -> %s", num(price), num(c)), true
	}
	amount := item.Amount
	if c, ok := correctDecimal(item, &item.Amount, tolerance); ok {
		return fmt.Sprintf("amount %s -> %s", num(amount), num(c)), true
	}
	return "", false
}

// CheckLineItems verifies quantity*price == amount for every item. A
// quantity of 7 with price equal to amount is read as 1. Otherwise a
// decimal point is inserted into a whole price, then a whole amount. Items
// repaired this way are reported with the repair marked; the Validator
// drops those errors when it writes the repair back. Items that stay
// inconsistent are reported and get amount = quantity*price.
func CheckLineItems(r receipt.Record, tolerance float64) (receipt.Record, Errors) {
	out := *r.Clone()
	var errs Errors
	for i := range out.Items {
		item := &out.Items[i]
		if item.Coherent(tolerance) {
			continue
		}
		msg := fmt.Sprintf("Inconsistent Product %d: quantity=%s, price=%s, amount=%s",
			i+1, num(item.Quantity), num(item.Price), num(item.Amount))
		if repair, ok := repairItem(item, tolerance); ok {
			errs = append(errs, ValidationError{
				Category: CategoryLineItem,
				Message:  fmt.Sprintf("%s, proposed %s", msg, repair),
				repaired: true,
			})
			continue
		}
		errs = append(errs, ValidationError{Category: CategoryLineItem, Message: msg})
		item.Amount = item.Quantity * item.Price
	}
	return out, errs
}

// CheckTax verifies tax + nonTax == total; nonTax is recomputed on failure.
func CheckTax(r receipt.Record, tolerance float64) (receipt.Record, Errors) {
	p := r.Payment
	if receipt.Close(p.Tax+p.NonTax, p.Total, tolerance) {
		return r, nil
	}
	err := ValidationError{
		Category: CategoryTax,
		Message:  fmt.Sprintf("Inconsistent Tax Details: tax=%s, non-tax=%s, total=%s", num(p.Tax), num(p.NonTax), num(p.Total)),
	}
	r.Payment.NonTax = p.Total - p.Tax
	return r, Errors{err}
}

// CheckPaymentTypes verifies cash + change == paidCash and that the payment
// parts add up to the total. A receipt without paid cash or change and with
// some cash or cashless payment is skipped.
func CheckPaymentTypes(r receipt.Record, tolerance float64) (receipt.Record, Errors) {
	p := &r.Payment
	if p.PaidCash == 0 && p.Change == 0 && p.Cash+p.Cashless != 0 {
		return r, nil
	}
	var errs Errors
	if !receipt.Close(p.Cash+p.Change, p.PaidCash, tolerance) {
		errs = append(errs, ValidationError{
			Category: CategoryCashChange,
			Message:  fmt.Sprintf("Inconsistent Cash Change: cash=%s, change=%s, paid=%s", num(p.Cash), num(p.Change), num(p.PaidCash)),
		})
		p.Change = p.PaidCash - p.Cash
	}
	parts := p.Cashless + p.Cash + p.Bonus + p.Prepayment + p.Credit
	if !receipt.Close(parts, p.Total, tolerance) {
		errs = append(errs, ValidationError{
			Category: CategoryPaymentParts,
			Message: fmt.Sprintf("Inconsistent payment parts: cashless=%s, cash=%s, bonus=%s, prepayment=%s, credit=%s, total=%s",
				num(p.Cashless), num(p.Cash), num(p.Bonus), num(p.Prepayment), num(p.Credit), num(p.Total)),
		})
		p.Total = parts
	}
	return r, errs
}

// CheckTotal verifies the line amounts add up to the total; the total is
// replaced by the sum on failure.
func CheckTotal(r receipt.Record, tolerance float64) (receipt.Record, Errors) {
	sum := r.ItemsTotal()
	if receipt.Close(sum, r.Payment.Total, tolerance) {
		return r, nil
	}
	err := ValidationError{
		Category: CategoryTotal,
		Message:  fmt.Sprintf("Inconsistent Total Amount: calculated=%s, real=%s", num(sum), num(r.Payment.Total)),
	}
	r.Payment.Total = sum
	return r, Errors{err}
}

// num prints v the way the receipt logs always have: shortest form, with a
// trailing ".0" for whole numbers.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
