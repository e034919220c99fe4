package validate

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/MeKo-Tech/receiptminer/internal/receipt"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(items ...receipt.LineItem) *receipt.Record {
	r := &receipt.Record{Items: items}
	total := r.ItemsTotal()
	r.Payment = receipt.PaymentInfo{Total: total, Tax: total, Cashless: total}
	return r
}

func correcting() *Validator { return New(DefaultConfig(), nil) }

func TestProposeCorrections(t *testing.T) {
	assert.Equal(t, []float64{1.5, 15}, ProposeCorrections(150))
	assert.Equal(t, []float64{1.234, 12.34, 123.4}, ProposeCorrections(1234))
	assert.Equal(t, []float64{1, 10}, ProposeCorrections(100))
	assert.Empty(t, ProposeCorrections(5))
}

func TestNum(t *testing.T) {
	assert.Equal(t, "2.0", num(2))
	assert.Equal(t, "12.5", num(12.5))
	assert.Equal(t, "-1.0", num(-1))
	assert.Equal(t, "0.1", num(0.1))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Reporting ")
	require.NoError(t, err)
	assert.Equal(t, Reporting, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Correcting, m)
	_, err = ParseMode("fixing")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Mode: Correcting, Tolerance: 0}.Validate())
	assert.Error(t, Config{Mode: "x", Tolerance: 1}.Validate())
}

func TestLineItem_DecimalCorrectionOnPrice(t *testing.T) {
	r := record(receipt.LineItem{Name: "Tea", Quantity: 2, Price: 150, Amount: 30})
	errs := correcting().Validate(r)

	assert.Empty(t, errs)
	assert.Equal(t, 15.0, r.Items[0].Price)
	assert.Equal(t, 30.0, r.Items[0].Amount)
}

func TestLineItem_DecimalCorrectionOnAmount(t *testing.T) {
	r := record(receipt.LineItem{Quantity: 2, Price: 1.5, Amount: 30})
	r.Payment = receipt.PaymentInfo{Total: 3, Tax: 3, Cashless: 3}
	errs := correcting().Validate(r)

	assert.Empty(t, errs)
	assert.Equal(t, 3.0, r.Items[0].Amount)
}

func TestLineItem_DigitConfusion(t *testing.T) {
	r := record(receipt.LineItem{Quantity: 7, Price: 12.5, Amount: 12.5})
	errs := correcting().Validate(r)

	assert.Empty(t, errs)
	assert.Equal(t, 1.0, r.Items[0].Quantity)
}

func TestLineItem_Unresolved(t *testing.T) {
	r := record(receipt.LineItem{Quantity: 3, Price: 2.5, Amount: 100})
	r.Payment = receipt.PaymentInfo{Total: 7.5, Tax: 7.5, Cashless: 7.5}
	errs := correcting().Validate(r)

	require.Len(t, errs, 1)
	assert.Equal(t, CategoryLineItem, errs[0].Category)
	assert.Equal(t, "Inconsistent Product 1: quantity=3.0, price=2.5, amount=100.0", errs[0].Message)
	assert.False(t, errs[0].CorrectionApplied)
	assert.Equal(t, 7.5, r.Items[0].Amount)
}

func TestLineItem_ReportingProposesRepairs(t *testing.T) {
	r := record(
		receipt.LineItem{Name: "Tea", Quantity: 2, Price: 150, Amount: 30},
		receipt.LineItem{Name: "Cake", Quantity: 7, Price: 12.5, Amount: 12.5},
	)
	r.Payment = receipt.PaymentInfo{Total: 42.5, Tax: 42.5, Cashless: 42.5}
	before := r.Clone()
	errs := New(Config{Mode: Reporting, Tolerance: 1}, nil).Validate(r)

	require.Len(t, errs, 2)
	assert.Equal(t, "Inconsistent Product 1: quantity=2.0, price=150.0, amount=30.0, proposed price 150.0 -> 15.0", errs[0].Message)
	assert.Equal(t, "Inconsistent Product 2: quantity=7.0, price=12.5, amount=12.5, proposed quantity 7.0 -> 1.0", errs[1].Message)
	for _, e := range errs {
		assert.Equal(t, CategoryLineItem, e.Category)
		assert.False(t, e.CorrectionApplied)
	}
	assert.Equal(t, before, r)
}

func TestCheckLineItems_RepairOnAmount(t *testing.T) {
	in := receipt.Record{Items: []receipt.LineItem{{Quantity: 2, Price: 1.5, Amount: 30}}}
	out, errs := CheckLineItems(in, 1)

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "proposed amount 30.0 -> 3.0")
	assert.True(t, errs[0].repaired)
	assert.Equal(t, 3.0, out.Items[0].Amount)
	assert.Equal(t, 30.0, in.Items[0].Amount)
}

func TestTaxCheck(t *testing.T) {
	r := record()
	r.Payment = receipt.PaymentInfo{Total: 10, Tax: 2, NonTax: 5, Cashless: 10}
	r.Items = []receipt.LineItem{{Quantity: 1, Price: 10, Amount: 10}}
	errs := correcting().Validate(r)

	require.Len(t, errs, 1)
	assert.Equal(t, "Inconsistent Tax Details: tax=2.0, non-tax=5.0, total=10.0", errs[0].Message)
	assert.True(t, errs[0].CorrectionApplied)
	assert.Equal(t, 8.0, r.Payment.NonTax)
}

func TestPaymentCheck_SkippedForCashless(t *testing.T) {
	_, errs := CheckPaymentTypes(receipt.Record{Payment: receipt.PaymentInfo{Total: 99, Cashless: 10}}, 1)
	assert.Empty(t, errs)
}

func TestPaymentCheck_CashChange(t *testing.T) {
	in := receipt.Record{Payment: receipt.PaymentInfo{Total: 10, Cash: 10, Change: 5, PaidCash: 20}}
	out, errs := CheckPaymentTypes(in, 1)

	require.Len(t, errs, 1)
	assert.Equal(t, CategoryCashChange, errs[0].Category)
	assert.Equal(t, "Inconsistent Cash Change: cash=10.0, change=5.0, paid=20.0", errs[0].Message)
	assert.Equal(t, 10.0, out.Payment.Change)
	assert.Equal(t, 5.0, in.Payment.Change, "input must not change")
}

func TestPaymentCheck_Parts(t *testing.T) {
	out, errs := CheckPaymentTypes(receipt.Record{Payment: receipt.PaymentInfo{Total: 10}}, 1)

	require.Len(t, errs, 1)
	assert.Equal(t, CategoryPaymentParts, errs[0].Category)
	assert.Equal(t, "Inconsistent payment parts: cashless=0.0, cash=0.0, bonus=0.0, prepayment=0.0, credit=0.0, total=10.0", errs[0].Message)
	assert.Equal(t, 0.0, out.Payment.Total)
}

func TestTotalCheck(t *testing.T) {
	in := receipt.Record{
		Items:   []receipt.LineItem{{Quantity: 1, Price: 4, Amount: 4}, {Quantity: 2, Price: 3, Amount: 6}},
		Payment: receipt.PaymentInfo{Total: 12},
	}
	out, errs := CheckTotal(in, 1)

	require.Len(t, errs, 1)
	assert.Equal(t, "Inconsistent Total Amount: calculated=10.0, real=12.0", errs[0].Message)
	assert.Equal(t, 10.0, out.Payment.Total)
}

func TestValidate_FixedOrder(t *testing.T) {
	r := &receipt.Record{
		Items:   []receipt.LineItem{{Quantity: 3, Price: 2.5, Amount: 100}},
		Payment: receipt.PaymentInfo{Total: 50, Tax: 1, NonTax: 1, Cash: 5, Change: 1, PaidCash: 20},
	}
	errs := correcting().Validate(r)

	assert.Equal(t, []Category{CategoryLineItem, CategoryTax, CategoryCashChange, CategoryPaymentParts, CategoryTotal}, errs.Categories())
	assert.Len(t, errs.Only(CategoryTax), 1)
}

func TestValidate_ReportingLeavesRecord(t *testing.T) {
	r := &receipt.Record{
		Items:   []receipt.LineItem{{Quantity: 3, Price: 2.5, Amount: 100}},
		Payment: receipt.PaymentInfo{Total: 50, Tax: 1, NonTax: 1, Cashless: 50},
	}
	before := r.Clone()
	errs := New(Config{Mode: Reporting, Tolerance: 1}, nil).Validate(r)

	assert.Equal(t, before, r)
	assert.Equal(t, []Category{CategoryLineItem, CategoryTax, CategoryTotal}, errs.Categories())
	for _, e := range errs {
		assert.False(t, e.CorrectionApplied)
	}
	assert.Contains(t, errs[2].Message, "calculated=100.0, real=50.0")
}

// The total check runs last and is not reconciled with the tax check: a
// corrected total leaves tax + non-tax off on the next pass.
func TestValidate_TotalCorrectionNotReconciledWithTax(t *testing.T) {
	r := &receipt.Record{
		Items:   []receipt.LineItem{{Quantity: 2, Price: 5, Amount: 10}},
		Payment: receipt.PaymentInfo{Total: 12, Tax: 2, NonTax: 10, Cashless: 12},
	}
	v := correcting()

	first := v.Validate(r)
	assert.Equal(t, []Category{CategoryTotal}, first.Categories())
	assert.Equal(t, 10.0, r.Payment.Total)

	second := v.Validate(r)
	assert.Equal(t, []Category{CategoryTax}, second.Categories())
	assert.Equal(t, 8.0, r.Payment.NonTax)

	assert.Empty(t, v.Validate(r))
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Category: CategoryTax, Message: "bad", CorrectionApplied: true}
	assert.Equal(t, "bad (corrected)", e.Error())
	var err error = e
	assert.EqualError(t, err, "bad (corrected)")
}

// randomRecord builds a noisy receipt: some items coherent, some with a
// lost decimal point, some plain wrong.
func randomRecord(seed int64) *receipt.Record {
	rng := rand.New(rand.NewSource(seed))
	r := &receipt.Record{}
	for i := 0; i < 1+rng.Intn(5); i++ {
		q := float64(1 + rng.Intn(9))
		p := float64(rng.Intn(10000)) / 100
		a := q * p
		switch rng.Intn(4) {
		case 0:
			p *= 100
		case 1:
			a = float64(rng.Intn(1000))
		}
		r.Items = append(r.Items, receipt.LineItem{Name: fmt.Sprint(i), Quantity: q, Price: p, Amount: a})
	}
	pick := func() float64 {
		if rng.Intn(2) == 0 {
			return 0
		}
		return float64(rng.Intn(10000)) / 100
	}
	r.Payment = receipt.PaymentInfo{
		Total: pick(), Tax: pick(), NonTax: pick(),
		Cashless: pick(), Cash: pick(), PaidCash: pick(), Change: pick(),
		Bonus: pick(), Prepayment: pick(), Credit: pick(),
	}
	return r
}

func TestValidate_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every item is coherent or reported uncorrected", prop.ForAll(
		func(seed int64) bool {
			r := randomRecord(seed)
			orig := r.Clone()
			errs := correcting().Validate(r)
			reported := make(map[string]bool)
			for _, e := range errs.Only(CategoryLineItem) {
				if e.CorrectionApplied {
					return false
				}
				reported[e.Message] = true
			}
			for i, it := range r.Items {
				if it.Coherent(DefaultTolerance) {
					continue
				}
				o := orig.Items[i]
				if !reported[fmt.Sprintf("Inconsistent Product %d: quantity=%s, price=%s, amount=%s", i+1, num(o.Quantity), num(o.Price), num(o.Amount))] {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.Property("second pass reports no line items", prop.ForAll(
		func(seed int64) bool {
			r := randomRecord(seed)
			v := correcting()
			v.Validate(r)
			return len(v.Validate(r).Only(CategoryLineItem)) == 0
		},
		gen.Int64(),
	))

	properties.Property("second pass is clean when the total was kept", prop.ForAll(
		func(seed int64) bool {
			r := randomRecord(seed)
			v := correcting()
			first := v.Validate(r)
			if len(first.Only(CategoryPaymentParts)) > 0 || len(first.Only(CategoryTotal)) > 0 {
				return true
			}
			return len(v.Validate(r)) == 0
		},
		gen.Int64(),
	))

	properties.Property("reporting mode reports every incoherent item", prop.ForAll(
		func(seed int64) bool {
			r := randomRecord(seed)
			errs := New(Config{Mode: Reporting, Tolerance: 1}, nil).Validate(r).Only(CategoryLineItem)
			want := 0
			for i, it := range r.Items {
				if it.Coherent(DefaultTolerance) {
					continue
				}
				if want >= len(errs) || !strings.HasPrefix(errs[want].Message, fmt.Sprintf("Inconsistent Product %d:", i+1)) {
					return false
				}
				want++
			}
			return want == len(errs)
		},
		gen.Int64(),
	))

	properties.Property("reporting mode never mutates", prop.ForAll(
		func(seed int64) bool {
			r := randomRecord(seed)
			before := r.Clone()
			New(Config{Mode: Reporting, Tolerance: 1}, nil).Validate(r)
			return assert.ObjectsAreEqual(before, r)
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
