package receipt

import (
	"fmt"
	"strings"
)

const ruleWidth = 50

// Render formats the record as the fixed-width text slip used in reports.
func Render(r *Record) string {
	var b strings.Builder
	dash := strings.Repeat("-", ruleWidth) + "\n"
	under := strings.Repeat("_", ruleWidth) + "\n"
	line := func(label string, value any) {
		fmt.Fprintf(&b, "%-20s: %v\n", label, value)
	}

	b.WriteString(dash)
	b.WriteString(center("RECEIPT") + "\n")
	b.WriteString(dash)

	g := r.General
	line("Store Name", g.Name)
	line("Address", g.Address)
	line("Code", g.Code)
	line("Tax Payer", g.TaxPayerName)
	line("TIN", g.TIN)
	line("Receipt #", g.ReceiptNumber)
	line("Cashier", g.Cashier)
	line("Date", g.Date)
	line("Time", g.Time)
	b.WriteString(dash)

	fmt.Fprintf(&b, "%-20s %-8s %-10s %-10s\n", "Product", "Qty", "Price", "Amount")
	b.WriteString(under)
	for _, it := range r.Items {
		fmt.Fprintf(&b, "%-20s %-8s %-10.2f %-10.2f\n", it.Name, formatQuantity(it.Quantity), it.Price, it.Amount)
	}
	b.WriteString(under)

	p := r.Payment
	for _, kv := range []struct {
		label string
		v     float64
	}{
		{"Total Amount", p.Total},
		{"Tax Amount", p.Tax},
		{"Non-Tax Amount", p.NonTax},
		{"Cashless Payment", p.Cashless},
		{"Cash Payment", p.Cash},
		{"Paid Cash", p.PaidCash},
		{"Change", p.Change},
		{"Bonus", p.Bonus},
		{"Prepayment", p.Prepayment},
		{"Credit", p.Credit},
	} {
		line(kv.label, fmt.Sprintf("%.2f", kv.v))
	}
	b.WriteString(dash)
	b.WriteString(center("THANK YOU!") + "\n")
	b.WriteString(dash)
	return b.String()
}

// center pads s to ruleWidth, putting the odd space on the right.
func center(s string) string {
	pad := ruleWidth - len(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

func formatQuantity(q float64) string {
	if q == float64(int64(q)) {
		return fmt.Sprintf("%.1f", q)
	}
	return fmt.Sprintf("%g", q)
}
