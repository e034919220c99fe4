// Package receipt holds the extracted receipt record shared by the
// extractors, the validator and the export layer.
package receipt

// Missing is the value of a general-info field whose keyword was not found.
const Missing = "-"

// Unparsed is the value of a numeric field that could not be recognized.
const Unparsed = -1.0

// GeneralInfo is the merchant and transaction header of a receipt.
type GeneralInfo struct {
	Name          string `json:"name" yaml:"name"`
	Address       string `json:"address" yaml:"address"`
	Code          string `json:"code" yaml:"code"`
	TaxPayerName  string `json:"tax_payer_name" yaml:"tax_payer_name"`
	TIN           string `json:"tin" yaml:"tin"`
	ReceiptNumber string `json:"sale_receipt_number" yaml:"sale_receipt_number"`
	Cashier       string `json:"cashier" yaml:"cashier"`
	Date          string `json:"date" yaml:"date"`
	Time          string `json:"time" yaml:"time"`
}

// LineItem is one product row.
type LineItem struct {
	Name     string  `json:"name" yaml:"name"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Price    float64 `json:"price" yaml:"price"`
	Amount   float64 `json:"amount" yaml:"amount"`
}

// Coherent reports whether Quantity*Price equals Amount within tolerance.
func (li LineItem) Coherent(tolerance float64) bool {
	return Close(li.Quantity*li.Price, li.Amount, tolerance)
}

// PaymentInfo is the totals and payment-method breakdown.
type PaymentInfo struct {
	Total      float64 `json:"total_amount" yaml:"total_amount"`
	Tax        float64 `json:"tax_amount" yaml:"tax_amount"`
	NonTax     float64 `json:"non_tax_amount" yaml:"non_tax_amount"`
	Cashless   float64 `json:"cashless" yaml:"cashless"`
	Cash       float64 `json:"cash" yaml:"cash"`
	PaidCash   float64 `json:"paid_cash" yaml:"paid_cash"`
	Change     float64 `json:"change" yaml:"change"`
	Bonus      float64 `json:"bonus" yaml:"bonus"`
	Prepayment float64 `json:"prepayment" yaml:"prepayment"`
	Credit     float64 `json:"credit" yaml:"credit"`
}

// Record is a fully extracted receipt.
type Record struct {
	ID      string      `json:"id,omitempty" yaml:"id,omitempty"`
	General GeneralInfo `json:"general" yaml:"general"`
	Items   []LineItem  `json:"items" yaml:"items"`
	Payment PaymentInfo `json:"payment" yaml:"payment"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.Items = append([]LineItem(nil), r.Items...)
	return &c
}

// ItemsTotal sums the line amounts.
func (r *Record) ItemsTotal() float64 {
	var sum float64
	for _, it := range r.Items {
		sum += it.Amount
	}
	return sum
}

// Close reports whether |a-b| < tolerance.
func Close(a, b, tolerance float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < tolerance
}
