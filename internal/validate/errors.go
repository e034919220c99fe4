package validate

import "fmt"

// Category names the consistency rule that failed.
type Category string

const (
	CategoryLineItem     Category = "line_item"
	CategoryTax          Category = "tax"
	CategoryCashChange   Category = "cash_change"
	CategoryPaymentParts Category = "payment_parts"
	CategoryTotal        Category = "total"
)

// ValidationError reports one inconsistency. CorrectionApplied is true when
// the record was changed so the rule holds.
type ValidationError struct {
	Category          Category `json:"category" yaml:"category"`
	Message           string   `json:"message" yaml:"message"`
	CorrectionApplied bool     `json:"correction_applied" yaml:"correction_applied"`

	// repaired marks a line item a heuristic made coherent.
	repaired bool
}

func (e ValidationError) Error() string {
	if e.CorrectionApplied {
		return fmt.Sprintf("%s (corrected)", e.Message)
	}
	return e.Message
}

// Errors is the ordered result of a validation run.
type Errors []ValidationError

// Categories returns the category of each error, in order.
func (es Errors) Categories() []Category {
	out := make([]Category, len(es))
	for i, e := range es {
		out[i] = e.Category
	}
	return out
}

// Only returns the errors of category c.
func (es Errors) Only(c Category) Errors {
	var out Errors
	for _, e := range es {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}
