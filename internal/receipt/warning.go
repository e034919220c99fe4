package receipt

import "fmt"

// WarningKind classifies a recovered field-level failure.
type WarningKind string

const (
	FieldNotFound WarningKind = "field_not_found"
	NumericParse  WarningKind = "numeric_parse"
	KeywordTie    WarningKind = "keyword_tie"
	PaymentCount  WarningKind = "payment_count"
)

// Warning records a field that was filled with a fallback value. Warnings
// never abort a receipt.
type Warning struct {
	Kind    WarningKind `json:"kind" yaml:"kind"`
	Field   string      `json:"field" yaml:"field"`
	Message string      `json:"message" yaml:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s [%s]: %s", w.Kind, w.Field, w.Message)
}

// Warnings is an ordered warning list.
type Warnings []Warning

// Add appends a formatted warning.
func (ws *Warnings) Add(kind WarningKind, field, format string, args ...any) {
	*ws = append(*ws, Warning{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Count returns the number of warnings of kind.
func (ws Warnings) Count(kind WarningKind) int {
	n := 0
	for _, w := range ws {
		if w.Kind == kind {
			n++
		}
	}
	return n
}
