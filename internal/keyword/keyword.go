// Package keyword extracts labelled text fields by fuzzy-matching template
// keywords against OCR token streams.
package keyword

import (
	"fmt"
	"strings"
)

// Keyword is a literal label printed on the receipt template. TokenSpan is
// the number of words it occupies in the token stream.
type Keyword struct {
	Text      string
	TokenSpan int
}

// New returns a keyword whose span is its word count.
func New(text string) Keyword {
	return Keyword{Text: text, TokenSpan: len(strings.Fields(text))}
}

// Multi reports whether the keyword is matched against merged token pairs.
func (k Keyword) Multi() bool { return k.TokenSpan > 1 }

// Key is the result field name: the keyword text without colons.
func (k Keyword) Key() string { return strings.ReplaceAll(k.Text, ":", "") }

func (k Keyword) String() string { return k.Text }

// General-zone keywords of the e-kassa template.
var (
	ObjectName    = New("Object name")
	ObjectAddress = New("Object address:")
	ObjectCode    = New("Object code:")
	TaxpayerName  = New("Taxpayer name:")
	ReceiptNumber = New("Sale receipt №")
	TIN           = New("TIN:")
	Cashier       = New("Cashier:")
	Date          = New("Date:")
	Time          = New("Time:")
)

// GeneralKeywords returns the keywords searched in the general zone,
// multi-token ones first.
func GeneralKeywords() []Keyword {
	return []Keyword{ObjectName, ObjectAddress, ObjectCode, TaxpayerName, ReceiptNumber, TIN, Cashier, Date, Time}
}

// Thresholds are the minimum similarity ratios, in [0, 100], for a match.
type Thresholds struct {
	OneToken   float64 `mapstructure:"one_token" yaml:"one_token" json:"one_token"`
	MultiToken float64 `mapstructure:"multi_token" yaml:"multi_token" json:"multi_token"`
}

// DefaultThresholds returns 80/80.
func DefaultThresholds() Thresholds {
	return Thresholds{OneToken: 80, MultiToken: 80}
}

// Validate checks both thresholds are in range.
func (t Thresholds) Validate() error {
	if t.OneToken < 0 || t.OneToken > 100 {
		return fmt.Errorf("one-token threshold %.1f out of range [0, 100]", t.OneToken)
	}
	if t.MultiToken < 0 || t.MultiToken > 100 {
		return fmt.Errorf("multi-token threshold %.1f out of range [0, 100]", t.MultiToken)
	}
	return nil
}

func (t Thresholds) forKeyword(k Keyword) float64 {
	if k.Multi() {
		return t.MultiToken
	}
	return t.OneToken
}

// ordered returns the keywords with multi-token ones first, otherwise
// preserving list order.
func ordered(keywords []Keyword) []Keyword {
	out := make([]Keyword, 0, len(keywords))
	for _, k := range keywords {
		if k.Multi() {
			out = append(out, k)
		}
	}
	for _, k := range keywords {
		if !k.Multi() {
			out = append(out, k)
		}
	}
	return out
}
