package ocr

import "fmt"

// Field names used to select a FieldSpec.
const (
	FieldGeneral           = "general"
	FieldColumnHeader      = "column_header"
	FieldProductNames      = "product_names"
	FieldQuantities        = "quantities"
	FieldPrices            = "prices"
	FieldAmounts           = "amounts"
	FieldPaymentAmounts    = "payment_amounts"
	FieldPaymentTypeNames  = "payment_type_names"
	FieldPaymentTypeValues = "payment_type_values"
	FieldSmallImage        = "small_image"
)

// Character sets of the receipt template.
const (
	AzUpper  = "ABCÇDEƏFGĞHXIİJKQLMNOÖPRSŞTUÜVYZ"
	AzLower  = "abcçdeəfgğhxıijkqlmnoöprsştuüvyz"
	Digits   = ".0123456789"
	Latin    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	Language = "eng+aze"
)

// Page segmentation modes used by the receipt template.
const (
	PSMSingleColumn = 4
	PSMSingleBlock  = 6
	PSMSingleWord   = 8
)

// FieldSpec bundles the recognition settings for one semantic field.
type FieldSpec struct {
	Name        string `mapstructure:"name" yaml:"name" json:"name"`
	Whitelist   string `mapstructure:"whitelist" yaml:"whitelist" json:"whitelist"`
	PageSegMode int    `mapstructure:"psm" yaml:"psm" json:"psm"`
	Language    string `mapstructure:"language" yaml:"language" json:"language"`
}

// Validate checks the spec for values the engine would reject.
func (s FieldSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("field spec: empty name")
	}
	if s.PageSegMode < 0 || s.PageSegMode > 13 {
		return fmt.Errorf("field spec %s: invalid page segmentation mode %d", s.Name, s.PageSegMode)
	}
	return nil
}

// Specs holds one FieldSpec per recognized field. It is built once from
// configuration and shared read-only between runs.
type Specs struct {
	General           FieldSpec
	ColumnHeader      FieldSpec
	ProductNames      FieldSpec
	Quantities        FieldSpec
	Prices            FieldSpec
	Amounts           FieldSpec
	PaymentAmounts    FieldSpec
	PaymentTypeNames  FieldSpec
	PaymentTypeValues FieldSpec
	SmallImage        FieldSpec
}

// DefaultSpecs returns the settings tuned for the e-kassa receipt template.
func DefaultSpecs() Specs {
	numeric := func(name string) FieldSpec {
		return FieldSpec{Name: name, Whitelist: Digits, PageSegMode: PSMSingleBlock}
	}
	return Specs{
		General: FieldSpec{
			Name:        FieldGeneral,
			Whitelist:   " %_-№" + AzUpper + AzLower + Digits,
			PageSegMode: PSMSingleBlock,
			Language:    Language,
		},
		ColumnHeader: FieldSpec{
			Name:        FieldColumnHeader,
			Whitelist:   Latin,
			PageSegMode: PSMSingleBlock,
			Language:    "eng",
		},
		ProductNames: FieldSpec{
			Name:        FieldProductNames,
			Whitelist:   " %_-" + AzUpper + AzLower + Digits,
			PageSegMode: PSMSingleColumn,
			Language:    Language,
		},
		Quantities:     numeric(FieldQuantities),
		Prices:         numeric(FieldPrices),
		Amounts:        numeric(FieldAmounts),
		PaymentAmounts: numeric(FieldPaymentAmounts),
		PaymentTypeNames: FieldSpec{
			Name:        FieldPaymentTypeNames,
			Whitelist:   Latin,
			PageSegMode: PSMSingleColumn,
			Language:    "eng",
		},
		PaymentTypeValues: numeric(FieldPaymentTypeValues),
		SmallImage:        FieldSpec{Name: FieldSmallImage, Whitelist: Digits, PageSegMode: PSMSingleWord},
	}
}

// All returns the specs in a stable order.
func (s Specs) All() []FieldSpec {
	return []FieldSpec{
		s.General, s.ColumnHeader, s.ProductNames, s.Quantities, s.Prices, s.Amounts,
		s.PaymentAmounts, s.PaymentTypeNames, s.PaymentTypeValues, s.SmallImage,
	}
}

// Validate checks every spec.
func (s Specs) Validate() error {
	for _, spec := range s.All() {
		if err := spec.Validate(); err != nil {
			return err
		}
	}
	return nil
}
