//nolint:lll
package config

import (
	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/segment"
)

// Config represents the complete configuration of the receiptminer
// application. It is loaded from configuration files, environment
// variables and command-line flags, and converted once into the read-only
// configs of the individual components.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	OCR          OCRConfig          `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Splitting    SplittingConfig    `mapstructure:"splitting" yaml:"splitting" json:"splitting"`
	Margins      MarginsConfig      `mapstructure:"margins" yaml:"margins" json:"margins"`
	Similarity   SimilarityConfig   `mapstructure:"similarity" yaml:"similarity" json:"similarity"`
	Validation   ValidationConfig   `mapstructure:"validation" yaml:"validation" json:"validation"`
	Segmentation SegmentationConfig `mapstructure:"segmentation" yaml:"segmentation" json:"segmentation"`
	Diagnostics  DiagnosticsConfig  `mapstructure:"diagnostics" yaml:"diagnostics" json:"diagnostics"`
	Acquisition  AcquisitionConfig  `mapstructure:"acquisition" yaml:"acquisition" json:"acquisition"`

	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
	Batch  BatchConfig  `mapstructure:"batch" yaml:"batch" json:"batch"`
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// OCRConfig contains OCR engine settings and one FieldSpec per field.
type OCRConfig struct {
	TimeoutSec     int          `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	TessdataPrefix string       `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix" json:"tessdata_prefix"`
	Fields         FieldsConfig `mapstructure:"fields" yaml:"fields" json:"fields"`
}

// FieldsConfig holds the recognition settings per semantic field.
type FieldsConfig struct {
	General           ocr.FieldSpec `mapstructure:"general" yaml:"general" json:"general"`
	ColumnHeader      ocr.FieldSpec `mapstructure:"column_header" yaml:"column_header" json:"column_header"`
	ProductNames      ocr.FieldSpec `mapstructure:"product_names" yaml:"product_names" json:"product_names"`
	Quantities        ocr.FieldSpec `mapstructure:"quantities" yaml:"quantities" json:"quantities"`
	Prices            ocr.FieldSpec `mapstructure:"prices" yaml:"prices" json:"prices"`
	Amounts           ocr.FieldSpec `mapstructure:"amounts" yaml:"amounts" json:"amounts"`
	PaymentAmounts    ocr.FieldSpec `mapstructure:"payment_amounts" yaml:"payment_amounts" json:"payment_amounts"`
	PaymentTypeNames  ocr.FieldSpec `mapstructure:"payment_type_names" yaml:"payment_type_names" json:"payment_type_names"`
	PaymentTypeValues ocr.FieldSpec `mapstructure:"payment_type_values" yaml:"payment_type_values" json:"payment_type_values"`
	SmallImage        ocr.FieldSpec `mapstructure:"small_image" yaml:"small_image" json:"small_image"`
}

// SplittingConfig holds the five gap-detection rules of the template.
type SplittingConfig struct {
	ReceiptLogical           segment.SplittingRule `mapstructure:"receipt_logical" yaml:"receipt_logical" json:"receipt_logical"`
	PaymentToAmountType      segment.SplittingRule `mapstructure:"payment_to_amount_type" yaml:"payment_to_amount_type" json:"payment_to_amount_type"`
	PaymentAmountToNameValue segment.SplittingRule `mapstructure:"payment_amount_to_name_value" yaml:"payment_amount_to_name_value" json:"payment_amount_to_name_value"`
	PaymentTypeToNameValue   segment.SplittingRule `mapstructure:"payment_type_to_name_value" yaml:"payment_type_to_name_value" json:"payment_type_to_name_value"`
	ProductsPart             segment.SplittingRule `mapstructure:"products_part" yaml:"products_part" json:"products_part"`
}

// MarginsConfig holds the pixel margins, all calibrated for one template.
type MarginsConfig struct {
	ProductLine          int `mapstructure:"product_line" yaml:"product_line" json:"product_line"`
	PriceLine            int `mapstructure:"price_line" yaml:"price_line" json:"price_line"`
	AmountLine           int `mapstructure:"amount_line" yaml:"amount_line" json:"amount_line"`
	GeneralPartBottom    int `mapstructure:"general_part_bottom" yaml:"general_part_bottom" json:"general_part_bottom"`
	PaymentPartBottom    int `mapstructure:"payment_part_bottom" yaml:"payment_part_bottom" json:"payment_part_bottom"`
	CashierDateTimeTop   int `mapstructure:"cashier_date_time_top" yaml:"cashier_date_time_top" json:"cashier_date_time_top"`
	PaymentAmountPart    int `mapstructure:"payment_amount_part" yaml:"payment_amount_part" json:"payment_amount_part"`
	PaymentTypeNameValue int `mapstructure:"payment_type_name_value" yaml:"payment_type_name_value" json:"payment_type_name_value"`
}

// SimilarityConfig holds the fuzzy-match thresholds (0-100).
type SimilarityConfig struct {
	PaymentType float64 `mapstructure:"payment_type" yaml:"payment_type" json:"payment_type"`
	OneToken    float64 `mapstructure:"one_token" yaml:"one_token" json:"one_token"`
	MultiToken  float64 `mapstructure:"multi_token" yaml:"multi_token" json:"multi_token"`
}

// ValidationConfig selects the validator behaviour.
type ValidationConfig struct {
	Mode      string  `mapstructure:"mode" yaml:"mode" json:"mode"`
	Tolerance float64 `mapstructure:"tolerance" yaml:"tolerance" json:"tolerance"`
}

// SegmentationConfig contains column detection and product row settings.
type SegmentationConfig struct {
	CleanEdges         bool     `mapstructure:"clean_edges" yaml:"clean_edges" json:"clean_edges"`
	ColumnHeaders      []string `mapstructure:"column_headers" yaml:"column_headers" json:"column_headers"`
	HeaderThreshold    float64  `mapstructure:"header_threshold" yaml:"header_threshold" json:"header_threshold"`
	NameTrailingTokens int      `mapstructure:"name_trailing_tokens" yaml:"name_trailing_tokens" json:"name_trailing_tokens"`
	SmallImageScale    float64  `mapstructure:"small_image_scale" yaml:"small_image_scale" json:"small_image_scale"`
}

// DiagnosticsConfig controls the image and text dumps of each run.
type DiagnosticsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// AcquisitionConfig contains settings for fetching receipts by fiscal code.
type AcquisitionConfig struct {
	URLTemplate string `mapstructure:"url_template" yaml:"url_template" json:"url_template"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	UserAgent   string `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
	// ReportDir receives a rendering and a copy of each receipt raster.
	ReportDir string `mapstructure:"report_dir" yaml:"report_dir" json:"report_dir"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Recursive       bool `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Rate limiting per client IP. Zero limits are unlimited.
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}
