package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/receiptminer/internal/acquire"
	"github.com/MeKo-Tech/receiptminer/internal/keyword"
	"github.com/MeKo-Tech/receiptminer/internal/lineitem"
	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/payment"
	"github.com/MeKo-Tech/receiptminer/internal/pipeline"
	"github.com/MeKo-Tech/receiptminer/internal/segment"
	"github.com/MeKo-Tech/receiptminer/internal/validate"
)

// DefaultConfig returns a configuration with the e-kassa template defaults.
func DefaultConfig() Config {
	seg := segment.DefaultConfig()
	specs := ocr.DefaultSpecs()
	items := lineitem.DefaultConfig()
	th := keyword.DefaultThresholds()
	pay := payment.DefaultConfig()
	val := validate.DefaultConfig()
	acq := acquire.DefaultConfig()

	return Config{
		LogLevel: "info",
		OCR: OCRConfig{
			TimeoutSec: 30,
			Fields: FieldsConfig{
				General:           specs.General,
				ColumnHeader:      specs.ColumnHeader,
				ProductNames:      specs.ProductNames,
				Quantities:        specs.Quantities,
				Prices:            specs.Prices,
				Amounts:           specs.Amounts,
				PaymentAmounts:    specs.PaymentAmounts,
				PaymentTypeNames:  specs.PaymentTypeNames,
				PaymentTypeValues: specs.PaymentTypeValues,
				SmallImage:        specs.SmallImage,
			},
		},
		Splitting: SplittingConfig{
			ReceiptLogical:           seg.Receipt,
			PaymentToAmountType:      seg.PaymentBlocks,
			PaymentAmountToNameValue: seg.PaymentAmount,
			PaymentTypeToNameValue:   seg.PaymentType,
			ProductsPart:             seg.ProductColumns,
		},
		Margins: MarginsConfig{
			ProductLine:          items.ProductLineMargin,
			PriceLine:            items.PriceLineMargin,
			AmountLine:           items.AmountLineMargin,
			GeneralPartBottom:    seg.GeneralBottomMargin,
			PaymentPartBottom:    seg.PaymentBottomMargin,
			CashierDateTimeTop:   seg.CashierTopMargin,
			PaymentAmountPart:    seg.PaymentBlockMargin,
			PaymentTypeNameValue: seg.PaymentTypeOffset,
		},
		Similarity: SimilarityConfig{
			PaymentType: pay.CashThreshold,
			OneToken:    th.OneToken,
			MultiToken:  th.MultiToken,
		},
		Validation: ValidationConfig{
			Mode:      string(val.Mode),
			Tolerance: val.Tolerance,
		},
		Segmentation: SegmentationConfig{
			CleanEdges:         seg.CleanEdges,
			ColumnHeaders:      seg.Headers[:],
			HeaderThreshold:    seg.HeaderThreshold,
			NameTrailingTokens: items.NameTrailingTokens,
			SmallImageScale:    items.SmallImageScale,
		},
		Diagnostics: DiagnosticsConfig{
			Dir: "diagnostics",
		},
		Acquisition: AcquisitionConfig{
			URLTemplate: acq.URLTemplate,
			TimeoutSec:  int(acq.Timeout / time.Second),
			UserAgent:   acq.UserAgent,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      60,
			ShutdownTimeout: 10,

			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 5000,
			MaxDataPerDay:     100 * 1024 * 1024,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "yaml", "csv"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if c.OCR.TimeoutSec < 0 {
		return fmt.Errorf("invalid ocr timeout: %d (must not be negative)", c.OCR.TimeoutSec)
	}
	if len(c.Segmentation.ColumnHeaders) != 4 {
		return fmt.Errorf("segmentation.column_headers needs 4 entries, got %d", len(c.Segmentation.ColumnHeaders))
	}
	for name, v := range map[string]float64{
		"similarity.payment_type":       c.Similarity.PaymentType,
		"similarity.one_token":          c.Similarity.OneToken,
		"similarity.multi_token":        c.Similarity.MultiToken,
		"segmentation.header_threshold": c.Segmentation.HeaderThreshold,
	} {
		if err := validateThreshold(v, name); err != nil {
			return err
		}
	}
	if _, err := validate.ParseMode(c.Validation.Mode); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RequestsPerMinute < 0 || c.Server.RequestsPerHour < 0 ||
		c.Server.MaxRequestsPerDay < 0 || c.Server.MaxDataPerDay < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Diagnostics.Enabled && c.Diagnostics.Dir == "" {
		return fmt.Errorf("diagnostics enabled without a directory")
	}

	if err := c.ToAcquireConfig().Validate(); err != nil {
		return fmt.Errorf("acquisition: %w", err)
	}
	pc, err := c.ToPipelineConfig()
	if err != nil {
		return err
	}
	return pc.Validate()
}

// ToPipelineConfig converts the config into the miner configuration.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	mode, err := validate.ParseMode(c.Validation.Mode)
	if err != nil {
		return pipeline.Config{}, err
	}
	seg := segment.Config{
		Receipt:             c.Splitting.ReceiptLogical,
		PaymentBlocks:       c.Splitting.PaymentToAmountType,
		PaymentAmount:       c.Splitting.PaymentAmountToNameValue,
		PaymentType:         c.Splitting.PaymentTypeToNameValue,
		ProductColumns:      c.Splitting.ProductsPart,
		GeneralBottomMargin: c.Margins.GeneralPartBottom,
		PaymentBottomMargin: c.Margins.PaymentPartBottom,
		PaymentBlockMargin:  c.Margins.PaymentAmountPart,
		PaymentTypeOffset:   c.Margins.PaymentTypeNameValue,
		CashierTopMargin:    c.Margins.CashierDateTimeTop,
		CleanEdges:          c.Segmentation.CleanEdges,
		HeaderThreshold:     c.Segmentation.HeaderThreshold,
	}
	copy(seg.Headers[:], c.Segmentation.ColumnHeaders)

	f := c.OCR.Fields
	cfg := pipeline.DefaultConfig()
	cfg.Segment = seg
	cfg.Specs = ocr.Specs{
		General:           f.General,
		ColumnHeader:      f.ColumnHeader,
		ProductNames:      f.ProductNames,
		Quantities:        f.Quantities,
		Prices:            f.Prices,
		Amounts:           f.Amounts,
		PaymentAmounts:    f.PaymentAmounts,
		PaymentTypeNames:  f.PaymentTypeNames,
		PaymentTypeValues: f.PaymentTypeValues,
		SmallImage:        f.SmallImage,
	}
	cfg.Keywords = keyword.Thresholds{OneToken: c.Similarity.OneToken, MultiToken: c.Similarity.MultiToken}
	cfg.LineItems = lineitem.Config{
		ProductLineMargin:  c.Margins.ProductLine,
		PriceLineMargin:    c.Margins.PriceLine,
		AmountLineMargin:   c.Margins.AmountLine,
		NameTrailingTokens: c.Segmentation.NameTrailingTokens,
		SmallImageScale:    c.Segmentation.SmallImageScale,
	}
	cfg.Payment = payment.Config{CashThreshold: c.Similarity.PaymentType, LabelThreshold: c.Similarity.PaymentType}
	cfg.Validation = validate.Config{Mode: mode, Tolerance: c.Validation.Tolerance}
	cfg.OCRTimeout = time.Duration(c.OCR.TimeoutSec) * time.Second
	cfg.Parallel.MaxWorkers = c.Batch.Workers
	return cfg, nil
}

// ToAcquireConfig converts the acquisition section.
func (c *Config) ToAcquireConfig() acquire.Config {
	return acquire.Config{
		URLTemplate: c.Acquisition.URLTemplate,
		Timeout:     time.Duration(c.Acquisition.TimeoutSec) * time.Second,
		UserAgent:   c.Acquisition.UserAgent,
	}
}

// ToEngineOptions converts the OCR engine settings.
func (c *Config) ToEngineOptions() ocr.EngineOptions {
	return ocr.EngineOptions{TessdataPrefix: c.OCR.TessdataPrefix}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateThreshold validates a similarity percentage.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 100.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0 and 100)", name, value)
	}
	return nil
}
