package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/receiptminer/internal/keyword"
	"github.com/MeKo-Tech/receiptminer/internal/lineitem"
	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/payment"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/MeKo-Tech/receiptminer/internal/segment"
	"github.com/MeKo-Tech/receiptminer/internal/validate"
)

// Config holds configuration for the mining pipeline and its components.
type Config struct {
	Segment    segment.Config
	Specs      ocr.Specs
	Keywords   keyword.Thresholds
	LineItems  lineitem.Config
	Payment    payment.Config
	Validation validate.Config
	OCRTimeout time.Duration

	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Segment:    segment.DefaultConfig(),
		Specs:      ocr.DefaultSpecs(),
		Keywords:   keyword.DefaultThresholds(),
		LineItems:  lineitem.DefaultConfig(),
		Payment:    payment.DefaultConfig(),
		Validation: validate.DefaultConfig(),
		OCRTimeout: 30 * time.Second,
		Parallel:   DefaultParallelConfig(),
	}
}

// Validate checks every component config.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"segmentation", c.Segment.Validate},
		{"ocr", c.Specs.Validate},
		{"similarity", c.Keywords.Validate},
		{"line items", c.LineItems.Validate},
		{"validation", c.Validation.Validate},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	if c.Payment.CashThreshold < 0 || c.Payment.CashThreshold > 100 ||
		c.Payment.LabelThreshold < 0 || c.Payment.LabelThreshold > 100 {
		return fmt.Errorf("payment: thresholds must be within [0, 100]")
	}
	if c.OCRTimeout < 0 {
		return errors.New("ocr timeout must not be negative")
	}
	return nil
}

// Segmenter is the layout surface the miner needs. *segment.Segmenter
// implements it.
type Segmenter interface {
	Split(r raster.Raster) (segment.Layout, error)
	ProductColumns(products segment.Zone, header []ocr.Token) (segment.Columns, error)
	keyword.GeneralSplitter
	payment.Splitter
}

// Builder constructs a Miner with fluent configuration.
type Builder struct {
	cfg     Config
	engine  ocr.Engine
	rec     ocr.Recognizer
	seg     Segmenter
	logger  *slog.Logger
	diag    Diagnostics
	metrics *Metrics
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithEngine sets the OCR engine wrapped by the gateway.
func (b *Builder) WithEngine(e ocr.Engine) *Builder {
	b.engine = e
	return b
}

// WithRecognizer bypasses the gateway. The caller owns the recognizer.
func (b *Builder) WithRecognizer(r ocr.Recognizer) *Builder {
	b.rec = r
	return b
}

// WithSegmenter overrides the segmenter built from the config.
func (b *Builder) WithSegmenter(s Segmenter) *Builder {
	b.seg = s
	return b
}

// WithLogger sets the base logger; runs scope it with their identifiers.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithDiagnostics enables the image and text side channel.
func (b *Builder) WithDiagnostics(d Diagnostics) *Builder {
	b.diag = d
	return b
}

// WithMetrics records stage timings and outcomes.
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.metrics = m
	return b
}

// WithOCRTimeout bounds each OCR engine call (0 disables the bound).
func (b *Builder) WithOCRTimeout(d time.Duration) *Builder {
	if d >= 0 {
		b.cfg.OCRTimeout = d
	}
	return b
}

// WithValidationMode selects correcting or reporting validation.
func (b *Builder) WithValidationMode(m validate.Mode) *Builder {
	if m != "" {
		b.cfg.Validation.Mode = m
	}
	return b
}

// WithTolerance sets the validator tolerance.
func (b *Builder) WithTolerance(t float64) *Builder {
	if t > 0 {
		b.cfg.Validation.Tolerance = t
	}
	return b
}

// WithEdgeCleaning toggles edge cleaning for intra-zone splits.
func (b *Builder) WithEdgeCleaning(enabled bool) *Builder {
	b.cfg.Segment.CleanEdges = enabled
	return b
}

// WithParallelWorkers sets the number of workers used by MineAll.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress callback used by MineAll.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration looks sane and a recognizer is
// available.
func (b *Builder) Validate() error {
	if err := b.cfg.Validate(); err != nil {
		return err
	}
	if b.rec == nil && b.engine == nil {
		return errors.New("no OCR engine configured")
	}
	return nil
}

// Build validates the configuration and wires the components.
func (b *Builder) Build() (*Miner, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	diag := b.diag
	if diag == nil {
		diag = NopDiagnostics{}
	}
	seg := b.seg
	if seg == nil {
		seg = segment.New(b.cfg.Segment)
	}

	m := &Miner{
		cfg:      b.cfg,
		seg:      seg,
		logger:   logger,
		diag:     diag,
		metrics:  b.metrics,
		profiler: &Profiler{},
	}
	m.rec = b.rec
	if m.rec == nil {
		gw := ocr.NewGateway(b.engine,
			ocr.WithTimeout(b.cfg.OCRTimeout),
			ocr.WithLogger(logger),
			ocr.WithObserver(b.metrics.observeOCR),
		)
		m.rec, m.closer = gw, gw
	}

	m.keywords = keyword.NewExtractor(m.rec, b.cfg.Specs.General, b.cfg.Keywords, logger)
	m.items = lineitem.New(m.rec, b.cfg.Specs, b.cfg.LineItems, logger)
	m.payment = payment.New(m.rec, seg, b.cfg.Specs, b.cfg.Payment, logger)
	m.validator = validate.New(b.cfg.Validation, logger)

	logger.Debug("receipt miner built",
		"validation_mode", b.cfg.Validation.Mode,
		"ocr_timeout", b.cfg.OCRTimeout,
		"clean_edges", b.cfg.Segment.CleanEdges)
	return m, nil
}

// Miner turns receipt rasters into validated records. It holds no
// per-receipt state and may be shared between goroutines.
type Miner struct {
	cfg       Config
	rec       ocr.Recognizer
	closer    io.Closer
	seg       Segmenter
	keywords  *keyword.Extractor
	items     *lineitem.Extractor
	payment   *payment.Extractor
	validator *validate.Validator

	logger   *slog.Logger
	diag     Diagnostics
	metrics  *Metrics
	profiler *Profiler
}

// Config returns the configuration the miner was built with.
func (m *Miner) Config() Config { return m.cfg }

// Validator returns the validator used for the final stage.
func (m *Miner) Validator() *validate.Validator { return m.validator }

// Profile returns cumulative stage timings across all runs.
func (m *Miner) Profile() map[string]any { return m.profiler.Snapshot() }

// Close releases the OCR engine when the miner owns it.
func (m *Miner) Close() error {
	if m == nil || m.closer == nil {
		return nil
	}
	return m.closer.Close()
}
