package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MeKo-Tech/receiptminer/internal/raster"
)

// DefaultTimeout bounds a single engine call.
const DefaultTimeout = 30 * time.Second

// RecognitionError reports an engine failure or timeout for one field.
type RecognitionError struct {
	Field string
	Err   error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognition failed for %s: %v", e.Field, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// Timeout reports whether the engine call ran out of time.
func (e *RecognitionError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Recognizer is the region-level recognition call the extractors depend on.
// *Gateway implements it.
type Recognizer interface {
	Recognize(ctx context.Context, region raster.Raster, spec FieldSpec) ([]Token, error)
}

// Observer is notified after each engine call.
type Observer func(field string, elapsed time.Duration, tokens int, err error)

// Gateway wraps an Engine with a bounded timeout, blank-token filtering and
// text normalization.
type Gateway struct {
	engine   Engine
	timeout  time.Duration
	clean    CleanOptions
	logger   *slog.Logger
	observer Observer
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTimeout sets the per-call timeout. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// WithCleanOptions overrides the token text normalization.
func WithCleanOptions(opts CleanOptions) Option {
	return func(g *Gateway) { g.clean = opts }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithObserver installs a callback invoked after every engine call.
func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// NewGateway creates a gateway around engine.
func NewGateway(engine Engine, opts ...Option) *Gateway {
	g := &Gateway{
		engine:  engine,
		timeout: DefaultTimeout,
		clean:   DefaultCleanOptions(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type engineResult struct {
	tokens []Token
	err    error
}

// Recognize runs the engine over region and returns the non-blank tokens.
// An empty slice is a valid all-blank result, not an error.
func (g *Gateway) Recognize(ctx context.Context, region raster.Raster, spec FieldSpec) ([]Token, error) {
	if g == nil || g.engine == nil {
		return nil, &RecognitionError{Field: spec.Name, Err: errors.New("no engine configured")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &RecognitionError{Field: spec.Name, Err: err}
	}
	if region.Empty() {
		return nil, &RecognitionError{Field: spec.Name, Err: raster.ErrEmptyRegion}
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan engineResult, 1)
	go func() {
		tokens, err := g.engine.Recognize(callCtx, region.Image(), spec)
		done <- engineResult{tokens: tokens, err: err}
	}()

	var res engineResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = engineResult{err: callCtx.Err()}
	}
	elapsed := time.Since(start)

	if res.err != nil {
		err := &RecognitionError{Field: spec.Name, Err: res.err}
		g.notify(spec.Name, elapsed, 0, err)
		return nil, err
	}

	tokens := g.filter(res.tokens)
	g.logger.Debug("ocr field recognized",
		"field", spec.Name,
		"tokens", len(tokens),
		"dropped", len(res.tokens)-len(tokens),
		"duration_ms", elapsed.Milliseconds())
	g.notify(spec.Name, elapsed, len(tokens), nil)
	return tokens, nil
}

// Close releases the engine.
func (g *Gateway) Close() error {
	if g == nil || g.engine == nil {
		return nil
	}
	return g.engine.Close()
}

func (g *Gateway) filter(in []Token) []Token {
	out := make([]Token, 0, len(in))
	for _, t := range in {
		t.Text = CleanText(t.Text, g.clean)
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (g *Gateway) notify(field string, elapsed time.Duration, n int, err error) {
	if g.observer != nil {
		g.observer(field, elapsed, n, err)
	}
}
