// Package acquire fetches receipt images from the e-kassa monitoring
// service by fiscal code.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/MeKo-Tech/receiptminer/internal/version"
)

// Placeholder is replaced by the escaped fiscal code in URL templates.
const Placeholder = "{fiscal_code}"

// DefaultURLTemplate is the public e-kassa document endpoint.
const DefaultURLTemplate = "https://monitoring.e-kassa.gov.az/pks-monitoring/2.0.0/documents/" + Placeholder

// maxImageBytes bounds the response body read into memory.
const maxImageBytes = 32 << 20

// ErrEmptyFiscalCode is returned before any request is made.
var ErrEmptyFiscalCode = errors.New("empty fiscal code")

// Config configures a Client.
type Config struct {
	URLTemplate string
	Timeout     time.Duration
	UserAgent   string
}

// DefaultConfig returns the e-kassa endpoint with a 30s timeout.
func DefaultConfig() Config {
	return Config{
		URLTemplate: DefaultURLTemplate,
		Timeout:     30 * time.Second,
		UserAgent:   version.UserAgent(),
	}
}

// Validate checks the template carries the placeholder and parses as a URL.
func (c Config) Validate() error {
	if !strings.Contains(c.URLTemplate, Placeholder) {
		return fmt.Errorf("url template %q lacks %s", c.URLTemplate, Placeholder)
	}
	u, err := url.Parse(strings.ReplaceAll(c.URLTemplate, Placeholder, "x"))
	if err != nil {
		return fmt.Errorf("url template: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url template: unsupported scheme %q", u.Scheme)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// Source yields a receipt raster for a fiscal code.
type Source interface {
	Fetch(ctx context.Context, fiscalCode string) (raster.Raster, error)
}

// FetchError describes a failed acquisition. StatusCode is zero when no
// response was received.
type FetchError struct {
	FiscalCode string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.FiscalCode, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.FiscalCode, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client downloads receipt images. A Client is safe for concurrent use and
// never retries; callers decide on retry policy.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// URL returns the document URL for a fiscal code.
func (c *Client) URL(fiscalCode string) string {
	return strings.ReplaceAll(c.cfg.URLTemplate, Placeholder, url.PathEscape(fiscalCode))
}

// Fetch downloads and decodes the receipt image for fiscalCode.
func (c *Client) Fetch(ctx context.Context, fiscalCode string) (raster.Raster, error) {
	fiscalCode = strings.TrimSpace(fiscalCode)
	if fiscalCode == "" {
		return raster.Raster{}, &FetchError{Err: ErrEmptyFiscalCode}
	}
	fail := func(status int, err error) (raster.Raster, error) {
		return raster.Raster{}, &FetchError{FiscalCode: fiscalCode, StatusCode: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(fiscalCode), nil)
	if err != nil {
		return fail(0, err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fail(resp.StatusCode, fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(snippet))))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if len(body) > maxImageBytes {
		return fail(resp.StatusCode, fmt.Errorf("image exceeds %d bytes", maxImageBytes))
	}

	r, format, err := raster.DecodeBytes(body)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode image: %w", err))
	}
	c.logger.Debug("fetched receipt image",
		"fiscal_code", fiscalCode,
		"format", format,
		"bytes", len(body),
		"width", r.Width(),
		"height", r.Height(),
		"duration_ms", time.Since(start).Milliseconds())
	return r, nil
}
