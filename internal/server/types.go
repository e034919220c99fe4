package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/receiptminer/internal/acquire"
	"github.com/MeKo-Tech/receiptminer/internal/common"
	"github.com/MeKo-Tech/receiptminer/internal/export"
	"github.com/MeKo-Tech/receiptminer/internal/pipeline"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/MeKo-Tech/receiptminer/internal/receipt"
	"github.com/MeKo-Tech/receiptminer/internal/validate"
)

// Miner is the part of *pipeline.Miner the server uses.
type Miner interface {
	Mine(ctx context.Context, receiptID string, r raster.Raster) (*pipeline.Result, error)
	Validator() *validate.Validator
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	miner       Miner
	source      acquire.Source
	logger      *slog.Logger
	rateLimiter *RateLimiter
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	RateLimit   RateLimitConfig
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	common.MemorySnapshot
}

// ReceiptsResponse is returned by the mining endpoints in JSON format.
type ReceiptsResponse struct {
	RequestID string         `json:"request_id"`
	Receipts  []export.Entry `json:"receipts"`
}

// ValidateResponse is returned by /api/v1/validate.
type ValidateResponse struct {
	RequestID  string          `json:"request_id"`
	Mode       validate.Mode   `json:"mode"`
	Consistent bool            `json:"consistent"`
	Errors     validate.Errors `json:"errors,omitempty"`
	Record     *receipt.Record `json:"record"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewServer creates a server around miner. source may be nil, in which
// case fiscal-code lookups answer 503.
func NewServer(config Config, miner Miner, source acquire.Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		miner:       miner,
		source:      source,
		logger:      logger,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.route("/health", s.healthHandler))
	mux.HandleFunc("/api/v1/receipts", s.route("/api/v1/receipts", s.rateLimitMiddleware(s.uploadHandler)))
	mux.HandleFunc("/api/v1/receipts/{fiscal}", s.route("/api/v1/receipts/{fiscal}", s.rateLimitMiddleware(s.fetchHandler)))
	mux.HandleFunc("/api/v1/validate", s.route("/api/v1/validate", s.validateHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
