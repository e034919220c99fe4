package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/receiptminer/internal/acquire"
	"github.com/MeKo-Tech/receiptminer/internal/common"
	"github.com/MeKo-Tech/receiptminer/internal/export"
	"github.com/MeKo-Tech/receiptminer/internal/pdf"
	"github.com/MeKo-Tech/receiptminer/internal/pipeline"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/MeKo-Tech/receiptminer/internal/version"
)

// Receipt sources, used as metric labels.
const (
	sourceUpload = "upload"
	sourcePDF    = "pdf"
	sourceFiscal = "fiscal_code"
)

// healthHandler returns server health and memory statistics.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, _, _ := version.Info()
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		Version:        v,
		Time:           time.Now().UTC().Format(time.RFC3339),
		MemorySnapshot: common.TakeMemorySnapshot(),
	})
}

// uploadHandler mines an uploaded receipt image, or every page of an
// uploaded PDF.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, r, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, r, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}
	format, err := requestFormat(r)
	if err != nil {
		s.writeErrorResponse(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("receipt")
	if err != nil {
		s.writeErrorResponse(w, r, "No receipt file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, r, "Failed to read receipt data", http.StatusInternalServerError)
		return
	}

	id := r.FormValue("id")
	if id == "" {
		id = pipeline.ReceiptIDFromPath(header.Filename)
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	if bytes.HasPrefix(data, []byte("%PDF")) {
		s.minePDF(ctx, w, r, id, data, format)
		return
	}

	img, _, err := raster.DecodeBytes(data)
	if err != nil {
		s.writeErrorResponse(w, r, "Invalid image format", http.StatusBadRequest)
		return
	}
	entry, err := s.mine(ctx, sourceUpload, id, header.Filename, img)
	if err != nil {
		s.writeErrorResponse(w, r, fmt.Sprintf("Mining failed: %v", err), miningStatus(err))
		return
	}
	s.writeEntries(w, r, format, []export.Entry{entry})
}

// minePDF mines each page and reports per-page failures in the entries.
func (s *Server) minePDF(ctx context.Context, w http.ResponseWriter, r *http.Request, doc string, data []byte, format export.Format) {
	pages, err := pdf.Extract(ctx, bytes.NewReader(data), pdf.Options{
		PageRange: r.FormValue("pages"),
		Logger:    s.logger,
	})
	if err != nil {
		status := http.StatusBadRequest
		if pdf.IsPasswordError(err) {
			status = http.StatusUnprocessableEntity
		}
		s.writeErrorResponse(w, r, fmt.Sprintf("Failed to read PDF: %v", err), status)
		return
	}

	entries := make([]export.Entry, 0, len(pages))
	for _, p := range pages {
		source := fmt.Sprintf("%s#page=%d", doc, p.Number)
		e, err := s.mine(ctx, sourcePDF, p.ID(doc), source, p.Raster)
		if err != nil {
			if ctx.Err() != nil {
				s.writeErrorResponse(w, r, fmt.Sprintf("Mining failed: %v", err), miningStatus(err))
				return
			}
			e = export.Entry{Source: source, Error: err.Error()}
		}
		entries = append(entries, e)
	}
	s.writeEntries(w, r, format, entries)
}

// fetchHandler acquires a receipt by fiscal code and mines it.
func (s *Server) fetchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.source == nil {
		s.writeErrorResponse(w, r, "Receipt acquisition not configured", http.StatusServiceUnavailable)
		return
	}
	format, err := requestFormat(r)
	if err != nil {
		s.writeErrorResponse(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	code := strings.TrimSpace(r.PathValue("fiscal"))
	ctx, cancel := s.requestContext(r)
	defer cancel()

	img, err := s.source.Fetch(ctx, code)
	if err != nil {
		miningRequestsTotal.WithLabelValues(sourceFiscal, "fetch_error").Inc()
		s.writeErrorResponse(w, r, err.Error(), fetchStatus(err))
		return
	}
	entry, err := s.mine(ctx, sourceFiscal, code, code, img)
	if err != nil {
		s.writeErrorResponse(w, r, fmt.Sprintf("Mining failed: %v", err), miningStatus(err))
		return
	}
	s.writeEntries(w, r, format, []export.Entry{entry})
}

// validateHandler checks a JSON or YAML record for consistency.
func (s *Server) validateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := export.FormatJSON
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); strings.Contains(mt, "yaml") {
		format = export.FormatYAML
	}
	body := http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	rec, err := export.ReadRecord(body, format)
	if err != nil {
		s.writeErrorResponse(w, r, fmt.Sprintf("Invalid record: %v", err), http.StatusBadRequest)
		return
	}

	v := s.miner.Validator()
	errs := v.Validate(rec)
	validationRequestsTotal.WithLabelValues(fmt.Sprint(len(errs) == 0)).Inc()
	s.writeJSON(w, http.StatusOK, ValidateResponse{
		RequestID:  requestID(r.Context()),
		Mode:       v.Mode(),
		Consistent: len(errs) == 0,
		Errors:     errs,
		Record:     rec,
	})
}

func (s *Server) mine(ctx context.Context, source, id, name string, img raster.Raster) (export.Entry, error) {
	start := time.Now()
	res, err := s.miner.Mine(ctx, id, img)
	miningDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		miningRequestsTotal.WithLabelValues(source, "error").Inc()
		s.logger.Warn("mining failed", "request_id", requestID(ctx), "receipt_id", id, "error", err)
		return export.Entry{}, err
	}
	miningRequestsTotal.WithLabelValues(source, "ok").Inc()
	return export.Entry{
		Source:          name,
		Record:          res.Record,
		Warnings:        res.Warnings,
		Inconsistencies: res.Errors,
	}, nil
}

// requestContext bounds a request by the server timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeoutSec <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
}

// requestFormat reads the format from the form or query; JSON is the
// default.
func requestFormat(r *http.Request) (export.Format, error) {
	f := r.FormValue("format")
	if f == "" {
		return export.FormatJSON, nil
	}
	return export.ParseFormat(f)
}

func miningStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func fetchStatus(err error) int {
	var fe *acquire.FetchError
	switch {
	case errors.Is(err, acquire.ErrEmptyFiscalCode):
		return http.StatusBadRequest
	case errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

var contentTypes = map[export.Format]string{
	export.FormatText: "text/plain; charset=utf-8",
	export.FormatYAML: "application/yaml",
	export.FormatCSV:  "text/csv",
}

func (s *Server) writeEntries(w http.ResponseWriter, r *http.Request, format export.Format, entries []export.Entry) {
	if format == export.FormatJSON {
		s.writeJSON(w, http.StatusOK, ReceiptsResponse{RequestID: requestID(r.Context()), Receipts: entries})
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, entries); err != nil {
		s.writeErrorResponse(w, r, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypes[format])
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		RequestID: requestID(r.Context()),
	})
}
