package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/receiptminer/internal/acquire"
	"github.com/MeKo-Tech/receiptminer/internal/barcode"
	"github.com/MeKo-Tech/receiptminer/internal/pdf"
	"github.com/MeKo-Tech/receiptminer/internal/pipeline"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
)

// Inputs are the receipt sources of one batch.
type Inputs struct {
	// Paths are files, directories or glob patterns of images and PDFs.
	Paths []string
	// FiscalCodes are fetched through Source.
	FiscalCodes []string
	Source      acquire.Source
}

// source pairs a job with the name it is reported under.
type source struct {
	job  pipeline.Job
	name string
}

// buildSources turns inputs into jobs. PDFs are opened eagerly so each page
// becomes its own receipt; a PDF that cannot be read becomes a failing job.
func buildSources(ctx context.Context, in Inputs, cfg Config, logger *slog.Logger) ([]source, error) {
	files, err := discoverFiles(in.Paths, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover receipt files: %w", err)
	}

	var out []source
	for _, f := range files {
		if !isPDF(f) {
			out = append(out, source{job: pipeline.FileJob(f), name: f})
			continue
		}
		out = append(out, pdfSources(ctx, f, cfg, logger)...)
	}

	if len(in.FiscalCodes) > 0 && in.Source == nil {
		return nil, fmt.Errorf("fiscal codes given without an acquisition source")
	}
	for _, code := range in.FiscalCodes {
		code := strings.TrimSpace(code)
		if code == "" {
			continue
		}
		fetch := in.Source
		out = append(out, source{
			name: code,
			job: pipeline.Job{
				ID: code,
				Load: func(ctx context.Context) (raster.Raster, error) {
					return fetch.Fetch(ctx, code)
				},
			},
		})
	}
	return out, nil
}

func pdfSources(ctx context.Context, path string, cfg Config, logger *slog.Logger) []source {
	doc := pipeline.ReceiptIDFromPath(path)
	pages, err := pdf.ExtractFile(ctx, path, pdf.Options{
		PageRange:   cfg.PageRange,
		Credentials: cfg.Credentials,
		Logger:      logger,
	})
	if err != nil {
		return []source{{
			name: path,
			job: pipeline.Job{ID: doc, Load: func(context.Context) (raster.Raster, error) {
				return raster.Raster{}, err
			}},
		}}
	}
	out := make([]source, 0, len(pages))
	for _, p := range pages {
		out = append(out, source{
			name: fmt.Sprintf("%s#page=%d", path, p.Number),
			job:  pipeline.RasterJob(p.ID(doc), p.Raster),
		})
	}
	return out
}

// ReadFiscalCodes reads one fiscal code or QR payload per line. Blank lines
// and lines starting with '#' are skipped; payloads keep the text after
// the last '='.
func ReadFiscalCodes(r io.Reader) ([]string, error) {
	var codes []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if code := barcode.FiscalCode(line); code != "" {
			codes = append(codes, code)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read fiscal codes: %w", err)
	}
	return codes, nil
}
