// Package pdf extracts receipt rasters from PDF documents.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/MeKo-Tech/receiptminer/internal/raster"
)

// ErrNoImages is returned when the selected pages embed no decodable image.
var ErrNoImages = errors.New("pdf: no receipt images found")

// Credentials contains the passwords for an encrypted PDF.
type Credentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

// Page is one receipt raster found in a document.
type Page struct {
	Number int
	// Images is the number of embedded images on the page; Raster is the
	// largest of them.
	Images int
	Raster raster.Raster
}

// ID returns a receipt ID for the page derived from the document name.
func (p Page) ID(document string) string {
	return fmt.Sprintf("%s_p%d", document, p.Number)
}

// Options selects pages and supplies credentials.
type Options struct {
	// PageRange is "" for all pages, or a list like "1,3-5".
	PageRange   string
	Credentials *Credentials
	Logger      *slog.Logger
}

// ExtractFile opens filename and calls Extract.
func ExtractFile(ctx context.Context, filename string, opts Options) ([]Page, error) {
	f, err := os.Open(filename) //nolint:gosec // G304: reading a user-provided PDF path is expected
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	pages, err := Extract(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return pages, nil
}

// Extract returns one raster per selected page, the largest embedded image
// of that page, in page order. Pages without images are skipped.
func Extract(ctx context.Context, rs io.ReadSeeker, opts Options) ([]Page, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageNumbers, err := parsePageRange(opts.PageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", opts.PageRange, err)
	}
	var selected []string
	for _, n := range pageNumbers {
		selected = append(selected, strconv.Itoa(n))
	}

	byPage := make(map[int]*Page)
	digest := func(img model.Image, _ bool, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, _, err := raster.Decode(img)
		if err != nil {
			// Masks and unsupported filters are common in receipt PDFs.
			logger.Debug("skipping undecodable pdf image",
				"page", img.PageNr, "name", img.Name, "type", img.FileType, "error", err)
			return nil
		}
		p, ok := byPage[img.PageNr]
		if !ok {
			p = &Page{Number: img.PageNr}
			byPage[img.PageNr] = p
		}
		p.Images++
		if area(r) > area(p.Raster) {
			p.Raster = r
		}
		return nil
	}

	if err := api.ExtractImages(rs, selected, digest, configuration(opts.Credentials)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if IsPasswordError(err) {
			return nil, fmt.Errorf("encrypted pdf: %w", err)
		}
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	if len(byPage) == 0 {
		return nil, ErrNoImages
	}
	pages := make([]Page, 0, len(byPage))
	for _, p := range byPage {
		pages = append(pages, *p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

func area(r raster.Raster) int { return r.Width() * r.Height() }

func configuration(creds *Credentials) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if creds != nil {
		conf.UserPW = creds.UserPassword
		conf.OwnerPW = creds.OwnerPassword
	}
	return conf
}

// IsPasswordError checks if an error is related to password/encryption issues.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, keyword := range []string{"password", "encrypted", "decrypt", "authentication"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start < 1 || start > end {
			return nil, fmt.Errorf("invalid page span %d-%d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil || page < 1 {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
