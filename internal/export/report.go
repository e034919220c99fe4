package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/MeKo-Tech/receiptminer/internal/receipt"
)

// ReportSink writes a text rendering of each receipt next to a PNG copy of
// its source raster, as <dir>/<id>.txt and <dir>/<id>.png.
type ReportSink struct {
	dir string
}

// NewReportSink creates the directory if needed.
func NewReportSink(dir string) (*ReportSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &ReportSink{dir: dir}, nil
}

// Report is the set of files written for one receipt.
type Report struct {
	Text   string
	Raster string
}

// Write stores the rendering and, when src is non-empty, the raster.
func (s *ReportSink) Write(e Entry, src raster.Raster) (Report, error) {
	id := reportName(e)
	var rep Report

	var body strings.Builder
	if err := writeText(&body, []Entry{e}); err != nil {
		return rep, err
	}
	rep.Text = filepath.Join(s.dir, id+".txt")
	if err := os.WriteFile(rep.Text, []byte(body.String()), 0o644); err != nil {
		return Report{}, fmt.Errorf("write report: %w", err)
	}

	if !src.Empty() {
		rep.Raster = filepath.Join(s.dir, id+".png")
		if err := raster.Save(rep.Raster, src); err != nil {
			return rep, fmt.Errorf("write report raster: %w", err)
		}
	}
	return rep, nil
}

func reportName(e Entry) string {
	name := ""
	if e.Record != nil {
		name = e.Record.ID
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(e.Source), filepath.Ext(e.Source))
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 || name == "." {
		return "receipt"
	}
	return b.String()
}

// FromRecord wraps a record as an entry.
func FromRecord(source string, r *receipt.Record) Entry {
	return Entry{Source: source, Record: r}
}
