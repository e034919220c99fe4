package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/receiptminer/internal/raster"
)

// Diagnostics receives intermediate regions and texts of a run. It is a
// side channel: implementations handle their own failures.
type Diagnostics interface {
	LogImage(run RunContext, tag string, region raster.Raster)
	LogText(run RunContext, tag, content string)
}

// NopDiagnostics discards everything.
type NopDiagnostics struct{}

func (NopDiagnostics) LogImage(RunContext, string, raster.Raster) {}
func (NopDiagnostics) LogText(RunContext, string, string)         {}

// FileDiagnostics writes <dir>/<receipt>_<start>/<tag>.png for images and
// appends to <tag>_text.log for texts.
type FileDiagnostics struct {
	dir    string
	logger *slog.Logger
}

// NewFileDiagnostics writes below dir.
func NewFileDiagnostics(dir string, logger *slog.Logger) *FileDiagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileDiagnostics{dir: dir, logger: logger}
}

// RunDir is the directory a run writes into.
func (d *FileDiagnostics) RunDir(run RunContext) string {
	return filepath.Join(d.dir, run.Key())
}

func (d *FileDiagnostics) LogImage(run RunContext, tag string, region raster.Raster) {
	if region.Empty() {
		return
	}
	dir, err := d.ensure(run)
	if err == nil {
		err = raster.Save(filepath.Join(dir, sanitize(tag)+".png"), region)
	}
	if err != nil {
		d.logger.Debug("diagnostic image not written", "tag", tag, "error", err)
	}
}

func (d *FileDiagnostics) LogText(run RunContext, tag, content string) {
	dir, err := d.ensure(run)
	if err == nil {
		err = appendFile(filepath.Join(dir, sanitize(tag)+"_text.log"), content)
	}
	if err != nil {
		d.logger.Debug("diagnostic text not written", "tag", tag, "error", err)
	}
}

func (d *FileDiagnostics) ensure(run RunContext) (string, error) {
	dir := d.RunDir(run)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create diagnostics dir: %w", err)
	}
	return dir, nil
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// sanitize keeps names portable across filesystems.
func sanitize(s string) string {
	if s == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
