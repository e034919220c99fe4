package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/receiptminer/internal/export"
	"github.com/MeKo-Tech/receiptminer/internal/pipeline"
	"github.com/MeKo-Tech/receiptminer/internal/pipeline/pipelinetest"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
)

type fakeSource struct {
	r     raster.Raster
	codes map[string]bool
}

func (f fakeSource) Fetch(_ context.Context, code string) (raster.Raster, error) {
	if !f.codes[code] {
		return raster.Raster{}, errors.New("unknown fiscal code")
	}
	return f.r, nil
}

// receiptDir writes two good receipts and one corrupt PNG.
func receiptDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	r := pipelinetest.Raster(t)
	require.NoError(t, raster.Save(filepath.Join(dir, "a.png"), r))
	require.NoError(t, raster.Save(filepath.Join(dir, "b.png"), r))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not an image"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))
	return dir
}

func TestProcessBatch_Directory(t *testing.T) {
	m := pipelinetest.NewMiner(t, pipelinetest.Engine(), func(b *pipeline.Builder) {
		b.WithParallelWorkers(2)
	})
	dir := receiptDir(t)

	res, err := ProcessBatch(context.Background(), m, Inputs{Paths: []string{dir}}, DefaultConfig(), nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "broken", res.Failures[0].ID)
	assert.Equal(t, 2, res.WorkerCount)

	byID := map[string]export.Entry{}
	for _, e := range res.Entries {
		byID[filepath.Base(e.Source)] = e
	}
	require.NotNil(t, byID["a.png"].Record)
	assert.Equal(t, "a", byID["a.png"].Record.ID)
	assert.Equal(t, "Tea", byID["a.png"].Record.Items[0].Name)
	assert.Nil(t, byID["broken.png"].Record)
	assert.NotEmpty(t, byID["broken.png"].Error)

	stats := res.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Mined)
	assert.Equal(t, 1, stats.Failed)
}

func TestProcessBatch_StopsSucceedingWithoutContinueOnError(t *testing.T) {
	m := pipelinetest.NewMiner(t, pipelinetest.Engine())
	cfg := DefaultConfig()
	cfg.ContinueOnError = false

	res, err := ProcessBatch(context.Background(), m, Inputs{Paths: []string{receiptDir(t)}}, cfg, nil)
	require.ErrorIs(t, err, ErrReceiptsFailed)
	require.NotNil(t, res)
	assert.Len(t, res.Entries, 3)
}

func TestProcessBatch_FiscalCodes(t *testing.T) {
	m := pipelinetest.NewMiner(t, pipelinetest.Engine())
	src := fakeSource{r: pipelinetest.Raster(t), codes: map[string]bool{"7Hc3Ab": true}}

	res, err := ProcessBatch(context.Background(), m,
		Inputs{FiscalCodes: []string{"7Hc3Ab", " ", "missing"}, Source: src}, DefaultConfig(), nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "7Hc3Ab", res.Entries[0].Record.ID)
	assert.Contains(t, res.Entries[1].Error, "unknown fiscal code")
}

func TestProcessBatch_FiscalCodesNeedSource(t *testing.T) {
	m := pipelinetest.NewMiner(t, pipelinetest.Engine())
	_, err := ProcessBatch(context.Background(), m, Inputs{FiscalCodes: []string{"x"}}, DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestProcessBatch_NothingFound(t *testing.T) {
	m := pipelinetest.NewMiner(t, pipelinetest.Engine())
	_, err := ProcessBatch(context.Background(), m, Inputs{Paths: []string{t.TempDir()}}, DefaultConfig(), nil)
	assert.ErrorContains(t, err, "no receipts found")
}

func TestProcessBatch_PDFPages(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "page.png")
	require.NoError(t, raster.Save(png, pipelinetest.Raster(t)))
	doc := filepath.Join(dir, "scans.pdf")
	require.NoError(t, api.ImportImagesFile([]string{png, png}, doc, pdfcpu.DefaultImportConfig(), model.NewDefaultConfiguration()))
	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("%PDF-1.7 garbage"), 0o600))

	m := pipelinetest.NewMiner(t, pipelinetest.Engine())
	res, err := ProcessBatch(context.Background(), m, Inputs{Paths: []string{doc, bad}}, DefaultConfig(), nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, "scans_p1", res.Entries[0].Record.ID)
	assert.Equal(t, "scans_p2", res.Entries[1].Record.ID)
	assert.True(t, strings.HasSuffix(res.Entries[1].Source, "#page=2"))
	assert.Nil(t, res.Entries[2].Record)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "bad", res.Failures[0].ID)
}

func TestProcessBatch_Reports(t *testing.T) {
	m := pipelinetest.NewMiner(t, pipelinetest.Engine())
	dir := t.TempDir()
	require.NoError(t, raster.Save(filepath.Join(dir, "a.png"), pipelinetest.Raster(t)))
	cfg := DefaultConfig()
	cfg.ReportDir = filepath.Join(t.TempDir(), "reports")

	res, err := ProcessBatch(context.Background(), m, Inputs{Paths: []string{dir}}, cfg, nil)
	require.NoError(t, err)
	require.Len(t, res.Reports, 1)
	assert.FileExists(t, filepath.Join(cfg.ReportDir, "a.txt"))
	assert.FileExists(t, filepath.Join(cfg.ReportDir, "a.png"))
}

func TestProcessBatch_InvalidConfig(t *testing.T) {
	m := pipelinetest.NewMiner(t, pipelinetest.Engine())
	cfg := DefaultConfig()
	cfg.Format = "xml"
	_, err := ProcessBatch(context.Background(), m, Inputs{Paths: []string{t.TempDir()}}, cfg, nil)
	assert.Error(t, err)
}

func TestResult_SaveAndPrint(t *testing.T) {
	m := pipelinetest.NewMiner(t, pipelinetest.Engine())
	res, err := ProcessBatch(context.Background(), m, Inputs{Paths: []string{receiptDir(t)}}, DefaultConfig(), nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, res.SaveResults(&out, export.FormatJSON, "", false))
	back, err := export.Read(&out, export.FormatJSON)
	require.NoError(t, err)
	assert.Len(t, back, 3)

	file := filepath.Join(t.TempDir(), "out.csv")
	var msg bytes.Buffer
	require.NoError(t, res.SaveResults(&msg, export.FormatCSV, file, false))
	assert.Contains(t, msg.String(), "Results written to")
	assert.FileExists(t, file)

	var stats bytes.Buffer
	res.PrintStats(&stats, false)
	assert.Contains(t, stats.String(), "Total receipts: 3")
	assert.Contains(t, stats.String(), "Failed: 1")
	assert.Contains(t, stats.String(), "! broken:")
	assert.NotContains(t, stats.String(), "Memory:")

	stats.Reset()
	res.PrintStats(&stats, true)
	assert.Contains(t, stats.String(), "Memory: heap:")
}
