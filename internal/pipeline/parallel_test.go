package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/ocr/ocrtest"
	"github.com/MeKo-Tech/receiptminer/internal/raster"
	"github.com/MeKo-Tech/receiptminer/internal/testutil"
)

type countingProgress struct {
	mu      sync.Mutex
	started int
	events  []ProgressEvent
	final   *ProgressEvent
}

func (c *countingProgress) OnStart(total int) { c.started = total }
func (c *countingProgress) OnReceipt(ev ProgressEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}
func (c *countingProgress) OnComplete(ev ProgressEvent) { c.final = &ev }

func (c *countingProgress) failedIDs() []string {
	var ids []string
	for _, ev := range c.events {
		if ev.Err != nil {
			ids = append(ids, ev.ReceiptID)
		}
	}
	return ids
}

func alwaysEngine() *ocrtest.Engine {
	return ocrtest.New().
		Always(ocr.FieldGeneral, generalTokens()...).
		Always(ocr.FieldColumnHeader, headerTokens()...).
		Always(ocr.FieldQuantities, ocrtest.Tok("1", 0, 10)).
		Always(ocr.FieldProductNames, ocrtest.Line("Tea 1 2.20", 0, 3)...).
		Always(ocr.FieldPrices, ocrtest.Tok("2.20", 0, 5)).
		Always(ocr.FieldAmounts, ocrtest.Tok("2.20", 0, 5)).
		Always(ocr.FieldPaymentAmounts, ocrtest.Column(0, 5, 20, "2.20", "0.00")...).
		Always(ocr.FieldPaymentTypeNames, ocrtest.Lines(5, 20, "Cashless:", "Cash:", "Bonus:", "Prepayment:", "Credit:")...).
		Always(ocr.FieldPaymentTypeValues, ocrtest.Column(0, 5, 20, "2.20", "0", "0", "0", "0")...)
}

func TestMineAll_CollectsFailuresInOrder(t *testing.T) {
	progress := &countingProgress{}
	m := newMiner(t, alwaysEngine(), func(b *Builder) {
		b.WithParallelWorkers(3).WithProgressCallback(progress)
	})
	good := standardRaster(t)

	jobs := []Job{
		RasterJob("good-1", good),
		{ID: "unreadable", Load: func(context.Context) (raster.Raster, error) {
			return raster.Raster{}, errors.New("file vanished")
		}},
		{ID: "panics", Load: func(context.Context) (raster.Raster, error) { panic("decoder bug") }},
		RasterJob("blank", testutil.NewCanvas(200, 300).Raster(t)),
		RasterJob("good-2", good),
		{ID: "no-source"},
	}
	results, err := m.MineAll(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))

	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, jobs[i].ID, r.ID)
	}
	require.NoError(t, results[0].Err)
	assert.Equal(t, "Tea", results[0].Result.Record.Items[0].Name)
	assert.ErrorContains(t, results[1].Err, "file vanished")
	assert.ErrorContains(t, results[2].Err, "panic: decoder bug")
	assert.NotEmpty(t, results[2].Stack)
	assert.Error(t, results[3].Err)
	assert.Empty(t, results[3].Stack)
	require.NoError(t, results[4].Err)
	assert.ErrorContains(t, results[5].Err, "no source")

	assert.Equal(t, len(jobs), progress.started)
	require.Len(t, progress.events, len(jobs))
	for i, ev := range progress.events {
		assert.Equal(t, i+1, ev.Done)
		assert.Equal(t, len(jobs), ev.Total)
	}
	assert.ElementsMatch(t, []string{"unreadable", "panics", "blank", "no-source"}, progress.failedIDs())
	require.NotNil(t, progress.final)
	assert.Equal(t, len(jobs), progress.final.Done)
	assert.Equal(t, 4, progress.final.Failed)
	assert.Empty(t, progress.final.ReceiptID)

	stats := CalculateParallelStats(results, time.Second, 3)
	assert.Equal(t, 2, stats.MinedReceipts)
	assert.Equal(t, 4, stats.FailedReceipts)
	assert.Equal(t, 500*time.Millisecond, stats.AveragePerReceipt)
	assert.InDelta(t, 2.0, stats.ThroughputPerSec, 1e-9)
}

func TestMineAll_Empty(t *testing.T) {
	m := newMiner(t, alwaysEngine())
	_, err := m.MineAll(context.Background(), nil)
	assert.Error(t, err)
}

func TestMineAll_CancelledMarksUnfinished(t *testing.T) {
	m := newMiner(t, alwaysEngine().Delay(time.Second), func(b *Builder) { b.WithParallelWorkers(1) })
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	good := standardRaster(t)
	results, err := m.MineAll(ctx, []Job{RasterJob("a", good), RasterJob("b", good), RasterJob("c", good)})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Error(t, r.Err)
		assert.Nil(t, r.Result)
	}
}

func TestProgressEventEstimates(t *testing.T) {
	ev := ProgressEvent{Done: 2, Total: 6, Elapsed: 4 * time.Second}
	assert.Equal(t, 8*time.Second, ev.Remaining())
	assert.InDelta(t, 0.5, ev.Rate(), 1e-9)

	assert.Zero(t, ProgressEvent{Total: 3}.Remaining())
	assert.Zero(t, ProgressEvent{Done: 3, Total: 3, Elapsed: time.Second}.Remaining())
	assert.Zero(t, ProgressEvent{Done: 1}.Rate())
}

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleProgressCallback(&buf, "mine ").WithWidth(10).WithETA(false)
	c.OnStart(4)
	c.OnReceipt(ProgressEvent{ReceiptID: "r-2", Err: errors.New("bad scan"), Done: 2, Total: 4, Failed: 1})
	c.OnReceipt(ProgressEvent{ReceiptID: "r-4", Done: 4, Total: 4, Failed: 1})
	c.OnComplete(ProgressEvent{Done: 4, Total: 4, Failed: 1, Elapsed: 2 * time.Second})

	out := buf.String()
	assert.Contains(t, out, "mine 4 receipts")
	assert.Contains(t, out, "mine r-2 failed: bad scan")
	assert.Contains(t, out, "[#####.....] 2/4 (1 failed)")
	assert.Contains(t, out, "[##########] 4/4 (1 failed)")
	assert.True(t, strings.Contains(out, "3 mined, 1 failed in 2s"))
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	l := NewLogProgressCallback(logger, slog.LevelInfo, "batch: ").WithInterval(2)
	l.OnStart(3)
	l.OnReceipt(ProgressEvent{ReceiptID: "a", Done: 1, Total: 3})
	l.OnReceipt(ProgressEvent{ReceiptID: "b", Err: errors.New("blurred"), Done: 2, Total: 3, Failed: 1})
	l.OnReceipt(ProgressEvent{ReceiptID: "c", Done: 3, Total: 3, Failed: 1})
	l.OnComplete(ProgressEvent{Done: 3, Total: 3, Failed: 1})

	out := buf.String()
	assert.Contains(t, out, `msg="batch: mining receipts" total=3`)
	assert.Contains(t, out, `msg="batch: receipt failed" receipt_id=b error=blurred`)
	assert.Equal(t, 2, strings.Count(out, "batch: mining progress"))
	assert.Contains(t, out, `msg="batch: mining finished" mined=2 failed=1`)
}
