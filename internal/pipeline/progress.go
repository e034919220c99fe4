package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressEvent is the state of a MineAll call after one receipt finished.
// Err and Warnings describe that receipt; the counters cover the whole call.
type ProgressEvent struct {
	ReceiptID string
	Err       error
	Warnings  int

	Done    int
	Total   int
	Failed  int
	Elapsed time.Duration
}

// Remaining estimates the time left from the average pace so far.
func (e ProgressEvent) Remaining() time.Duration {
	if e.Done == 0 || e.Done >= e.Total {
		return 0
	}
	return time.Duration(float64(e.Elapsed) * float64(e.Total-e.Done) / float64(e.Done))
}

// Rate returns finished receipts per second.
func (e ProgressEvent) Rate() float64 {
	if e.Elapsed <= 0 {
		return 0
	}
	return float64(e.Done) / e.Elapsed.Seconds()
}

// ProgressCallback receives progress of a MineAll call. Calls come from a
// single goroutine, in completion order.
type ProgressCallback interface {
	OnStart(total int)
	OnReceipt(ev ProgressEvent)
	// OnComplete receives the final counters; ReceiptID and Err are empty.
	OnComplete(ev ProgressEvent)
}

// NoOpProgressCallback reports nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)              {}
func (NoOpProgressCallback) OnReceipt(ProgressEvent)  {}
func (NoOpProgressCallback) OnComplete(ProgressEvent) {}

// progressTracker turns job results into events.
type progressTracker struct {
	cb     ProgressCallback
	start  time.Time
	total  int
	done   int
	failed int
}

func newProgressTracker(cb ProgressCallback, total int) *progressTracker {
	if cb == nil {
		cb = NoOpProgressCallback{}
	}
	cb.OnStart(total)
	return &progressTracker{cb: cb, start: time.Now(), total: total}
}

func (p *progressTracker) record(r JobResult) {
	p.done++
	ev := ProgressEvent{ReceiptID: r.ID, Err: r.Err}
	if r.Err != nil {
		p.failed++
	} else if r.Result != nil {
		ev.Warnings = len(r.Result.Warnings)
	}
	p.cb.OnReceipt(p.fill(ev))
}

func (p *progressTracker) finish() {
	p.cb.OnComplete(p.fill(ProgressEvent{}))
}

func (p *progressTracker) fill(ev ProgressEvent) ProgressEvent {
	ev.Done, ev.Total, ev.Failed = p.done, p.total, p.failed
	ev.Elapsed = time.Since(p.start)
	return ev
}

// ConsoleProgressCallback redraws a single status line on a terminal and
// prints failed receipts above it.
type ConsoleProgressCallback struct {
	mu       sync.Mutex
	w        io.Writer
	prefix   string
	width    int
	showETA  bool
	throttle time.Duration
	drawn    time.Time
}

// NewConsoleProgressCallback creates a console reporter writing to w
// (stderr when nil).
func NewConsoleProgressCallback(w io.Writer, prefix string) *ConsoleProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgressCallback{
		w:        w,
		prefix:   prefix,
		width:    30,
		showETA:  true,
		throttle: 100 * time.Millisecond,
	}
}

// WithWidth sets the bar width in cells.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = width
	return c
}

// WithETA toggles the remaining-time estimate.
func (c *ConsoleProgressCallback) WithETA(show bool) *ConsoleProgressCallback {
	c.showETA = show
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drawn = time.Time{}
	_, _ = fmt.Fprintf(c.w, "%s%d receipts\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnReceipt(ev ProgressEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Err != nil {
		_, _ = fmt.Fprintf(c.w, "\r\033[K%s%s failed: %v\n", c.prefix, ev.ReceiptID, ev.Err)
		c.draw(ev)
		return
	}
	if time.Since(c.drawn) < c.throttle && ev.Done < ev.Total {
		return
	}
	c.draw(ev)
}

func (c *ConsoleProgressCallback) OnComplete(ev ProgressEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draw(ev)
	_, _ = fmt.Fprintf(c.w, "\n%s%d mined, %d failed in %v\n",
		c.prefix, ev.Done-ev.Failed, ev.Failed, ev.Elapsed.Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) draw(ev ProgressEvent) {
	c.drawn = time.Now()
	if ev.Total == 0 {
		return
	}
	filled := c.width * ev.Done / ev.Total
	var b strings.Builder
	fmt.Fprintf(&b, "\r%s[%s%s] %d/%d", c.prefix,
		strings.Repeat("#", filled), strings.Repeat(".", c.width-filled), ev.Done, ev.Total)
	if ev.Failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", ev.Failed)
	}
	if rate := ev.Rate(); rate > 0 {
		fmt.Fprintf(&b, " %.1f/s", rate)
	}
	if c.showETA {
		if left := ev.Remaining(); left > 0 {
			fmt.Fprintf(&b, " ETA %v", left.Round(time.Second))
		}
	}
	_, _ = io.WriteString(c.w, b.String())
}

// LogProgressCallback reports progress through slog: every failure at
// WARN, and the counters every interval receipts.
type LogProgressCallback struct {
	logger   *slog.Logger
	level    slog.Level
	prefix   string
	interval int
}

// NewLogProgressCallback creates a log reporter. prefix is prepended to
// every message.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level, prefix string) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, prefix: prefix, interval: 10}
}

// WithInterval logs the counters every n receipts.
func (l *LogProgressCallback) WithInterval(n int) *LogProgressCallback {
	if n > 0 {
		l.interval = n
	}
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.logger.Log(context.Background(), l.level, l.prefix+"mining receipts", "total", total)
}

func (l *LogProgressCallback) OnReceipt(ev ProgressEvent) {
	if ev.Err != nil {
		l.logger.Warn(l.prefix+"receipt failed", "receipt_id", ev.ReceiptID, "error", ev.Err)
	}
	if ev.Done%l.interval != 0 && ev.Done != ev.Total {
		return
	}
	l.logger.Log(context.Background(), l.level, l.prefix+"mining progress",
		"done", ev.Done,
		"total", ev.Total,
		"failed", ev.Failed,
		"rate", fmt.Sprintf("%.1f/s", ev.Rate()),
		"remaining", ev.Remaining().Round(time.Second))
}

func (l *LogProgressCallback) OnComplete(ev ProgressEvent) {
	l.logger.Log(context.Background(), l.level, l.prefix+"mining finished",
		"mined", ev.Done-ev.Failed,
		"failed", ev.Failed,
		"elapsed", ev.Elapsed.Round(time.Millisecond))
}
