// Package ocrtest provides a scripted OCR engine for tests and replays.
package ocrtest

import (
	"context"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/receiptminer/internal/ocr"
)

// Call records one Recognize invocation.
type Call struct {
	Field  string
	Bounds image.Rectangle
}

type response struct {
	tokens []ocr.Token
	err    error
}

// Engine replays queued responses per field name. A field with an empty
// queue yields no tokens.
type Engine struct {
	mu        sync.Mutex
	queues    map[string][]response
	calls     []Call
	delay     time.Duration
	closed    bool
	fallbacks map[string][]ocr.Token
}

// New returns an empty scripted engine.
func New() *Engine {
	return &Engine{
		queues:    make(map[string][]response),
		fallbacks: make(map[string][]ocr.Token),
	}
}

// Push queues one successful response for field.
func (e *Engine) Push(field string, tokens ...ocr.Token) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queues[field] = append(e.queues[field], response{tokens: tokens})
	return e
}

// Fail queues an engine error for field.
func (e *Engine) Fail(field string, err error) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queues[field] = append(e.queues[field], response{err: err})
	return e
}

// Always answers every call for field with tokens once its queue is empty.
func (e *Engine) Always(field string, tokens ...ocr.Token) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallbacks[field] = tokens
	return e
}

// Delay makes every call sleep for d or until ctx is done.
func (e *Engine) Delay(d time.Duration) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = d
	return e
}

// Recognize implements ocr.Engine.
func (e *Engine) Recognize(ctx context.Context, img image.Image, spec ocr.FieldSpec) ([]ocr.Token, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Field: spec.Name, Bounds: img.Bounds()})
	delay := e.delay
	var res response
	if q := e.queues[spec.Name]; len(q) > 0 {
		res = q[0]
		e.queues[spec.Name] = q[1:]
	} else {
		res = response{tokens: e.fallbacks[spec.Name]}
	}
	e.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if res.err != nil {
		return nil, res.err
	}
	out := make([]ocr.Token, len(res.tokens))
	copy(out, res.tokens)
	return out, nil
}

// Close implements ocr.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Calls returns a copy of the recorded invocations.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// CallsFor counts invocations for field.
func (e *Engine) CallsFor(field string) int {
	n := 0
	for _, c := range e.Calls() {
		if c.Field == field {
			n++
		}
	}
	return n
}

// Remaining reports how many queued responses were not consumed.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, q := range e.queues {
		n += len(q)
	}
	return n
}

// Tok builds a token at (left, top) sized from the text length.
func Tok(text string, left, top int) ocr.Token {
	return ocr.Token{Text: text, Left: left, Top: top, Width: 8 * len([]rune(text)), Height: 12}
}

// Line lays out the words of s left to right on one row.
func Line(s string, left, top int) []ocr.Token {
	var out []ocr.Token
	x := left
	for _, w := range strings.Fields(s) {
		t := Tok(w, x, top)
		out = append(out, t)
		x = t.Right() + 8
	}
	return out
}

// Lines lays out several rows starting at top, lineHeight apart.
func Lines(top, lineHeight int, rows ...string) []ocr.Token {
	var out []ocr.Token
	for i, r := range rows {
		out = append(out, Line(r, 0, top+i*lineHeight)...)
	}
	return out
}

// Column stacks single-token rows, one per text, lineHeight apart.
func Column(left, top, lineHeight int, texts ...string) []ocr.Token {
	out := make([]ocr.Token, 0, len(texts))
	for i, s := range texts {
		out = append(out, Tok(s, left, top+i*lineHeight))
	}
	return out
}
