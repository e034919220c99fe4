package keyword

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/MeKo-Tech/receiptminer/internal/fuzzy"
	"github.com/MeKo-Tech/receiptminer/internal/ocr"
	"github.com/MeKo-Tech/receiptminer/internal/receipt"
	"github.com/MeKo-Tech/receiptminer/internal/segment"
)

// Match is a keyword located in a token stream.
type Match struct {
	TokenIndex  int
	Keyword     Keyword
	MatchedText string
	Score       float64
}

// Result is the outcome of one extraction pass.
type Result struct {
	// Values maps Keyword.Key to the extracted text, or receipt.Missing.
	Values   map[string]string
	Tokens   []ocr.Token
	Matches  []Match
	Warnings receipt.Warnings
}

// Found reports whether key was matched.
func (r Result) Found(key string) bool {
	for _, m := range r.Matches {
		if m.Keyword.Key() == key {
			return true
		}
	}
	return false
}

// MatchFor returns the match that supplied the value of key.
func (r Result) MatchFor(key string) (Match, bool) {
	best, ok := Match{}, false
	for _, m := range r.Matches {
		if m.Keyword.Key() == key && (!ok || m.Score > best.Score) {
			best, ok = m, true
		}
	}
	return best, ok
}

// Extractor runs keyword rule extraction over zones.
type Extractor struct {
	rec        ocr.Recognizer
	spec       ocr.FieldSpec
	thresholds Thresholds
	logger     *slog.Logger
}

// NewExtractor builds an extractor recognizing zones with spec.
func NewExtractor(rec ocr.Recognizer, spec ocr.FieldSpec, th Thresholds, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{rec: rec, spec: spec, thresholds: th, logger: logger}
}

// Extract recognizes zone and extracts the values of keywords from it.
func (e *Extractor) Extract(ctx context.Context, zone segment.Zone, keywords []Keyword) (Result, error) {
	tokens, err := e.rec.Recognize(ctx, zone.Raster, e.spec)
	if err != nil {
		return Result{}, err
	}
	return e.ExtractTokens(tokens, keywords), nil
}

// ExtractTokens extracts keyword values from an already recognized token
// stream.
//
// Multi-token keywords are compared with token i joined to token i+1,
// one-token keywords with token i alone; the last token is never a keyword
// position. A token claimed by an earlier keyword in evaluation order is
// not reassigned. Each keyword's value is the run of tokens between the end
// of its match and the next match; the final match runs to the end of the
// stream. When a keyword matches more than once every match delimits, and
// the value comes from the best scoring one.
func (e *Extractor) ExtractTokens(tokens []ocr.Token, keywords []Keyword) Result {
	res := Result{Values: make(map[string]string, len(keywords)), Tokens: tokens}
	texts := ocr.Texts(tokens)

	var merged []string
	if n := len(texts); n > 1 {
		merged = make([]string, n-1)
		for i := 0; i < n-1; i++ {
			merged[i] = texts[i] + " " + texts[i+1]
		}
	}

	claimed := make(map[int]Keyword)
	for _, k := range ordered(keywords) {
		threshold := e.thresholds.forKeyword(k)
		for i := range merged {
			candidate := texts[i]
			if k.Multi() {
				candidate = merged[i]
			}
			score := fuzzy.Ratio(k.Text, candidate)
			if score < threshold {
				continue
			}
			if prev, taken := claimed[i]; taken {
				res.Warnings.Add(receipt.KeywordTie, k.Key(),
					"token %d %q also matches %q, kept %q", i, texts[i], k.Text, prev.Text)
				e.logger.Warn("keyword tie", "token", i, "text", texts[i], "keyword", k.Text, "kept", prev.Text)
				continue
			}
			claimed[i] = k
			res.Matches = append(res.Matches, Match{TokenIndex: i, Keyword: k, MatchedText: candidate, Score: score})
		}
	}
	sort.SliceStable(res.Matches, func(a, b int) bool {
		return res.Matches[a].TokenIndex < res.Matches[b].TokenIndex
	})

	scores := make(map[string]float64)
	for j, m := range res.Matches {
		start := min(m.TokenIndex+m.Keyword.TokenSpan, len(texts))
		end := len(texts)
		if j+1 < len(res.Matches) {
			end = res.Matches[j+1].TokenIndex
		}
		value := ""
		if start < end {
			value = strings.Join(texts[start:end], " ")
		}
		key := m.Keyword.Key()
		if s, seen := scores[key]; !seen || m.Score > s {
			scores[key] = m.Score
			res.Values[key] = value
		}
	}

	for _, k := range keywords {
		if _, ok := res.Values[k.Key()]; ok {
			continue
		}
		res.Values[k.Key()] = receipt.Missing
		res.Warnings.Add(receipt.FieldNotFound, k.Key(), "keyword %q not found", k.Text)
		e.logger.Warn("keyword not found", "keyword", k.Text)
	}
	return res
}
