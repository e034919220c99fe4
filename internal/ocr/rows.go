package ocr

import (
	"sort"
	"strconv"
	"strings"
)

// Row is a group of tokens sharing one text line.
type Row struct {
	Top    int
	Bottom int
	Tokens []Token
}

// Text space-joins the row tokens.
func (r Row) Text() string { return Join(r.Tokens) }

// Overlap returns the number of rows shared with [top, bottom).
func (r Row) Overlap(top, bottom int) int {
	return max(0, min(r.Bottom, bottom)-max(r.Top, top))
}

// GroupRows merges tokens into lines: a token starting above the vertical
// middle of the current line joins it. Rows are ordered top to bottom and
// their tokens left to right.
func GroupRows(tokens []Token) []Row {
	sorted := append([]Token(nil), tokens...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Top < sorted[j].Top })

	var rows []Row
	for _, t := range sorted {
		if n := len(rows); n > 0 && 2*t.Top < rows[n-1].Top+rows[n-1].Bottom {
			rows[n-1].Tokens = append(rows[n-1].Tokens, t)
			rows[n-1].Bottom = max(rows[n-1].Bottom, t.Bottom())
			continue
		}
		rows = append(rows, Row{Top: t.Top, Bottom: t.Bottom(), Tokens: []Token{t}})
	}
	for i := range rows {
		toks := rows[i].Tokens
		sort.SliceStable(toks, func(a, b int) bool { return toks[a].Left < toks[b].Left })
	}
	return rows
}

// NormalizeNumber joins recognized numeric fragments into one literal. Only
// digits and dots survive; the first dot is the decimal separator and any
// later dot is dropped as thousands-grouping noise.
func NormalizeNumber(fragments []string) string {
	var b strings.Builder
	seenDot := false
	for _, f := range fragments {
		for _, r := range f {
			switch {
			case r >= '0' && r <= '9':
				b.WriteRune(r)
			case r == '.' && !seenDot:
				seenDot = true
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// ParseNumber normalizes and parses fragments. ok is false when nothing
// numeric was recognized.
func ParseNumber(fragments []string) (float64, bool) {
	s := NormalizeNumber(fragments)
	if s == "" || s == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
