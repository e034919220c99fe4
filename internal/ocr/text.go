package ocr

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls token text normalization.
type CleanOptions struct {
	NormalizeForm      string // "NFC" (default), "NFKC", "NFD", "NFKD", "none"
	CollapseWhitespace bool
	Trim               bool
	RemoveControlChars bool
	RemoveZeroWidth    bool
}

// DefaultCleanOptions returns the normalization applied to every token.
// NFC keeps composed Azerbaijani letters such as Ə and Ş comparable with
// the keyword tables.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:      "NFC",
		CollapseWhitespace: true,
		Trim:               true,
		RemoveControlChars: true,
		RemoveZeroWidth:    true,
	}
}

// CleanText applies opts to s.
func CleanText(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}
	s = Normalize(s, opts.NormalizeForm)
	if opts.RemoveZeroWidth {
		s = removeZeroWidth(s)
	}
	if opts.RemoveControlChars {
		s = removeControlChars(s)
	}
	if opts.CollapseWhitespace {
		s = wsRe.ReplaceAllString(s, " ")
	}
	if opts.Trim {
		s = strings.TrimSpace(s)
	}
	return s
}

// Normalize applies a Unicode normalization form by name.
func Normalize(s, form string) string {
	switch strings.ToUpper(form) {
	case "NFC", "":
		return norm.NFC.String(s)
	case "NFKC":
		return norm.NFKC.String(s)
	case "NFD":
		return norm.NFD.String(s)
	case "NFKD":
		return norm.NFKD.String(s)
	}
	return s
}

var wsRe = regexp.MustCompile(`\s+`)

func removeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func removeZeroWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u200B', '\u200C', '\u200D', '\uFEFF':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
