// Package export writes mined receipts as text, JSON, YAML or CSV and reads
// the structured formats back.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/receiptminer/internal/receipt"
	"github.com/MeKo-Tech/receiptminer/internal/validate"
)

// Format is an output format name.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ErrNotImportable is returned when reading the text format.
var ErrNotImportable = errors.New("export: text output cannot be imported")

// ParseFormat parses a format name; "" selects text and "yml" is accepted.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case "yml":
		return FormatYAML, nil
	case FormatText, FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (must be one of: text, json, yaml, csv)", s)
	}
}

// Entry is one mined receipt with its provenance. Record is nil when mining
// failed; Error then holds the reason.
type Entry struct {
	Source          string           `json:"source" yaml:"source"`
	Record          *receipt.Record  `json:"record,omitempty" yaml:"record,omitempty"`
	Warnings        receipt.Warnings `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Inconsistencies validate.Errors  `json:"inconsistencies,omitempty" yaml:"inconsistencies,omitempty"`
	Error           string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Document is the top-level JSON and YAML shape.
type Document struct {
	Receipts []Entry `json:"receipts" yaml:"receipts"`
}

// Write encodes entries in format.
func Write(w io.Writer, format Format, entries []Entry) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Document{Receipts: entries})
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(Document{Receipts: entries}); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, entries)
	case FormatText, "":
		return writeText(w, entries)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// Read decodes entries written by Write. CSV carries records, sources and
// errors only; warnings and inconsistencies are not part of its columns.
func Read(r io.Reader, format Format) ([]Entry, error) {
	switch format {
	case FormatJSON:
		var doc Document
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return doc.Receipts, nil
	case FormatYAML:
		var doc Document
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return doc.Receipts, nil
	case FormatCSV:
		return readCSV(r)
	case FormatText:
		return nil, ErrNotImportable
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// ReadRecord decodes a single record, as posted to the validation endpoint,
// from JSON or YAML.
func ReadRecord(r io.Reader, format Format) (*receipt.Record, error) {
	var rec receipt.Record
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("records can be read from json or yaml, not %q", format)
	}
	return &rec, nil
}

func writeText(w io.Writer, entries []Entry) error {
	for i, e := range entries {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "# %s\n", e.Source); err != nil {
			return err
		}
		if e.Record == nil {
			if _, err := fmt.Fprintf(w, "error: %s\n", e.Error); err != nil {
				return err
			}
			continue
		}
		if _, err := io.WriteString(w, receipt.Render(e.Record)); err != nil {
			return err
		}
		for _, warn := range e.Warnings {
			if _, err := fmt.Fprintf(w, "warning: %s\n", warn); err != nil {
				return err
			}
		}
		for _, inc := range e.Inconsistencies {
			if _, err := fmt.Fprintf(w, "inconsistency: %s\n", inc.Error()); err != nil {
				return err
			}
		}
	}
	return nil
}
