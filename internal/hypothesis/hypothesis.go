// Package hypothesis turns (label, mode) pairs into natural-language
// hypothesis sentences for entailment scoring.
package hypothesis

import (
	"bytes"
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Mode selects how a label is phrased as a hypothesis sentence.
type Mode string

const (
	ModeBase              Mode = "base"
	ModeSimplify          Mode = "simplify"
	ModeDescription       Mode = "description"
	ModeLogicalForm       Mode = "logical-form"
	ModeMaskedLogicalForm Mode = "masked-logical-form"
)

// ParseMode validates a mode string, defaulting to base.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeBase:
		return ModeBase, nil
	case ModeSimplify:
		return ModeSimplify, nil
	case ModeDescription:
		return ModeDescription, nil
	case ModeLogicalForm:
		return ModeLogicalForm, nil
	case ModeMaskedLogicalForm:
		return ModeMaskedLogicalForm, nil
	default:
		return ModeBase, fmt.Errorf("unknown hypothesis mode: %s", s)
	}
}

// Row holds the per-label hypothesis fields from the mapping table.
type Row struct {
	Simplified        string
	Description       string
	LogicalForm       string
	MaskedLogicalForm string
}

// Table maps canonical label names to their hypothesis fields.
type Table map[string]Row

//go:embed data/mappings.csv
var bundled embed.FS

// LoadTable reads the per-label mapping CSV, or the bundled table when path
// is empty. Expected header: Original Name, Understandable Name,
// Description, Logical Form, Masked Logical Form.
func LoadTable(path string) (Table, error) {
	var raw []byte
	var err error
	if path == "" {
		raw, err = bundled.ReadFile("data/mappings.csv")
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read mapping table: %w", err)
	}
	return parseTable(bytes.NewReader(raw))
}

func parseTable(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read mapping header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	nameIdx, ok := col["original name"]
	if !ok {
		return nil, fmt.Errorf("mapping table is missing the Original Name column")
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	table := make(Table)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read mapping row: %w", err)
		}
		name := strings.TrimSpace(rec[nameIdx])
		if name == "" {
			continue
		}
		table[name] = Row{
			Simplified:        field(rec, "understandable name"),
			Description:       field(rec, "description"),
			LogicalForm:       field(rec, "logical form"),
			MaskedLogicalForm: field(rec, "masked logical form"),
		}
	}
	return table, nil
}

// Build returns the hypothesis sentence for a label under the given mode.
// Lookup failures (missing row or empty field) silently fall back to the
// base template: classification must stay available with an incomplete
// mapping table.
func Build(label string, table Table, mode Mode) string {
	base := fmt.Sprintf("This is an example of %s logical fallacy", label)
	if mode == ModeBase || table == nil {
		return base
	}

	row, ok := table[label]
	if !ok {
		return base
	}

	switch mode {
	case ModeSimplify:
		if row.Simplified != "" {
			return fmt.Sprintf("This is an example of %s", row.Simplified)
		}
	case ModeDescription:
		if row.Description != "" {
			return fmt.Sprintf("This is an example of %s", row.Description)
		}
	case ModeLogicalForm:
		if row.LogicalForm != "" {
			return fmt.Sprintf("This article matches the following logical form: %s", row.LogicalForm)
		}
	case ModeMaskedLogicalForm:
		if row.MaskedLogicalForm != "" {
			return fmt.Sprintf("This article matches the following logical form: %s", row.MaskedLogicalForm)
		}
	}
	return base
}
