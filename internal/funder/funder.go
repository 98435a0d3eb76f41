// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package funder maps free-text funder strings to canonical parent-agency
// names using a static lookup table.
package funder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Separator delimits individual funder names in a funder string.
const Separator = "; "

// ErrMissingColumn is returned when the lookup CSV lacks a required column.
var ErrMissingColumn = errors.New("lookup column not found")

// Table is an immutable mapping from raw funder name to parent-agency name.
// Keys match exactly. A Table is safe for concurrent reads.
type Table struct {
	parents map[string]string
}

// NewTable builds a Table from a copy of m.
func NewTable(m map[string]string) *Table {
	parents := make(map[string]string, len(m))
	for k, v := range m {
		parents[k] = v
	}
	return &Table{parents: parents}
}

// Len returns the number of raw names in the table.
func (t *Table) Len() int {
	return len(t.parents)
}

// Lookup returns the parent agency for a raw funder name.
func (t *Table) Lookup(raw string) (string, bool) {
	parent, ok := t.parents[raw]
	return parent, ok
}

// Normalize splits funder on Separator and returns the parent agency of each
// part that has a table entry, in first-encountered order. Duplicates are
// kept. Parts without an entry are dropped. An empty funder yields nil.
func (t *Table) Normalize(funder string) []string {
	if funder == "" {
		return nil
	}
	result := []string{}
	for _, part := range strings.Split(funder, Separator) {
		if parent, ok := t.parents[part]; ok && parent != "" {
			result = append(result, parent)
		}
	}
	return result
}

// Unmatched returns the parts of funder that have no table entry.
func (t *Table) Unmatched(funder string) []string {
	if funder == "" {
		return nil
	}
	var missing []string
	for _, part := range strings.Split(funder, Separator) {
		if _, ok := t.parents[part]; !ok {
			missing = append(missing, part)
		}
	}
	return missing
}

// Dedupe returns the distinct names in ascending order. Nil stays nil so a
// record without a funder string keeps no agency list.
func Dedupe(names []string) []string {
	if names == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	sort.Strings(result)
	return result
}

// LoadCSV reads a lookup table from CSV with a header row. keyColumn names
// the raw funder column and valueColumn the parent-agency column. Rows with
// an empty key are skipped; a repeated key keeps the last value.
func LoadCSV(r io.Reader, keyColumn, valueColumn string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading lookup header: %w", err)
	}
	keyIdx, valueIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case keyColumn:
			keyIdx = i
		case valueColumn:
			valueIdx = i
		}
	}
	if keyIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, keyColumn)
	}
	if valueIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, valueColumn)
	}

	parents := make(map[string]string)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading lookup line %d: %w", line, err)
		}
		if keyIdx >= len(row) || valueIdx >= len(row) {
			continue
		}
		key := row[keyIdx]
		if key == "" {
			continue
		}
		parents[key] = row[valueIdx]
	}
	return &Table{parents: parents}, nil
}

// LoadCSVFile opens path and reads it with LoadCSV.
func LoadCSVFile(path, keyColumn, valueColumn string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening lookup file: %w", err)
	}
	defer f.Close()

	t, err := LoadCSV(f, keyColumn, valueColumn)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return t, nil
}
