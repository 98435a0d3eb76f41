// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset loads the merged publication table of an institution from
// CSV or parquet into PublicationRecords.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/publishing-profiler/pkg/types"
)

var (
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("required column missing")

	// ErrNoInput is returned when no merged file exists for an institution.
	ErrNoInput = errors.New("no merged input file found")

	// ErrUnsupportedFormat is returned for file extensions other than .csv
	// and .parquet.
	ErrUnsupportedFormat = errors.New("unsupported input format")
)

// Column names of the merged export read by the pipeline.
const (
	ColumnDOI           = "DOI"
	ColumnYear          = "PubYear"
	ColumnPublisher     = "Publisher"
	ColumnSourceTitle   = "Source title"
	ColumnFunder        = "Funder"
	ColumnCorresponding = "is_corresponding"
	ColumnUSFF          = "is_USFF"
)

// RequiredColumns lists the columns every input must carry.
var RequiredColumns = []string{
	ColumnDOI, ColumnYear, ColumnPublisher, ColumnSourceTitle,
	ColumnFunder, ColumnCorresponding, ColumnUSFF,
}

// discoverPatterns are tried in order under data/<institution>/.
var discoverPatterns = []string{
	"*_merged_small.parquet",
	"*_merged*.parquet",
	"*_merged*.csv",
}

// Discover returns the merged input file for inst under dataDir.
func Discover(dataDir string, inst types.Institution) (string, error) {
	dir := filepath.Join(dataDir, inst.NoSpaces())
	for _, pattern := range discoverPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", fmt.Errorf("globbing %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("%w for %s in %s", ErrNoInput, inst.Name, dir)
}

// LoadFile loads path, choosing the reader by extension.
func LoadFile(ctx context.Context, path string) (types.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return types.Dataset{}, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		ds, err := LoadCSV(f)
		if err != nil {
			return types.Dataset{}, fmt.Errorf("loading %s: %w", path, err)
		}
		return ds, nil
	case ".parquet":
		return LoadParquet(ctx, path)
	default:
		return types.Dataset{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadCSV reads a merged table with a header row.
func LoadCSV(r io.Reader) (types.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return types.Dataset{}, fmt.Errorf("reading header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.Dataset{}, fmt.Errorf("reading row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
	return FromRows(header, rows, nil)
}

// FromRows builds a Dataset from a header and string rows. null, when not
// nil, marks cells that were null in the source; a null cell and an empty
// cell are both treated as absent.
func FromRows(header []string, rows [][]string, null [][]bool) (types.Dataset, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			return types.Dataset{}, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}

	core := make(map[string]bool, len(RequiredColumns))
	for _, col := range RequiredColumns {
		core[col] = true
	}

	ds := types.Dataset{
		Columns: append([]string(nil), header...),
		Records: make([]types.PublicationRecord, 0, len(rows)),
	}
	for n, row := range rows {
		cell := func(col string) string {
			i := index[col]
			if i >= len(row) {
				return ""
			}
			if null != nil && n < len(null) && i < len(null[n]) && null[n][i] {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		year, err := parseYear(cell(ColumnYear))
		if err != nil {
			return types.Dataset{}, fmt.Errorf("row %d: %w", n+1, err)
		}

		rec := types.PublicationRecord{
			DOI:           cell(ColumnDOI),
			Year:          year,
			Publisher:     cell(ColumnPublisher),
			SourceTitle:   cell(ColumnSourceTitle),
			Funder:        cell(ColumnFunder),
			Corresponding: types.Flag(cell(ColumnCorresponding)),
			USFF:          types.Flag(cell(ColumnUSFF)),
		}
		for i, name := range header {
			if core[name] || i >= len(row) {
				continue
			}
			if null != nil && n < len(null) && i < len(null[n]) && null[n][i] {
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[name] = row[i]
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

// parseYear accepts integer years and the float form ("2022.0") written by
// exports whose year column holds nulls. Empty and NaN mean absent.
func parseYear(s string) (int, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid %s %q", ColumnYear, s)
	}
	return int(f), nil
}
