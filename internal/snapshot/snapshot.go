// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package snapshot writes the intermediate tables of a run as CSV files
// next to the institution's input. Either every file of a run is written or
// none is.
package snapshot

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/publishing-profiler/internal/aggregate"
	"github.com/pdiddy/publishing-profiler/internal/dataset"
	"github.com/pdiddy/publishing-profiler/internal/funder"
	"github.com/pdiddy/publishing-profiler/internal/pipeline"
	"github.com/pdiddy/publishing-profiler/pkg/types"
)

// File name suffixes, appended to the institution prefix.
const (
	SuffixTarget             = "_yesyes.csv"
	SuffixByPublisher        = "_yesyes_groupbypublisher.csv"
	SuffixByJournal          = "_yesyes_groupbyjournaltitle.csv"
	SuffixWithDuplicates     = "_yesyes_with_funderDuplicates.csv"
	SuffixExploded           = "_DOIlevel_funders_exploded.csv"
	SuffixByAgency           = "_yesyes_groupbyfunderexploded.csv"
	SuffixDrillDownByJournal = "_yesyes_chosenfunder_groupbyjournaltitle.csv"
)

// Derived columns added to record-level files.
const (
	ColumnCorrespondingUSFF  = "is_corresponding_is_USFF"
	ColumnUSFFCorresponding  = "is_USFF_is_corresponding"
	ColumnAgenciesDuplicates = "ParentAgencyWithDuplicates"
	ColumnAgencies           = "ParentAgency"
)

// Options locates the snapshot files.
type Options struct {
	// Dir receives the files, normally data/<institution>/.
	Dir string

	// Prefix starts every file name, normally the institution name without
	// spaces.
	Prefix string

	// Columns is the input column order; record-level files keep it.
	Columns []string
}

type snapshotFile struct {
	suffix string
	write  func(w *csv.Writer) error
}

// Write stores every table of res under opts.Dir and returns the paths
// written, in write order.
func Write(res *pipeline.Result, opts Options) ([]string, error) {
	if opts.Prefix == "" {
		return nil, fmt.Errorf("snapshot prefix is empty")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	base := recordColumns(opts.Columns)
	withAgencies := append(append([]string(nil), base...), ColumnAgenciesDuplicates, ColumnAgencies)

	files := []snapshotFile{
		{SuffixTarget, func(w *csv.Writer) error {
			return writeRecords(w, base, res.Target, nil)
		}},
		{SuffixByPublisher, func(w *csv.Writer) error {
			return writeTable(w, res.ByPublisher)
		}},
		{SuffixByJournal, func(w *csv.Writer) error {
			return writeTable(w, res.ByJournal)
		}},
		{SuffixWithDuplicates, func(w *csv.Writer) error {
			return writeRecords(w, withAgencies, res.Target, nil)
		}},
		{SuffixExploded, func(w *csv.Writer) error {
			return writeExploded(w, withAgencies, res.Exploded())
		}},
		{SuffixByAgency, func(w *csv.Writer) error {
			return writeTable(w, res.ByAgency)
		}},
	}
	if res.DrillDown != nil {
		files = append(files, snapshotFile{SuffixDrillDownByJournal, func(w *csv.Writer) error {
			return writeTable(w, res.DrillDown.ByJournal)
		}})
	}

	var temps []string
	cleanup := func() {
		for _, t := range temps {
			os.Remove(t)
		}
	}

	for _, f := range files {
		tmp, err := writeTemp(opts.Dir, f.write)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("writing %s%s: %w", opts.Prefix, f.suffix, err)
		}
		temps = append(temps, tmp)
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(opts.Dir, opts.Prefix+f.suffix)
		if err := os.Rename(temps[i], paths[i]); err != nil {
			cleanup()
			return nil, fmt.Errorf("renaming temp file: %w", err)
		}
	}
	return paths, nil
}

func writeTemp(dir string, write func(w *csv.Writer) error) (string, error) {
	tmpFile, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	writeErr := writeCSV(tmpFile, write)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", writeErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	return tmpPath, nil
}

func writeCSV(out io.Writer, write func(w *csv.Writer) error) error {
	w := csv.NewWriter(out)
	if err := write(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// recordColumns is the input column order followed by the derived category
// columns, when the input does not already carry them.
func recordColumns(columns []string) []string {
	if len(columns) == 0 {
		columns = dataset.RequiredColumns
	}
	out := append([]string(nil), columns...)
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	for _, c := range []string{ColumnCorrespondingUSFF, ColumnUSFFCorresponding} {
		if !have[c] {
			out = append(out, c)
		}
	}
	return out
}

func writeRecords(w *csv.Writer, columns []string, records []types.PublicationRecord, agency *string) error {
	if err := w.Write(columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write(row(columns, r, agency)); err != nil {
			return err
		}
	}
	return nil
}

func writeExploded(w *csv.Writer, columns []string, rows []pipeline.ExplodedRow) error {
	if err := w.Write(columns); err != nil {
		return err
	}
	for _, er := range rows {
		agency := er.Agency
		if err := w.Write(row(columns, er.Record, &agency)); err != nil {
			return err
		}
	}
	return nil
}

func row(columns []string, r types.PublicationRecord, agency *string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = value(c, r, agency)
	}
	return out
}

// value returns the cell for column c. A non-nil agency replaces the
// record's agency list with a single exploded value.
func value(c string, r types.PublicationRecord, agency *string) string {
	switch c {
	case dataset.ColumnDOI:
		return r.DOI
	case dataset.ColumnYear:
		if r.Year == 0 {
			return ""
		}
		return strconv.Itoa(r.Year)
	case dataset.ColumnPublisher:
		return r.Publisher
	case dataset.ColumnSourceTitle:
		return r.SourceTitle
	case dataset.ColumnFunder:
		return r.Funder
	case dataset.ColumnCorresponding:
		return string(r.Corresponding)
	case dataset.ColumnUSFF:
		return string(r.USFF)
	case ColumnCorrespondingUSFF:
		return string(r.Classification.CorrespondingUSFF)
	case ColumnUSFFCorresponding:
		return string(r.Classification.USFFCorresponding)
	case ColumnAgenciesDuplicates:
		return strings.Join(r.ParentAgenciesWithDuplicates, funder.Separator)
	case ColumnAgencies:
		if agency != nil {
			return *agency
		}
		return strings.Join(r.ParentAgencies, funder.Separator)
	default:
		return r.Extra[c]
	}
}

func writeTable(w *csv.Writer, t aggregate.Table) error {
	header := make([]string, 0, len(t.Fields)+1)
	for _, f := range t.Fields {
		header = append(header, f.Column())
	}
	header = append(header, aggregate.CountColumn)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range t.Rows {
		rec := append(append([]string(nil), r.Key...), strconv.Itoa(r.Count))
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
