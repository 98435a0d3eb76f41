// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package snapshot

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/publishing-profiler/internal/funder"
	"github.com/pdiddy/publishing-profiler/internal/pipeline"
	"github.com/pdiddy/publishing-profiler/pkg/types"
)

var testColumns = []string{"DOI", "Title", "PubYear", "Publisher", "Source title", "Funder", "is_corresponding", "is_USFF"}

func testResult(t *testing.T, agency string) *pipeline.Result {
	t.Helper()
	lookup := funder.NewTable(map[string]string{
		"NSF":                       "NSF",
		"NIH":                       "NIH",
		"National Cancer Institute": "NIH",
	})
	records := []types.PublicationRecord{
		{DOI: "10.1/a", Year: 2022, Publisher: "Elsevier", SourceTitle: "Cell", Funder: "NSF; National Cancer Institute; NIH",
			Corresponding: types.FlagYes, USFF: types.FlagYes, Extra: map[string]string{"Title": "Alpha"}},
		{DOI: "10.1/b", Year: 2022, Publisher: "Wiley", SourceTitle: "Ecology",
			Corresponding: types.FlagYes, USFF: types.FlagYes},
		{DOI: "10.1/c", Year: 2023, Publisher: "Springer", SourceTitle: "Nature", Funder: "NSF",
			Corresponding: types.FlagNo, USFF: types.FlagYes},
	}
	res, err := pipeline.Run(records, lookup, pipeline.Options{DrillDownAgency: agency})
	require.NoError(t, err)
	return res
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	paths, err := Write(testResult(t, ""), Options{Dir: dir, Prefix: "Yale", Columns: testColumns})
	require.NoError(t, err)
	require.Len(t, paths, 6)
	assert.Equal(t, filepath.Join(dir, "Yale_yesyes.csv"), paths[0])

	target := readCSV(t, paths[0])
	assert.Equal(t, append(append([]string(nil), testColumns...), "is_corresponding_is_USFF", "is_USFF_is_corresponding"), target[0])
	require.Len(t, target, 3)
	assert.Equal(t, []string{"10.1/a", "Alpha", "2022", "Elsevier", "Cell", "NSF; National Cancer Institute; NIH", "yes", "yes", "yes_yes", "yes_yes"}, target[1])

	byPublisher := readCSV(t, filepath.Join(dir, "Yale"+SuffixByPublisher))
	assert.Equal(t, [][]string{
		{"Publisher", "PubYear", "DOI"},
		{"Elsevier", "2022", "1"},
		{"Wiley", "2022", "1"},
	}, byPublisher)

	byJournal := readCSV(t, filepath.Join(dir, "Yale"+SuffixByJournal))
	assert.Equal(t, []string{"Source title", "PubYear", "Publisher", "DOI"}, byJournal[0])

	dups := readCSV(t, filepath.Join(dir, "Yale"+SuffixWithDuplicates))
	n := len(dups[0])
	assert.Equal(t, []string{"ParentAgencyWithDuplicates", "ParentAgency"}, dups[0][n-2:])
	assert.Equal(t, []string{"NSF; NIH; NIH", "NIH; NSF"}, dups[1][n-2:])
	assert.Equal(t, []string{"", ""}, dups[2][n-2:])

	exploded := readCSV(t, filepath.Join(dir, "Yale"+SuffixExploded))
	require.Len(t, exploded, 4, "header, two agencies of a, one empty row of b")
	assert.Equal(t, "NIH", exploded[1][n-1])
	assert.Equal(t, "NSF", exploded[2][n-1])
	assert.Equal(t, "", exploded[3][n-1])

	byAgency := readCSV(t, filepath.Join(dir, "Yale"+SuffixByAgency))
	assert.Equal(t, [][]string{
		{"ParentAgency", "PubYear", "DOI"},
		{"NIH", "2022", "1"},
		{"NSF", "2022", "1"},
	}, byAgency)

	_, err = os.Stat(filepath.Join(dir, "Yale"+SuffixDrillDownByJournal))
	assert.True(t, os.IsNotExist(err), "no drill-down file without an agency")

	leftovers, err := filepath.Glob(filepath.Join(dir, ".snapshot-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWriteDrillDown(t *testing.T) {
	dir := t.TempDir()
	paths, err := Write(testResult(t, "NSF"), Options{Dir: dir, Prefix: "MIT", Columns: testColumns})
	require.NoError(t, err)
	require.Len(t, paths, 7)

	rows := readCSV(t, filepath.Join(dir, "MIT"+SuffixDrillDownByJournal))
	assert.Equal(t, [][]string{
		{"Source title", "PubYear", "Publisher", "DOI"},
		{"Cell", "2022", "Elsevier", "1"},
	}, rows)
}

func TestWriteEmptyPrefix(t *testing.T) {
	_, err := Write(testResult(t, ""), Options{Dir: t.TempDir()})
	assert.Error(t, err)
}

func TestWriteFailureLeavesNoFiles(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "blocked")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := Write(testResult(t, ""), Options{Dir: filepath.Join(blocker, "sub"), Prefix: "Yale"})
	require.Error(t, err)

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecordColumnsDefaults(t *testing.T) {
	cols := recordColumns(nil)
	assert.Equal(t, "DOI", cols[0])
	assert.Contains(t, cols, ColumnUSFFCorresponding)

	// Inputs already carrying the derived columns keep their position.
	in := []string{"DOI", "is_USFF_is_corresponding", "is_corresponding_is_USFF"}
	assert.Equal(t, in, recordColumns(in))
}
