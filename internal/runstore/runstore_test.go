// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package runstore

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/publishing-profiler/internal/funder"
	"github.com/pdiddy/publishing-profiler/internal/pipeline"
	"github.com/pdiddy/publishing-profiler/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testReport(t *testing.T, institution, agency string) Report {
	t.Helper()
	lookup := funder.NewTable(map[string]string{"NSF": "NSF", "NIH": "NIH"})
	records := []types.PublicationRecord{
		{DOI: "10.1/a", Year: 2022, Publisher: "Elsevier", SourceTitle: "Cell", Funder: "NSF; NIH",
			Corresponding: types.FlagYes, USFF: types.FlagYes},
		{DOI: "10.1/b", Year: 2022, Publisher: "Elsevier", SourceTitle: "Cell", Funder: "NSF",
			Corresponding: types.FlagYes, USFF: types.FlagYes},
		{DOI: "10.1/c", Year: 2023, Publisher: "Wiley", SourceTitle: "Ecology", Funder: "NIH",
			Corresponding: types.FlagYes, USFF: types.FlagYes},
		{DOI: "10.1/d", Year: 2023, Publisher: "Springer", SourceTitle: "Nature",
			Corresponding: types.FlagNo, USFF: types.FlagUnknown},
	}
	res, err := pipeline.Run(records, lookup, pipeline.Options{Targets: []float64{50, 90}, DrillDownAgency: agency})
	require.NoError(t, err)
	return NewReport(institution, "data/"+institution+"/merged.csv", res)
}

// sameTables ignores nil versus empty row slices, which SQLite cannot tell apart.
var sameTables = cmpopts.EquateEmpty()

func TestReplaceAndLoad(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	saved, err := store.Replace(ctx, []Report{testReport(t, "Yale", "NIH")})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.NotEmpty(t, saved[0].Run.ID)
	assert.False(t, saved[0].Run.CreatedAt.IsZero())

	loaded, err := store.Load(ctx, "Yale")
	require.NoError(t, err)
	assert.True(t, saved[0].Run.CreatedAt.Equal(loaded.Run.CreatedAt))

	loaded.Run.CreatedAt = saved[0].Run.CreatedAt
	if diff := cmp.Diff(saved[0], loaded, sameTables); diff != "" {
		t.Errorf("report mismatch (-saved +loaded):\n%s", diff)
	}

	assert.Equal(t, 4, loaded.Run.Records)
	assert.Equal(t, 3, loaded.Run.Target)
	require.NotNil(t, loaded.DrillDown)
	assert.Equal(t, "NIH", loaded.DrillDown.Agency)
}

func TestReplaceDiscardsEarlierRuns(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first, err := store.Replace(ctx, []Report{
		testReport(t, "MIT", "NSF"),
		testReport(t, "Yale", ""),
	})
	require.NoError(t, err)

	store.now = func() time.Time { return first[0].Run.CreatedAt.Add(time.Minute) }
	second, err := store.Replace(ctx, []Report{testReport(t, "MIT", "")})
	require.NoError(t, err)
	assert.NotEqual(t, first[0].Run.ID, second[0].Run.ID)

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "MIT", runs[0].Institution)
	assert.Equal(t, second[0].Run.ID, runs[0].ID)

	loaded, err := store.Load(ctx, "MIT")
	require.NoError(t, err)
	assert.Nil(t, loaded.DrillDown, "drill-down of the replaced run is gone")

	_, err = store.Load(ctx, "Yale")
	assert.ErrorIs(t, err, ErrNoRun)

	var orphans int
	require.NoError(t, store.db.QueryRow(
		`SELECT count(*) FROM aggregate_rows WHERE run_id = ?`, first[0].Run.ID,
	).Scan(&orphans))
	assert.Zero(t, orphans)
}

func TestReplaceFailureKeepsPreviousRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_, err := store.Replace(ctx, []Report{testReport(t, "Yale", "")})
	require.NoError(t, err)

	_, err = store.Replace(ctx, []Report{testReport(t, "MIT", ""), testReport(t, "MIT", "")})
	require.Error(t, err)

	_, err = store.Load(ctx, "Yale")
	assert.NoError(t, err)
}

func TestLoadNoRun(t *testing.T) {
	store := testStore(t)
	_, err := store.Load(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, ErrNoRun)
}

func TestReplaceRequiresInstitution(t *testing.T) {
	store := testStore(t)
	_, err := store.Replace(context.Background(), []Report{{}})
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	_, err := store.Replace(ctx, []Report{
		testReport(t, "Yale", ""),
		testReport(t, "Iowa State University", ""),
	})
	require.NoError(t, err)

	yamlPath, err := store.ExportYAML(ctx)
	require.NoError(t, err)
	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	var fromYAML []Report
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	require.Len(t, fromYAML, 2)
	assert.Equal(t, "Iowa State University", fromYAML[0].Run.Institution)

	jsonPath, err := store.ExportJSON(ctx)
	require.NoError(t, err)
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	var fromJSON []Report
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	require.Len(t, fromJSON, 2)
	assert.Equal(t, "Yale", fromJSON[1].Run.Institution)
	assert.Equal(t, fromJSON[1].Concentration, fromYAML[1].Concentration)
}

func TestFormatTable(t *testing.T) {
	rep := testReport(t, "Yale", "NSF")

	var buf bytes.Buffer
	FormatTable(rep, &buf, 20)
	out := buf.String()

	assert.Contains(t, out, "Yale: 4 records, 3 corresponding-authored")
	assert.Contains(t, out, "Top 20 journals")
	assert.Contains(t, out, "Cell")
	assert.Contains(t, out, "Journals acknowledging NSF")
	assert.Contains(t, out, "yes_yes")
}

func TestFormatJSON(t *testing.T) {
	rep := testReport(t, "Yale", "")

	var buf bytes.Buffer
	require.NoError(t, FormatJSON(rep, &buf))

	var got Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	if diff := cmp.Diff(rep, got, sameTables); diff != "" {
		t.Errorf("JSON round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatYAML(testReport(t, "Yale", ""), &buf))
	assert.Contains(t, buf.String(), "institution: Yale")
}
