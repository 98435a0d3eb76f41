// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/publishing-profiler/internal/dataset"
	"github.com/pdiddy/publishing-profiler/internal/funder"
	"github.com/pdiddy/publishing-profiler/internal/snapshot"
	"github.com/pdiddy/publishing-profiler/pkg/types"
)

const mergedCSV = "DOI,PubYear,Publisher,Source title,Funder,is_corresponding,is_USFF\n" +
	"10.1/a,2022,Elsevier,Cell,NSF,yes,yes\n" +
	"10.1/b,2022,Elsevier,Cell,National Cancer Institute,yes,yes\n" +
	"10.1/c,2022,Wiley,Ecology,NSF,yes,yes\n" +
	"10.1/d,2023,Springer,Nature,,no,yes\n"

func testConfig(t *testing.T) types.ProfilerConfig {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Output.StoreDir = t.TempDir()
	cfg.Institutions = []types.Institution{{Name: "Yale", OpenAlexID: "I32971472"}}

	dir := filepath.Join(cfg.DataDir, "Yale")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Yale_merged.csv"), []byte(mergedCSV), 0o644))
	return cfg
}

func TestProfileInstitution(t *testing.T) {
	cfg := testConfig(t)
	lookup := funder.NewTable(map[string]string{"NSF": "NSF", "National Cancer Institute": "NIH"})

	rep, err := profileInstitution(context.Background(), cfg, cfg.Institutions[0], lookup,
		runOptions{targets: []float64{50}, agency: "NSF", snapshots: true})
	require.NoError(t, err)

	assert.Equal(t, "Yale", rep.Run.Institution)
	assert.Equal(t, 4, rep.Run.Records)
	assert.Equal(t, 3, rep.Run.Target)
	require.Len(t, rep.Concentration, 1)
	assert.Equal(t, 1, rep.Concentration[0].GroupsNeeded)
	require.NotNil(t, rep.DrillDown)
	assert.Equal(t, "NSF", rep.DrillDown.Agency)

	_, err = os.Stat(filepath.Join(cfg.DataDir, "Yale", "Yale"+snapshot.SuffixByAgency))
	assert.NoError(t, err)
}

func TestProfileInstitutionNoInput(t *testing.T) {
	cfg := testConfig(t)
	_, err := profileInstitution(context.Background(), cfg, types.Institution{Name: "MIT"}, funder.NewTable(nil), runOptions{})
	assert.ErrorIs(t, err, dataset.ErrNoInput)
}

func TestProfileAllKeepsOrder(t *testing.T) {
	cfg := testConfig(t)
	mit := filepath.Join(cfg.DataDir, "MIT")
	require.NoError(t, os.MkdirAll(mit, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mit, "MIT_merged.csv"), []byte(mergedCSV), 0o644))
	cfg.Institutions = append(cfg.Institutions, types.Institution{Name: "MIT", OpenAlexID: "I63966007"})

	reports, err := profileAll(context.Background(), cfg, cfg.Institutions, funder.NewTable(nil), runOptions{targets: []float64{50}})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "Yale", reports[0].Run.Institution)
	assert.Equal(t, "MIT", reports[1].Run.Institution)
}

func TestListInstitutions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Institutions = append(cfg.Institutions, types.Institution{Name: "Iowa State University", OpenAlexID: "I173911158"})

	var buf bytes.Buffer
	listInstitutions(cfg, &buf)
	out := buf.String()
	assert.Contains(t, out, "Yale_merged.csv")
	assert.Contains(t, out, "Iowa State University")
	assert.Contains(t, out, "(none)")
}
