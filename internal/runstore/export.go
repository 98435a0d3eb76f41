// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ExportYAML writes the stored report of every institution to
// index/export.yaml and returns the path.
func (s *Store) ExportYAML(ctx context.Context) (string, error) {
	reports, err := s.exportReports(ctx)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, indexDir, "export.yaml")
	data, err := yaml.Marshal(reports)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the stored report of every institution to
// index/export.json and returns the path.
func (s *Store) ExportJSON(ctx context.Context) (string, error) {
	reports, err := s.exportReports(ctx)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, indexDir, "export.json")
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

func (s *Store) exportReports(ctx context.Context) ([]Report, error) {
	runs, err := s.Runs(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	reports := make([]Report, 0, len(runs))
	for _, run := range runs {
		rep, err := s.Load(ctx, run.Institution)
		if err != nil {
			return nil, fmt.Errorf("loading %s for export: %w", run.Institution, err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
