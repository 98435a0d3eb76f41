package types

import "strings"

// Institution identifies an institution that can be analyzed.
type Institution struct {
	// Name must match the institution name used in the merged export.
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// OpenAlexID is the OpenAlex institution ID (e.g. "I173911158").
	OpenAlexID string `json:"openalex_id" yaml:"openalex_id" mapstructure:"openalex_id"`
}

// NoSpaces returns the name with spaces removed, used for directory and
// file names (e.g. "IowaStateUniversity").
func (i Institution) NoSpaces() string {
	return strings.ReplaceAll(i.Name, " ", "")
}

// LookupConfig locates the funder-name lookup table.
type LookupConfig struct {
	// File is the CSV file mapping raw funder names to parent agencies.
	File string `json:"file" yaml:"file" mapstructure:"file"`

	// KeyColumn holds the raw funder name.
	KeyColumn string `json:"key_column" yaml:"key_column" mapstructure:"key_column"`

	// ValueColumn holds the canonical parent-agency name.
	ValueColumn string `json:"value_column" yaml:"value_column" mapstructure:"value_column"`
}

// AnalysisConfig holds settings for the pipeline run.
type AnalysisConfig struct {
	// Targets are the cumulative-share percentages for concentration
	// analysis (default [50]).
	Targets []float64 `json:"targets" yaml:"targets" mapstructure:"targets"`

	// TopJournals caps journal tables in the report (default 20).
	TopJournals int `json:"top_journals" yaml:"top_journals" mapstructure:"top_journals"`
}

// OutputConfig holds settings for persisted artifacts.
type OutputConfig struct {
	// Snapshots enables CSV snapshots under DataDir/<institution>/.
	Snapshots bool `json:"snapshots" yaml:"snapshots" mapstructure:"snapshots"`

	// StoreDir is the directory of the SQLite run store (index/profiler.db).
	StoreDir string `json:"store_dir" yaml:"store_dir" mapstructure:"store_dir"`
}

// ProfilerConfig groups all configuration for a profiler run.
type ProfilerConfig struct {
	// DataDir contains one directory per institution (data/<NoSpaces>/).
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	Lookup       LookupConfig   `json:"lookup" yaml:"lookup" mapstructure:"lookup"`
	Analysis     AnalysisConfig `json:"analysis" yaml:"analysis" mapstructure:"analysis"`
	Output       OutputConfig   `json:"output" yaml:"output" mapstructure:"output"`
	Institutions []Institution  `json:"institutions" yaml:"institutions" mapstructure:"institutions"`
}

// DefaultConfig returns the configuration used when no config file overrides it.
func DefaultConfig() ProfilerConfig {
	return ProfilerConfig{
		DataDir: "data",
		Lookup: LookupConfig{
			File:        "Dimensions_USFFGroup_mapped_to_RORs_and_2ndlevel_parent_onlytwocolumns.csv",
			KeyColumn:   "Name_no_parentheses",
			ValueColumn: "parentName",
		},
		Analysis: AnalysisConfig{
			Targets:     []float64{50},
			TopJournals: 20,
		},
		Output: OutputConfig{
			Snapshots: true,
			StoreDir:  "data",
		},
		Institutions: []Institution{
			{Name: "Iowa State University", OpenAlexID: "I173911158"},
			{Name: "Yale", OpenAlexID: "I32971472"},
			{Name: "MIT", OpenAlexID: "I63966007"},
			{Name: "test", OpenAlexID: "I173911158"},
		},
	}
}

// FindInstitution returns the configured institution with the given name.
func (c ProfilerConfig) FindInstitution(name string) (Institution, bool) {
	for _, inst := range c.Institutions {
		if inst.Name == name {
			return inst, true
		}
	}
	return Institution{}, false
}
