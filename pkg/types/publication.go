// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the publishing-profiler pipeline.
// Implements: publication records and their derived classification fields,
// aggregate rows, concentration results, and run configuration.
package types

// Flag is a tri-state authorship or funding indicator.
type Flag string

const (
	FlagYes     Flag = "yes"
	FlagNo      Flag = "no"
	FlagUnknown Flag = "unknown"
)

// Flags lists the accepted flag values in display order.
var Flags = []Flag{FlagYes, FlagNo, FlagUnknown}

// Category is the combination of two flags joined with CategorySeparator,
// e.g. "yes_no".
type Category string

// CategorySeparator joins the two flags of a Category.
const CategorySeparator = "_"

// CategoryYesYes is the category of the target subset: corresponding-authored
// by the institution and US federally funded.
const CategoryYesYes Category = "yes_yes"

// NewCategory joins two flags in the given order.
func NewCategory(first, second Flag) Category {
	return Category(string(first) + CategorySeparator + string(second))
}

// Classification holds the two combined categories derived from a record's
// flags. Both orderings are kept because presentation consumes each of them.
type Classification struct {
	// CorrespondingUSFF is the canonical (corresponding, funding) category.
	CorrespondingUSFF Category `json:"is_corresponding_is_usff" yaml:"is_corresponding_is_usff"`

	// USFFCorresponding is the reversed (funding, corresponding) category.
	USFFCorresponding Category `json:"is_usff_is_corresponding" yaml:"is_usff_is_corresponding"`
}

// PublicationRecord is one scholarly document from the merged input table.
type PublicationRecord struct {
	// DOI is the unique identifier. Empty means absent; such records are
	// never counted by identifier-keyed aggregations.
	DOI string `json:"doi" yaml:"doi"`

	// Year is the publication year. Zero means absent.
	Year int `json:"pub_year" yaml:"pub_year"`

	// Publisher is the publisher name.
	Publisher string `json:"publisher" yaml:"publisher"`

	// SourceTitle is the journal or source title.
	SourceTitle string `json:"source_title" yaml:"source_title"`

	// Funder is the raw "; "-delimited funder list. Empty means absent.
	Funder string `json:"funder,omitempty" yaml:"funder,omitempty"`

	// Corresponding reports whether the corresponding author is affiliated
	// with the institution under analysis.
	Corresponding Flag `json:"is_corresponding" yaml:"is_corresponding"`

	// USFF reports whether the record acknowledges US federal funding.
	USFF Flag `json:"is_usff" yaml:"is_usff"`

	// Extra carries descriptive columns (title, authors, ISSN, open access)
	// untouched for presentation.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`

	// Classification is set by the classifier.
	Classification Classification `json:"classification" yaml:"classification"`

	// ParentAgenciesWithDuplicates is the normalized funder list before dedup.
	// Nil when the record has no funder string.
	ParentAgenciesWithDuplicates []string `json:"parent_agencies_with_duplicates,omitempty" yaml:"parent_agencies_with_duplicates,omitempty"`

	// ParentAgencies is the deduplicated parent-agency list. Nil when the
	// record has no funder string.
	ParentAgencies []string `json:"parent_agencies,omitempty" yaml:"parent_agencies,omitempty"`
}

// Dataset is a loaded input table. Columns preserves the input column order
// so snapshots can write records back with the same layout.
type Dataset struct {
	Columns []string
	Records []PublicationRecord
}

// AggregateRow is one group of a grouping: its key values, in the order of
// the grouping fields, and the number of identifiers in the group.
type AggregateRow struct {
	Key   []string `json:"key" yaml:"key"`
	Count int      `json:"count" yaml:"count"`
}

// ConcentrationResult is the number of top-ranked groups needed to reach a
// target share of one year's output.
type ConcentrationResult struct {
	Year int `json:"year" yaml:"year"`

	// TargetPercent is the cumulative share sought, in (0, 100].
	TargetPercent float64 `json:"target_percent" yaml:"target_percent"`

	// NumGroups is the number of distinct groups (publishers) in the year.
	NumGroups int `json:"num_groups" yaml:"num_groups"`

	// GroupsNeeded is the smallest number of top groups whose cumulative
	// count reaches TargetPercent of the year's total.
	GroupsNeeded int `json:"groups_needed" yaml:"groups_needed"`
}
