// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the full analysis for one institution's records:
// classification, target-subset selection, funder normalization,
// aggregation, and publisher concentration.
//
// Run either returns a complete Result or an error; it never returns a
// partially filled Result.
package pipeline

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/publishing-profiler/internal/aggregate"
	"github.com/pdiddy/publishing-profiler/internal/classify"
	"github.com/pdiddy/publishing-profiler/internal/concentration"
	"github.com/pdiddy/publishing-profiler/internal/funder"
	"github.com/pdiddy/publishing-profiler/pkg/types"
)

// ErrUnknownAgency is returned when a drill-down names an agency that no
// target-subset record carries.
var ErrUnknownAgency = errors.New("agency not found in target subset")

// DefaultTargets are the concentration targets used when none are given.
var DefaultTargets = []float64{50}

// Options configures a run.
type Options struct {
	// Targets are the cumulative-share percentages for concentration.
	Targets []float64

	// DrillDownAgency, when set, adds a drill-down for that parent agency.
	DrillDownAgency string

	// Logger receives diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// Breakdowns are per-year category tables over all records.
type Breakdowns struct {
	// Corresponding is keyed by (year, corresponding).
	Corresponding aggregate.Table `json:"corresponding" yaml:"corresponding"`

	// USFF is keyed by (year, usff).
	USFF aggregate.Table `json:"usff" yaml:"usff"`

	// Category is keyed by (year, category).
	Category aggregate.Table `json:"category" yaml:"category"`
}

// DrillDown holds the target-subset records and tables for one agency.
type DrillDown struct {
	Agency        string                      `json:"agency" yaml:"agency"`
	Records       []types.PublicationRecord   `json:"records" yaml:"records"`
	ByJournal     aggregate.Table             `json:"by_journal" yaml:"by_journal"`
	ByPublisher   aggregate.Table             `json:"by_publisher" yaml:"by_publisher"`
	Concentration []types.ConcentrationResult `json:"concentration" yaml:"concentration"`
}

// Result holds every table produced by one run.
type Result struct {
	// Records are all input records with Classification set.
	Records []types.PublicationRecord `json:"records" yaml:"records"`

	// Target is the yes_yes subset with parent agencies set.
	Target []types.PublicationRecord `json:"target" yaml:"target"`

	Breakdowns Breakdowns `json:"breakdowns" yaml:"breakdowns"`

	// ByPublisher is keyed by (publisher, year) over the target subset.
	ByPublisher aggregate.Table `json:"by_publisher" yaml:"by_publisher"`

	// ByJournal is keyed by (source_title, year, publisher) over the target subset.
	ByJournal aggregate.Table `json:"by_journal" yaml:"by_journal"`

	// ByAgency is keyed by (parent_agency, year) over the exploded target
	// subset. Records acknowledging several agencies are counted once per
	// agency, so its total can exceed the number of distinct DOIs.
	ByAgency aggregate.Table `json:"by_agency" yaml:"by_agency"`

	// JournalTotals and AgencyTotals sum the tables above across years.
	JournalTotals aggregate.Table `json:"journal_totals" yaml:"journal_totals"`
	AgencyTotals  aggregate.Table `json:"agency_totals" yaml:"agency_totals"`

	// Concentration is computed on the target subset's ByPublisher table.
	Concentration []types.ConcentrationResult `json:"concentration" yaml:"concentration"`

	// AllConcentration is computed on the (publisher, year) distribution of
	// all records.
	AllConcentration []types.ConcentrationResult `json:"all_concentration" yaml:"all_concentration"`

	// DrillDown is set when Options.DrillDownAgency is given.
	DrillDown *DrillDown `json:"drill_down,omitempty" yaml:"drill_down,omitempty"`

	targets []float64
	logger  *zap.Logger
}

// ExplodedRow is one (record, agency) pair of the exploded target subset.
type ExplodedRow struct {
	Record types.PublicationRecord
	Agency string
}

// Run executes the pipeline over records using lookup for funder
// normalization.
func Run(records []types.PublicationRecord, lookup *funder.Table, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	targets := opts.Targets
	if len(targets) == 0 {
		targets = DefaultTargets
	}
	if lookup == nil {
		lookup = funder.NewTable(nil)
	}

	classified, err := classify.Enrich(records)
	if err != nil {
		return nil, err
	}

	target := selectTarget(classified)
	target = attachAgencies(target, lookup, logger)
	logger.Info("classified records",
		zap.Int("records", len(classified)),
		zap.Int("target", len(target)))

	res := &Result{
		Records: classified,
		Target:  target,
		targets: targets,
		logger:  logger,
	}

	if res.Breakdowns, err = breakdowns(classified, logger); err != nil {
		return nil, err
	}

	if res.ByPublisher, err = group("by publisher", target, logger, aggregate.FieldPublisher, aggregate.FieldYear); err != nil {
		return nil, err
	}
	if res.ByJournal, err = group("by journal", target, logger, aggregate.FieldSourceTitle, aggregate.FieldYear, aggregate.FieldPublisher); err != nil {
		return nil, err
	}
	if res.ByAgency, err = group("by agency", target, logger, aggregate.FieldParentAgency, aggregate.FieldYear); err != nil {
		return nil, err
	}
	if res.JournalTotals, err = res.ByJournal.Totals(aggregate.FieldSourceTitle); err != nil {
		return nil, err
	}
	if res.AgencyTotals, err = res.ByAgency.Totals(aggregate.FieldParentAgency); err != nil {
		return nil, err
	}

	if res.Concentration, err = concentration.ByYear(countedYears(res.ByPublisher, logger), aggregate.FieldPublisher, targets); err != nil {
		return nil, fmt.Errorf("target concentration: %w", err)
	}

	allByPublisher, err := group("all by publisher", classified, logger, aggregate.FieldPublisher, aggregate.FieldYear)
	if err != nil {
		return nil, err
	}
	if res.AllConcentration, err = concentration.ByYear(countedYears(allByPublisher, logger), aggregate.FieldPublisher, targets); err != nil {
		return nil, fmt.Errorf("all-records concentration: %w", err)
	}

	if opts.DrillDownAgency != "" {
		dd, err := res.ForAgency(opts.DrillDownAgency, targets)
		if err != nil {
			return nil, err
		}
		res.DrillDown = dd
	}

	return res, nil
}

func selectTarget(records []types.PublicationRecord) []types.PublicationRecord {
	var target []types.PublicationRecord
	for _, r := range records {
		if classify.IsTarget(r) {
			target = append(target, r)
		}
	}
	return target
}

// attachAgencies sets both agency lists on each record that has a funder
// string. Records without one keep nil lists.
func attachAgencies(records []types.PublicationRecord, lookup *funder.Table, logger *zap.Logger) []types.PublicationRecord {
	out := make([]types.PublicationRecord, len(records))
	unmatched := 0
	for i, r := range records {
		if r.Funder != "" {
			r.ParentAgenciesWithDuplicates = lookup.Normalize(r.Funder)
			r.ParentAgencies = funder.Dedupe(r.ParentAgenciesWithDuplicates)
			if missing := lookup.Unmatched(r.Funder); len(missing) > 0 {
				unmatched += len(missing)
				logger.Debug("unmatched funder names",
					zap.String("doi", r.DOI),
					zap.Strings("names", missing))
			}
		}
		out[i] = r
	}
	if unmatched > 0 {
		logger.Info("funder names without a parent agency", zap.Int("count", unmatched))
	}
	return out
}

func group(name string, records []types.PublicationRecord, logger *zap.Logger, fields ...aggregate.Field) (aggregate.Table, error) {
	t, err := aggregate.GroupCount(records, fields...)
	if err != nil {
		return aggregate.Table{}, fmt.Errorf("aggregating %s: %w", name, err)
	}
	if t.Excluded > 0 {
		logger.Info("records excluded from aggregation",
			zap.String("table", name),
			zap.Int("excluded", t.Excluded))
	}
	return t, nil
}

// countedYears drops the rows of years whose identifier total is zero; such
// years have records but nothing to rank.
func countedYears(t aggregate.Table, logger *zap.Logger) aggregate.Table {
	yi := t.Index(aggregate.FieldYear)
	totals := make(map[string]int)
	for _, r := range t.Rows {
		totals[r.Key[yi]] += r.Count
	}
	out := aggregate.Table{Fields: t.Fields, Excluded: t.Excluded}
	for _, r := range t.Rows {
		if totals[r.Key[yi]] > 0 {
			out.Rows = append(out.Rows, r)
		}
	}
	for y, total := range totals {
		if total == 0 {
			logger.Info("year without identifiers skipped for concentration", zap.String("year", y))
		}
	}
	return out
}

func breakdowns(records []types.PublicationRecord, logger *zap.Logger) (Breakdowns, error) {
	var b Breakdowns
	var err error
	if b.Corresponding, err = group("corresponding by year", records, logger, aggregate.FieldYear, aggregate.FieldCorresponding); err != nil {
		return b, err
	}
	if b.USFF, err = group("usff by year", records, logger, aggregate.FieldYear, aggregate.FieldUSFF); err != nil {
		return b, err
	}
	if b.Category, err = group("category by year", records, logger, aggregate.FieldYear, aggregate.FieldCategory); err != nil {
		return b, err
	}
	return b, nil
}

// Exploded returns one row per (target record, parent agency) pair, in
// record order. Records without agencies yield one row with an empty agency
// so the DOI-level table keeps every record.
func (r *Result) Exploded() []ExplodedRow {
	var rows []ExplodedRow
	for _, rec := range r.Target {
		if len(rec.ParentAgencies) == 0 {
			rows = append(rows, ExplodedRow{Record: rec})
			continue
		}
		for _, a := range rec.ParentAgencies {
			rows = append(rows, ExplodedRow{Record: rec, Agency: a})
		}
	}
	return rows
}

// Agencies returns the agencies found in the target subset, most
// acknowledged first.
func (r *Result) Agencies() []string {
	agencies := make([]string, len(r.AgencyTotals.Rows))
	for i, row := range r.AgencyTotals.Rows {
		agencies[i] = row.Key[0]
	}
	return agencies
}

// ForAgency restricts the target subset to records acknowledging agency and
// repeats the journal and publisher analysis on it. Nil targets use the
// run's targets.
func (r *Result) ForAgency(agency string, targets []float64) (*DrillDown, error) {
	if len(targets) == 0 {
		targets = r.targets
	}
	logger := r.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var records []types.PublicationRecord
	for _, rec := range r.Target {
		for _, a := range rec.ParentAgencies {
			if a == agency {
				records = append(records, rec)
				break
			}
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgency, agency)
	}

	dd := &DrillDown{Agency: agency, Records: records}
	var err error
	if dd.ByJournal, err = group("drill-down by journal", records, logger, aggregate.FieldSourceTitle, aggregate.FieldYear, aggregate.FieldPublisher); err != nil {
		return nil, err
	}
	if dd.ByPublisher, err = group("drill-down by publisher", records, logger, aggregate.FieldPublisher, aggregate.FieldYear); err != nil {
		return nil, err
	}
	if dd.Concentration, err = concentration.ByYear(countedYears(dd.ByPublisher, logger), aggregate.FieldPublisher, targets); err != nil {
		return nil, fmt.Errorf("drill-down concentration for %s: %w", agency, err)
	}
	return dd, nil
}
