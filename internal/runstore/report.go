// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package runstore

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/publishing-profiler/internal/aggregate"
	"github.com/pdiddy/publishing-profiler/internal/pipeline"
	"github.com/pdiddy/publishing-profiler/pkg/types"
)

// Run identifies one stored pipeline run.
type Run struct {
	ID          string    `json:"id" yaml:"id"`
	Institution string    `json:"institution" yaml:"institution"`
	InputPath   string    `json:"input_path,omitempty" yaml:"input_path,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`

	// Records and Target count all loaded records and the yes_yes subset.
	Records int `json:"records" yaml:"records"`
	Target  int `json:"target" yaml:"target"`
}

// DrillDownReport holds the tables of an agency drill-down.
type DrillDownReport struct {
	Agency        string                      `json:"agency" yaml:"agency"`
	ByJournal     aggregate.Table             `json:"by_journal" yaml:"by_journal"`
	ByPublisher   aggregate.Table             `json:"by_publisher" yaml:"by_publisher"`
	Concentration []types.ConcentrationResult `json:"concentration" yaml:"concentration"`
}

// Report is the stored, record-free form of a pipeline result.
type Report struct {
	Run              Run                         `json:"run" yaml:"run"`
	Breakdowns       pipeline.Breakdowns         `json:"breakdowns" yaml:"breakdowns"`
	ByPublisher      aggregate.Table             `json:"by_publisher" yaml:"by_publisher"`
	ByJournal        aggregate.Table             `json:"by_journal" yaml:"by_journal"`
	ByAgency         aggregate.Table             `json:"by_agency" yaml:"by_agency"`
	JournalTotals    aggregate.Table             `json:"journal_totals" yaml:"journal_totals"`
	AgencyTotals     aggregate.Table             `json:"agency_totals" yaml:"agency_totals"`
	Concentration    []types.ConcentrationResult `json:"concentration" yaml:"concentration"`
	AllConcentration []types.ConcentrationResult `json:"all_concentration" yaml:"all_concentration"`
	DrillDown        *DrillDownReport            `json:"drill_down,omitempty" yaml:"drill_down,omitempty"`
}

// NewReport builds the report of res for institution.
func NewReport(institution, inputPath string, res *pipeline.Result) Report {
	rep := Report{
		Run: Run{
			Institution: institution,
			InputPath:   inputPath,
			Records:     len(res.Records),
			Target:      len(res.Target),
		},
		Breakdowns:       res.Breakdowns,
		ByPublisher:      res.ByPublisher,
		ByJournal:        res.ByJournal,
		ByAgency:         res.ByAgency,
		JournalTotals:    res.JournalTotals,
		AgencyTotals:     res.AgencyTotals,
		Concentration:    res.Concentration,
		AllConcentration: res.AllConcentration,
	}
	if dd := res.DrillDown; dd != nil {
		rep.DrillDown = &DrillDownReport{
			Agency:        dd.Agency,
			ByJournal:     dd.ByJournal,
			ByPublisher:   dd.ByPublisher,
			Concentration: dd.Concentration,
		}
	}
	return rep
}

type namedTable struct {
	name  string
	table *aggregate.Table
}

// tables maps storage names to the report's tables.
func (r *Report) tables() []namedTable {
	nts := []namedTable{
		{"corresponding_by_year", &r.Breakdowns.Corresponding},
		{"usff_by_year", &r.Breakdowns.USFF},
		{"category_by_year", &r.Breakdowns.Category},
		{"by_publisher", &r.ByPublisher},
		{"by_journal", &r.ByJournal},
		{"by_agency", &r.ByAgency},
		{"journal_totals", &r.JournalTotals},
		{"agency_totals", &r.AgencyTotals},
	}
	if r.DrillDown != nil {
		nts = append(nts,
			namedTable{"drill_down_by_journal", &r.DrillDown.ByJournal},
			namedTable{"drill_down_by_publisher", &r.DrillDown.ByPublisher},
		)
	}
	return nts
}

type scopedResults struct {
	scope   string
	results *[]types.ConcentrationResult
}

func (r *Report) scopes() []scopedResults {
	scs := []scopedResults{
		{ScopeTarget, &r.Concentration},
		{ScopeAll, &r.AllConcentration},
	}
	if r.DrillDown != nil {
		scs = append(scs, scopedResults{ScopeDrillDown, &r.DrillDown.Concentration})
	}
	return scs
}

// FormatTable writes a human-readable report to w. top limits the journal
// list; zero or less shows every journal.
func FormatTable(rep Report, w io.Writer, top int) {
	fmt.Fprintf(w, "%s: %d records, %d corresponding-authored and federally funded\n",
		rep.Run.Institution, rep.Run.Records, rep.Run.Target)
	if !rep.Run.CreatedAt.IsZero() {
		fmt.Fprintf(w, "run %s at %s\n", rep.Run.ID, rep.Run.CreatedAt.Format(time.RFC3339))
	}

	fmt.Fprintln(w, "\nCategory by year (is_corresponding_is_USFF)")
	formatShares(w, rep.Breakdowns.Category)

	fmt.Fprintln(w, "\nPublisher concentration (yes_yes)")
	formatConcentration(w, rep.Concentration)

	fmt.Fprintln(w, "\nPublisher concentration (all records)")
	formatConcentration(w, rep.AllConcentration)

	if top > 0 {
		fmt.Fprintf(w, "\nTop %d journals\n", top)
	} else {
		fmt.Fprintln(w, "\nJournals")
	}
	formatTotals(w, rep.JournalTotals.Top(top), 60)

	fmt.Fprintln(w, "\nParent agencies")
	formatTotals(w, rep.AgencyTotals, 60)

	if dd := rep.DrillDown; dd != nil {
		fmt.Fprintf(w, "\nJournals acknowledging %s\n", dd.Agency)
		if totals, err := dd.ByJournal.Totals(aggregate.FieldSourceTitle); err == nil {
			formatTotals(w, totals.Top(top), 60)
		}
		fmt.Fprintf(w, "\nPublisher concentration (%s)\n", dd.Agency)
		formatConcentration(w, dd.Concentration)
	}
}

func formatShares(w io.Writer, t aggregate.Table) {
	shares, err := t.Shares(aggregate.FieldYear)
	if err != nil || len(shares) == 0 {
		fmt.Fprintln(w, "No records.")
		return
	}
	fmt.Fprintf(w, "%-6s  %-16s  %8s  %7s\n", "Year", "Category", "DOIs", "Percent")
	fmt.Fprintln(w, strings.Repeat("-", 44))
	for _, s := range shares {
		fmt.Fprintf(w, "%-6s  %-16s  %8d  %6.1f%%\n", s.Key[0], s.Key[1], s.Count, s.Percent)
	}
}

func formatConcentration(w io.Writer, results []types.ConcentrationResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No years with identifiers.")
		return
	}
	fmt.Fprintf(w, "%-6s  %7s  %10s  %13s\n", "Year", "Target", "Publishers", "Publishers to")
	fmt.Fprintln(w, strings.Repeat("-", 42))
	for _, c := range results {
		fmt.Fprintf(w, "%-6d  %6.1f%%  %10d  %13d\n", c.Year, c.TargetPercent, c.NumGroups, c.GroupsNeeded)
	}
}

func formatTotals(w io.Writer, t aggregate.Table, width int) {
	if len(t.Rows) == 0 {
		fmt.Fprintln(w, "None.")
		return
	}
	for i, r := range t.Rows {
		fmt.Fprintf(w, "%4d  %-*s  %6d\n", i+1, width, truncate(r.Key[0], width), r.Count)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// FormatJSON writes rep as indented JSON.
func FormatJSON(rep Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// FormatYAML writes rep as YAML.
func FormatYAML(rep Report, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(rep)
}
