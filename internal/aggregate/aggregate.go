// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate groups classified publication records by key tuples and
// counts identifiers per group.
//
// Grouping by parent agency explodes records: a record acknowledging N
// distinct agencies contributes to N groups. Totals over an agency grouping
// therefore exceed the number of distinct DOIs whenever multi-funder
// records exist.
package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/publishing-profiler/pkg/types"
)

// ErrInvalidKey is returned for an empty, oversized, duplicated, or unknown
// key tuple.
var ErrInvalidKey = errors.New("invalid grouping key")

// MaxKeyFields is the largest supported key tuple.
const MaxKeyFields = 3

// Field names a groupable record attribute.
type Field string

const (
	FieldYear          Field = "year"
	FieldPublisher     Field = "publisher"
	FieldSourceTitle   Field = "source_title"
	FieldParentAgency  Field = "parent_agency"
	FieldCategory      Field = "category"
	FieldCorresponding Field = "corresponding"
	FieldUSFF          Field = "usff"
)

// columns maps each field to its column name in the merged export and in
// persisted snapshots.
var columns = map[Field]string{
	FieldYear:          "PubYear",
	FieldPublisher:     "Publisher",
	FieldSourceTitle:   "Source title",
	FieldParentAgency:  "ParentAgency",
	FieldCategory:      "is_corresponding_is_USFF",
	FieldCorresponding: "is_corresponding",
	FieldUSFF:          "is_USFF",
}

// CountColumn is the column name of the identifier count.
const CountColumn = "DOI"

// Column returns the snapshot column name for f.
func (f Field) Column() string {
	return columns[f]
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	_, ok := columns[f]
	return ok
}

// ParseField converts a field name such as "publisher" to a Field.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown field %q", ErrInvalidKey, s)
	}
	return f, nil
}

// values returns the key values a record contributes for f. An empty result
// means the record lacks the field.
func (f Field) values(r types.PublicationRecord) []string {
	var v string
	switch f {
	case FieldYear:
		if r.Year != 0 {
			v = strconv.Itoa(r.Year)
		}
	case FieldPublisher:
		v = r.Publisher
	case FieldSourceTitle:
		v = r.SourceTitle
	case FieldCategory:
		v = string(r.Classification.CorrespondingUSFF)
	case FieldCorresponding:
		v = string(r.Corresponding)
	case FieldUSFF:
		v = string(r.USFF)
	case FieldParentAgency:
		return distinct(r.ParentAgencies)
	}
	if v == "" {
		return nil
	}
	return []string{v}
}

func distinct(names []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Table is the result of one grouping.
type Table struct {
	// Fields is the key tuple; each row's Key follows this order.
	Fields []Field `json:"fields" yaml:"fields"`

	// Rows are sorted by count descending, then key ascending.
	Rows []types.AggregateRow `json:"rows" yaml:"rows"`

	// Excluded counts records skipped because a key field was missing.
	Excluded int `json:"excluded" yaml:"excluded"`
}

func validateFields(fields []Field) error {
	if len(fields) == 0 || len(fields) > MaxKeyFields {
		return fmt.Errorf("%w: need 1 to %d fields, got %d", ErrInvalidKey, MaxKeyFields, len(fields))
	}
	seen := make(map[Field]bool, len(fields))
	for _, f := range fields {
		if !f.Valid() {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidKey, f)
		}
		if seen[f] {
			return fmt.Errorf("%w: field %q repeated", ErrInvalidKey, f)
		}
		seen[f] = true
	}
	return nil
}

// GroupCount groups records by fields and counts records with a non-empty
// DOI in each group. A group whose records all lack a DOI is kept with a
// count of zero. Records missing any key field are skipped and counted in
// Table.Excluded.
func GroupCount(records []types.PublicationRecord, fields ...Field) (Table, error) {
	if err := validateFields(fields); err != nil {
		return Table{}, err
	}

	t := Table{Fields: append([]Field(nil), fields...)}
	index := make(map[string]int)

	for _, r := range records {
		keys := [][]string{{}}
		missing := false
		for _, f := range fields {
			vals := f.values(r)
			if len(vals) == 0 {
				missing = true
				break
			}
			keys = product(keys, vals)
		}
		if missing {
			t.Excluded++
			continue
		}

		for _, key := range keys {
			id := joinKey(key)
			i, ok := index[id]
			if !ok {
				i = len(t.Rows)
				index[id] = i
				t.Rows = append(t.Rows, types.AggregateRow{Key: key})
			}
			if r.DOI != "" {
				t.Rows[i].Count++
			}
		}
	}

	t.sort()
	return t, nil
}

// product extends each partial key with each value.
func product(keys [][]string, vals []string) [][]string {
	out := make([][]string, 0, len(keys)*len(vals))
	for _, k := range keys {
		for _, v := range vals {
			next := make([]string, len(k), len(k)+1)
			copy(next, k)
			out = append(out, append(next, v))
		}
	}
	return out
}

func joinKey(key []string) string {
	return strings.Join(key, "\x1f")
}

func (t *Table) sort() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i], t.Rows[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return compareKeys(t.Fields, a.Key, b.Key) < 0
	})
}

// compareKeys orders key tuples element by element; years compare
// numerically, everything else lexicographically.
func compareKeys(fields []Field, a, b []string) int {
	for i, f := range fields {
		if c := compareValues(f, a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func compareValues(f Field, a, b string) int {
	if f == FieldYear {
		ya, errA := strconv.Atoi(a)
		yb, errB := strconv.Atoi(b)
		if errA == nil && errB == nil {
			switch {
			case ya < yb:
				return -1
			case ya > yb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(a, b)
}

// Index returns the position of f in the key tuple, or -1.
func (t Table) Index(f Field) int {
	for i, g := range t.Fields {
		if g == f {
			return i
		}
	}
	return -1
}

// Total returns the sum of all row counts.
func (t Table) Total() int {
	total := 0
	for _, r := range t.Rows {
		total += r.Count
	}
	return total
}

// Top returns a table holding at most the first n rows. n <= 0 keeps all.
func (t Table) Top(n int) Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	out := t
	out.Rows = t.Rows[:n]
	return out
}

// Filter returns the rows whose f key equals value. A field outside the key
// tuple yields an empty table.
func (t Table) Filter(f Field, value string) Table {
	out := Table{Fields: t.Fields}
	i := t.Index(f)
	if i < 0 {
		return out
	}
	for _, r := range t.Rows {
		if r.Key[i] == value {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Values returns the distinct values of f in ascending order.
func (t Table) Values(f Field) []string {
	i := t.Index(f)
	if i < 0 {
		return nil
	}
	seen := make(map[string]bool)
	var vals []string
	for _, r := range t.Rows {
		if !seen[r.Key[i]] {
			seen[r.Key[i]] = true
			vals = append(vals, r.Key[i])
		}
	}
	sort.Slice(vals, func(a, b int) bool {
		return compareValues(f, vals[a], vals[b]) < 0
	})
	return vals
}

// Totals sums counts over every key field except f, e.g. total DOIs per
// journal across years.
func (t Table) Totals(f Field) (Table, error) {
	i := t.Index(f)
	if i < 0 {
		return Table{}, fmt.Errorf("%w: field %q not in table key", ErrInvalidKey, f)
	}
	out := Table{Fields: []Field{f}}
	index := make(map[string]int)
	for _, r := range t.Rows {
		v := r.Key[i]
		j, ok := index[v]
		if !ok {
			j = len(out.Rows)
			index[v] = j
			out.Rows = append(out.Rows, types.AggregateRow{Key: []string{v}})
		}
		out.Rows[j].Count += r.Count
	}
	out.sort()
	return out, nil
}

// ShareRow is an aggregate row with its percentage of the total of the
// rows sharing its grouping value.
type ShareRow struct {
	types.AggregateRow
	Percent float64 `json:"percent" yaml:"percent"`
}

// Shares computes, for every row, its percentage of the summed count of all
// rows with the same value of within (e.g. the percent of its year). Rows in
// a group whose total is zero get 0.
func (t Table) Shares(within Field) ([]ShareRow, error) {
	i := t.Index(within)
	if i < 0 {
		return nil, fmt.Errorf("%w: field %q not in table key", ErrInvalidKey, within)
	}
	totals := make(map[string]int)
	for _, r := range t.Rows {
		totals[r.Key[i]] += r.Count
	}
	out := make([]ShareRow, len(t.Rows))
	for j, r := range t.Rows {
		out[j] = ShareRow{AggregateRow: r}
		if total := totals[r.Key[i]]; total > 0 {
			out[j].Percent = 100 * float64(r.Count) / float64(total)
		}
	}
	return out, nil
}
