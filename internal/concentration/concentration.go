// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package concentration computes how many top-ranked groups (publishers)
// account for a target cumulative share of a year's output.
package concentration

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/pdiddy/publishing-profiler/internal/aggregate"
	"github.com/pdiddy/publishing-profiler/pkg/types"
)

var (
	// ErrEmptyGroup is matched by every EmptyGroupError.
	ErrEmptyGroup = errors.New("no output to rank")

	// ErrInvalidTarget is returned for a target outside (0, 100].
	ErrInvalidTarget = errors.New("target percent must be in (0, 100]")
)

// EmptyGroupError reports a concentration request over a zero total.
type EmptyGroupError struct {
	// Year is zero when the caller did not supply one.
	Year int
}

func (e *EmptyGroupError) Error() string {
	if e.Year == 0 {
		return ErrEmptyGroup.Error()
	}
	return fmt.Sprintf("%s for year %d", ErrEmptyGroup, e.Year)
}

// Is lets errors.Is match ErrEmptyGroup.
func (e *EmptyGroupError) Is(target error) bool {
	return target == ErrEmptyGroup
}

// GroupCount is one ranked group and its count.
type GroupCount struct {
	Group string
	Count int
}

// Rank returns a copy of groups sorted by count descending, ties by group
// name ascending.
func Rank(groups []GroupCount) []GroupCount {
	ranked := append([]GroupCount(nil), groups...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Group < ranked[j].Group
	})
	return ranked
}

// MinGroupsForShare returns the number of top groups needed to reach
// targetPercent of the total. With k the number of ranked prefixes whose
// cumulative fraction is strictly below the target, the result is k+1, so a
// prefix landing exactly on the target is enough.
func MinGroupsForShare(groups []GroupCount, targetPercent float64) (int, error) {
	if !(targetPercent > 0 && targetPercent <= 100) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidTarget, targetPercent)
	}

	total := 0
	for _, g := range groups {
		total += g.Count
	}
	if total <= 0 {
		return 0, &EmptyGroupError{}
	}

	// cum/total < target/100, kept in integers on the left to avoid
	// rounding at the exact boundary.
	below := 0
	cum := 0
	for _, g := range Rank(groups) {
		cum += g.Count
		if float64(cum)*100 < targetPercent*float64(total) {
			below++
		}
	}

	needed := below + 1
	if needed > len(groups) {
		needed = len(groups)
	}
	return needed, nil
}

// ByYear runs MinGroupsForShare for every year of table and every target.
// table must be keyed by groupField and aggregate.FieldYear. Results are
// ordered by year ascending, then by target in the given order. Years are
// taken from the table, so a year with rows but a zero total is an error.
func ByYear(table aggregate.Table, groupField aggregate.Field, targets []float64) ([]types.ConcentrationResult, error) {
	gi := table.Index(groupField)
	yi := table.Index(aggregate.FieldYear)
	if gi < 0 || yi < 0 {
		return nil, fmt.Errorf("%w: concentration needs %q and %q in the table key",
			aggregate.ErrInvalidKey, groupField, aggregate.FieldYear)
	}

	perYear := make(map[string][]GroupCount)
	for _, r := range table.Rows {
		y := r.Key[yi]
		perYear[y] = append(perYear[y], GroupCount{Group: r.Key[gi], Count: r.Count})
	}

	var results []types.ConcentrationResult
	for _, y := range table.Values(aggregate.FieldYear) {
		year, err := strconv.Atoi(y)
		if err != nil {
			return nil, fmt.Errorf("parsing year %q: %w", y, err)
		}
		groups := perYear[y]
		for _, target := range targets {
			n, err := MinGroupsForShare(groups, target)
			if err != nil {
				var eg *EmptyGroupError
				if errors.As(err, &eg) {
					eg.Year = year
				}
				return nil, err
			}
			results = append(results, types.ConcentrationResult{
				Year:          year,
				TargetPercent: target,
				NumGroups:     distinctGroups(groups),
				GroupsNeeded:  n,
			})
		}
	}
	return results, nil
}

func distinctGroups(groups []GroupCount) int {
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		seen[g.Group] = struct{}{}
	}
	return len(seen)
}
