// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify assigns each publication record its combined
// corresponding-authorship x federal-funding category.
package classify

import (
	"errors"
	"fmt"

	"github.com/pdiddy/publishing-profiler/pkg/types"
)

// ErrInvalidCategoryValue is matched by every InvalidCategoryError.
var ErrInvalidCategoryValue = errors.New("invalid category value")

// Flag field names used in error context.
const (
	FieldCorresponding = "is_corresponding"
	FieldUSFF          = "is_USFF"
)

// InvalidCategoryError reports a flag value outside yes, no, unknown.
type InvalidCategoryError struct {
	DOI   string
	Field string
	Value string
}

func (e *InvalidCategoryError) Error() string {
	doi := e.DOI
	if doi == "" {
		doi = "<no DOI>"
	}
	return fmt.Sprintf("%s: %s = %q (record %s)", ErrInvalidCategoryValue, e.Field, e.Value, doi)
}

// Is lets errors.Is match ErrInvalidCategoryValue.
func (e *InvalidCategoryError) Is(target error) bool {
	return target == ErrInvalidCategoryValue
}

// ParseFlag accepts exactly "yes", "no", and "unknown".
func ParseFlag(s string) (types.Flag, error) {
	switch f := types.Flag(s); f {
	case types.FlagYes, types.FlagNo, types.FlagUnknown:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategoryValue, s)
}

// Classify derives both combined categories from the record's flags. The
// record is read, never modified.
func Classify(r types.PublicationRecord) (types.Classification, error) {
	corr, err := ParseFlag(string(r.Corresponding))
	if err != nil {
		return types.Classification{}, &InvalidCategoryError{DOI: r.DOI, Field: FieldCorresponding, Value: string(r.Corresponding)}
	}
	usff, err := ParseFlag(string(r.USFF))
	if err != nil {
		return types.Classification{}, &InvalidCategoryError{DOI: r.DOI, Field: FieldUSFF, Value: string(r.USFF)}
	}
	return types.Classification{
		CorrespondingUSFF: types.NewCategory(corr, usff),
		USFFCorresponding: types.NewCategory(usff, corr),
	}, nil
}

// Enrich returns a copy of records with Classification set, in input order.
// The first record with an invalid flag aborts the whole call.
func Enrich(records []types.PublicationRecord) ([]types.PublicationRecord, error) {
	out := make([]types.PublicationRecord, len(records))
	for i, r := range records {
		c, err := Classify(r)
		if err != nil {
			return nil, fmt.Errorf("classifying row %d: %w", i, err)
		}
		r.Classification = c
		out[i] = r
	}
	return out, nil
}

// IsTarget reports whether a record is corresponding-authored by the
// institution and federally funded.
func IsTarget(r types.PublicationRecord) bool {
	return r.Corresponding == types.FlagYes && r.USFF == types.FlagYes
}

// Categories lists every combined category in the display order of the
// original dashboard legend: yes before no before unknown on each side.
func Categories() []types.Category {
	cats := make([]types.Category, 0, len(types.Flags)*len(types.Flags))
	for _, corr := range types.Flags {
		for _, usff := range types.Flags {
			cats = append(cats, types.NewCategory(corr, usff))
		}
	}
	return cats
}
