// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/publishing-profiler/pkg/types"
)

func TestParseFlag(t *testing.T) {
	for _, f := range types.Flags {
		got, err := ParseFlag(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	for _, bad := range []string{"", "Yes", "nan", "maybe", " yes"} {
		_, err := ParseFlag(bad)
		assert.ErrorIs(t, err, ErrInvalidCategoryValue, "value %q", bad)
	}
}

func TestClassifyAllPairs(t *testing.T) {
	seen := make(map[types.Category]bool)
	for _, corr := range types.Flags {
		for _, usff := range types.Flags {
			r := types.PublicationRecord{DOI: "10.1/x", Corresponding: corr, USFF: usff}
			c, err := Classify(r)
			require.NoError(t, err)

			assert.Equal(t, types.Category(string(corr)+"_"+string(usff)), c.CorrespondingUSFF)
			assert.Equal(t, types.Category(string(usff)+"_"+string(corr)), c.USFFCorresponding)
			assert.False(t, seen[c.CorrespondingUSFF], "category %s produced twice", c.CorrespondingUSFF)
			seen[c.CorrespondingUSFF] = true
		}
	}
	assert.Len(t, seen, 9)
	for _, cat := range Categories() {
		assert.True(t, seen[cat], "category %s never produced", cat)
	}
}

func TestClassifyKeepsUnknownDistinct(t *testing.T) {
	unknown, err := Classify(types.PublicationRecord{Corresponding: types.FlagUnknown, USFF: types.FlagYes})
	require.NoError(t, err)
	no, err := Classify(types.PublicationRecord{Corresponding: types.FlagNo, USFF: types.FlagYes})
	require.NoError(t, err)

	assert.Equal(t, types.Category("unknown_yes"), unknown.CorrespondingUSFF)
	assert.NotEqual(t, unknown.CorrespondingUSFF, no.CorrespondingUSFF)
}

func TestClassifyInvalid(t *testing.T) {
	tests := []struct {
		name      string
		record    types.PublicationRecord
		wantField string
		wantValue string
	}{
		{
			name:      "bad corresponding flag",
			record:    types.PublicationRecord{DOI: "10.1/a", Corresponding: "nan", USFF: types.FlagYes},
			wantField: FieldCorresponding,
			wantValue: "nan",
		},
		{
			name:      "bad funding flag",
			record:    types.PublicationRecord{DOI: "10.1/b", Corresponding: types.FlagYes, USFF: "true"},
			wantField: FieldUSFF,
			wantValue: "true",
		},
		{
			name:      "empty flag",
			record:    types.PublicationRecord{Corresponding: types.FlagNo},
			wantField: FieldUSFF,
			wantValue: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.record)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCategoryValue)

			var ice *InvalidCategoryError
			require.True(t, errors.As(err, &ice))
			assert.Equal(t, tt.record.DOI, ice.DOI)
			assert.Equal(t, tt.wantField, ice.Field)
			assert.Equal(t, tt.wantValue, ice.Value)
		})
	}
}

func TestEnrich(t *testing.T) {
	in := []types.PublicationRecord{
		{DOI: "A", Corresponding: types.FlagYes, USFF: types.FlagYes},
		{DOI: "B", Corresponding: types.FlagYes, USFF: types.FlagNo},
		{DOI: "C", Corresponding: types.FlagUnknown, USFF: types.FlagNo},
	}

	out, err := Enrich(in)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, types.CategoryYesYes, out[0].Classification.CorrespondingUSFF)
	assert.Equal(t, types.Category("no_yes"), out[1].Classification.USFFCorresponding)
	assert.Equal(t, types.Category("unknown_no"), out[2].Classification.CorrespondingUSFF)
	assert.Equal(t, "C", out[2].DOI, "order must be preserved")

	assert.Empty(t, in[0].Classification.CorrespondingUSFF, "input must not be mutated")
}

func TestEnrichAbortsOnInvalid(t *testing.T) {
	in := []types.PublicationRecord{
		{DOI: "A", Corresponding: types.FlagYes, USFF: types.FlagYes},
		{DOI: "B", Corresponding: "Y", USFF: types.FlagNo},
	}

	out, err := Enrich(in)
	assert.Nil(t, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCategoryValue)
	assert.Contains(t, err.Error(), "row 1")
	assert.Contains(t, err.Error(), "B")
}

func TestIsTarget(t *testing.T) {
	assert.True(t, IsTarget(types.PublicationRecord{Corresponding: types.FlagYes, USFF: types.FlagYes}))
	assert.False(t, IsTarget(types.PublicationRecord{Corresponding: types.FlagYes, USFF: types.FlagUnknown}))
	assert.False(t, IsTarget(types.PublicationRecord{Corresponding: types.FlagNo, USFF: types.FlagYes}))
}
