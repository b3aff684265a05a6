package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSizeList_Tolerance(t *testing.T) {
	want := map[string]int{"S": 10, "M": 20}
	for _, in := range []string{
		"S-10 M-20",
		"s-10m-20",
		"S - 10 M - 20",
		"S-10, M-20",
		"S: 10 M: 20",
		"S:10 m:20",
		"S–10  M—20",
	} {
		got, errs := ParseSizeList(in)
		assert.Empty(t, errs, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseSizeList_Aliases(t *testing.T) {
	got, errs := ParseSizeList("xxl-3 3xl-4 XS-1")
	require.Empty(t, errs)
	assert.Equal(t, map[string]int{"2XL": 3, "3XL": 4, "XS": 1}, got)
}

func TestParseSizeList_CollectsErrors(t *testing.T) {
	got, errs := ParseSizeList("S-5 Q-5 M-0 L-x XL")
	assert.Equal(t, map[string]int{"S": 5}, got)
	require.Len(t, errs, 4)
	msg := errs.Error()
	assert.Contains(t, msg, "unknown size Q")
	assert.Contains(t, msg, "quantity for M must be positive")
	assert.Contains(t, msg, "not a number")
	assert.Contains(t, msg, "expected SIZE-QUANTITY")
}

func TestParseSizeList_GluedLabels(t *testing.T) {
	got, errs := ParseSizeList("s-10xs-5")
	require.Empty(t, errs)
	assert.Equal(t, map[string]int{"S": 10, "XS": 5}, got)

	got, errs = ParseSizeList("m-7xxl-2")
	require.Empty(t, errs)
	assert.Equal(t, map[string]int{"M": 7, "2XL": 2}, got)

	for _, in := range []string{"s-102xl-5", "S-12XL-5"} {
		got, errs = ParseSizeList(in)
		assert.Empty(t, got, in)
		require.Len(t, errs, 1, in)
		assert.Contains(t, errs[0].Reason, "cannot tell where the quantity ends", in)
	}

	got, errs = ParseSizeList("s-10 2xl-5")
	require.Empty(t, errs)
	assert.Equal(t, map[string]int{"S": 10, "2XL": 5}, got)
}

func TestParseSizeList_Empty(t *testing.T) {
	got, errs := ParseSizeList("   ")
	assert.Empty(t, got)
	require.Len(t, errs, 1)
	assert.Equal(t, "no sizes given", errs[0].Reason)
}

func TestParseSizeList_LastWins(t *testing.T) {
	got, errs := ParseSizeList("S-5 S-7")
	require.Empty(t, errs)
	assert.Equal(t, map[string]int{"S": 7}, got)
}

func TestParseGroups_Named(t *testing.T) {
	groups, errs := NewSizeParser(DefaultSizeLabels).ParseGroups("Kazan: S-50 M-25, Tula:L-5")
	require.Empty(t, errs)
	require.Len(t, groups, 2)
	assert.Equal(t, "Kazan", groups[0].Name)
	assert.Equal(t, map[string]int{"S": 50, "M": 25}, groups[0].Sizes)
	assert.Equal(t, "Tula", groups[1].Name)
	assert.Equal(t, map[string]int{"L": 5}, groups[1].Sizes)
}

func TestParseGroups_NamedWithColonSizes(t *testing.T) {
	groups, errs := NewSizeParser(DefaultSizeLabels).ParseGroups("Kazan: S: 50 M: 25")
	require.Empty(t, errs)
	require.Len(t, groups, 1)
	assert.Equal(t, "Kazan", groups[0].Name)
	assert.Equal(t, map[string]int{"S": 50, "M": 25}, groups[0].Sizes)
}

func TestNormalize_Bounded(t *testing.T) {
	p := NewSizeParser(DefaultSizeLabels)
	in := strings.Repeat("s-1m-2", 500)
	out := p.Normalize(in)
	assert.NotEqual(t, in, out)
	_, errs := p.ParseSizeList(in)
	assert.Empty(t, errs)
}

func TestSizeParser_CustomLabels(t *testing.T) {
	p := NewSizeParser([]string{"m", "L", "l", "xl"})
	assert.Equal(t, []string{"M", "L", "XL"}, p.Labels())

	_, ok := p.Canonical("XXL")
	assert.False(t, ok, "alias only resolves when 2XL is configured")

	got, errs := p.ParseSizeList("S-1 XL-2")
	assert.Equal(t, map[string]int{"XL": 2}, got)
	require.Len(t, errs, 1)
}

func TestIsSizeLabel(t *testing.T) {
	for _, l := range []string{"S", "xl", "3XL", "XXS"} {
		assert.True(t, IsSizeLabel(l), l)
	}
	for _, l := range []string{"", "42", "XL3", "Q"} {
		assert.False(t, IsSizeLabel(l), l)
	}
}

func TestFormatSizes(t *testing.T) {
	sizes := map[string]int{"M": 5, "S": 10, "L": 0}
	assert.Equal(t, "S-10 M-5", FormatSizes(sizes, DefaultSizeLabels))
	assert.Equal(t, "", FormatSizes(nil, DefaultSizeLabels))
}
