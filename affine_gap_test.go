package blocking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAffineGapDistance tests distances under the default weights
func TestAffineGapDistance(t *testing.T) {
	w := DefaultAffineGapWeights()

	tests := []struct {
		name string
		s1   string
		s2   string
		want float64
	}{
		{name: "identical", s1: "spago", s2: "spago", want: 0},
		{name: "one mismatch", s1: "spago", s2: "spado", want: 11},
		{name: "both empty", s1: "", s2: "", want: 0},
		{name: "one empty", s1: "abc", s2: "", want: 10 + 7*3},
		{name: "unicode runes", s1: "café", s2: "cafe", want: 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AffineGapDistance(tt.s1, tt.s2, w), 1e-9)
			assert.InDelta(t, tt.want, AffineGapDistance(tt.s2, tt.s1, w), 1e-9, "distance is symmetric")
		})
	}
}

// TestAffineGapAbbreviation tests that a trailing extension costs less than
// the same gap inside the string
func TestAffineGapAbbreviation(t *testing.T) {
	w := DefaultAffineGapWeights()

	abbreviated := AffineGapDistance("spago", "spago los angeles", w)
	different := AffineGapDistance("spago", "lsapgoos angeles", w)

	assert.Positive(t, abbreviated)
	assert.Less(t, abbreviated, different)
}

// TestNormalizedAffineGapDistance tests normalization by combined length
func TestNormalizedAffineGapDistance(t *testing.T) {
	w := DefaultAffineGapWeights()

	d, err := NormalizedAffineGapDistance("spago", "spado", w)
	require.NoError(t, err)
	assert.InDelta(t, 11.0/10.0, d, 1e-9)

	d, err = NormalizedAffineGapDistance("same", "same", w)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)

	_, err = NormalizedAffineGapDistance("", "", w)
	assert.ErrorIs(t, err, ErrEmptyStrings)
}
