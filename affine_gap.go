package blocking

import (
	"errors"
	"math"
)

// ErrEmptyStrings is returned when a normalized distance is asked for two
// empty strings.
var ErrEmptyStrings = errors.New("normalized affine gap distance of two empty strings")

// AffineGapWeights parameterize the affine gap edit distance.
//
// Opening a gap costs Gap + Space, extending it costs Space. Characters of
// the longer string past the end of the shorter one are scaled by
// Abbreviation, so "spago (los angeles)" stays close to "spago".
type AffineGapWeights struct {
	Match        float64
	Mismatch     float64
	Gap          float64
	Space        float64
	Abbreviation float64
}

// DefaultAffineGapWeights returns the weights used by MinDistanceSetComparator.
// A match costs nothing, so identical strings are at distance 0.
func DefaultAffineGapWeights() AffineGapWeights {
	return AffineGapWeights{
		Match:        0,
		Mismatch:     11,
		Gap:          10,
		Space:        7,
		Abbreviation: 0.125,
	}
}

// AffineGapDistance computes the affine gap edit distance between s1 and s2
// over runes.
//
// Time Complexity: O(len(s1) × len(s2)), memory O(max(len(s1), len(s2))).
func AffineGapDistance(s1, s2 string, w AffineGapWeights) float64 {
	r1, r2 := []rune(s1), []rune(s2)
	if s1 == s2 && w.Match <= w.Mismatch && w.Match <= w.Gap {
		return w.Match * float64(len(r1))
	}
	// r1 is the longer string
	if len(r1) < len(r2) {
		r1, r2 = r2, r1
	}
	n1, n2 := len(r1), len(r2)

	inf := math.MaxFloat64
	deletion := make([]float64, n1+1)
	current := make([]float64, n1+1)
	previous := make([]float64, n1+1)

	for j := 1; j <= n1; j++ {
		current[j] = w.Gap + w.Space*float64(j)
		deletion[j] = inf
	}

	for i := 1; i <= n2; i++ {
		c2 := r2[i-1]
		copy(previous, current)
		current[0] = w.Gap + w.Space*float64(i)
		insertion := inf

		for j := 1; j <= n1; j++ {
			if j <= n2 {
				insertion = math.Min(insertion, current[j-1]+w.Gap) + w.Space
			} else {
				insertion = math.Min(insertion, current[j-1]+w.Gap*w.Abbreviation) + w.Space*w.Abbreviation
			}
			deletion[j] = math.Min(deletion[j], previous[j]+w.Gap) + w.Space

			var match float64
			if r1[j-1] == c2 {
				match = previous[j-1] + w.Match
			} else {
				match = previous[j-1] + w.Mismatch
			}
			current[j] = math.Min(insertion, math.Min(deletion[j], match))
		}
	}
	return current[n1]
}

// NormalizedAffineGapDistance divides AffineGapDistance by the combined rune
// length of both strings.
// Returns ErrEmptyStrings when both are empty.
func NormalizedAffineGapDistance(s1, s2 string, w AffineGapWeights) (float64, error) {
	normalizer := float64(len([]rune(s1)) + len([]rune(s2)))
	if normalizer == 0 {
		return 0, ErrEmptyStrings
	}
	return AffineGapDistance(s1, s2, w) / normalizer, nil
}
