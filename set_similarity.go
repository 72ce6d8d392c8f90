package blocking

import "math"

// SetComparator scores two set-valued field values. The boolean is false when
// the score is undefined (an empty set, or no comparable elements); callers
// treat that as a missing feature rather than an error.
type SetComparator interface {
	Compare(a, b []string) (float64, bool)
}

// Compile-time checks to ensure both strategies implement SetComparator
var (
	_ SetComparator = (*CosineSetComparator)(nil)
	_ SetComparator = (*MinDistanceSetComparator)(nil)
)

// CosineSetComparator computes the cosine similarity of two sets in a TF-IDF
// space learned from a corpus of example sets. Elements frequent in the
// corpus weigh less. Higher is more similar; identical non-empty sets score 1.
type CosineSetComparator struct {
	index *TfidfIndex
}

// NewCosineSetComparator builds the TF-IDF space over corpus. An empty corpus
// weighs every element equally.
func NewCosineSetComparator(corpus [][]string) *CosineSetComparator {
	idx := NewTfidfIndex()
	for _, set := range corpus {
		idx.Index(PreprocessSet(set))
	}
	idx.InitSearch()
	return &CosineSetComparator{index: idx}
}

// Compare returns the cosine similarity of a and b in [0, 1]. It is undefined
// when either set has no non-empty element.
func (c *CosineSetComparator) Compare(a, b []string) (float64, bool) {
	va, err := c.index.Vector(PreprocessSet(a))
	if err != nil || len(va) == 0 {
		return 0, false
	}
	vb, err := c.index.Vector(PreprocessSet(b))
	if err != nil || len(vb) == 0 {
		return 0, false
	}

	var dot, na, nb float64
	for _, t := range sortedTerms(va) {
		w := va[t]
		na += w * w
		dot += w * vb[t]
	}
	for _, t := range sortedTerms(vb) {
		nb += vb[t] * vb[t]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return math.Min(1, dot/(math.Sqrt(na)*math.Sqrt(nb))), true
}

// MinDistanceSetComparator returns the smallest normalized affine gap
// distance between any element of one set and any element of the other.
// Lower is more similar; sets sharing an element score 0. It compares every
// pair, O(|a| × |b|), so it only suits small sets.
type MinDistanceSetComparator struct {
	weights AffineGapWeights
}

// NewMinDistanceSetComparator uses DefaultAffineGapWeights.
func NewMinDistanceSetComparator() *MinDistanceSetComparator {
	return &MinDistanceSetComparator{weights: DefaultAffineGapWeights()}
}

// NewMinDistanceSetComparatorWithWeights uses custom weights.
func NewMinDistanceSetComparatorWithWeights(w AffineGapWeights) *MinDistanceSetComparator {
	return &MinDistanceSetComparator{weights: w}
}

// Compare skips pairs with an empty element. It is undefined when no pair is
// left.
func (c *MinDistanceSetComparator) Compare(a, b []string) (float64, bool) {
	closest := math.Inf(1)
	found := false
	for _, w1 := range a {
		if w1 == "" {
			continue
		}
		for _, w2 := range b {
			if w2 == "" {
				continue
			}
			d, err := NormalizedAffineGapDistance(w1, w2, c.weights)
			if err != nil {
				continue
			}
			found = true
			closest = math.Min(closest, d)
		}
	}
	if !found {
		return 0, false
	}
	return closest, true
}
