package blocking

import (
	"maps"
	"math"
	"slices"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/x448/float16"
)

// SearchResult represents a single search result with its score.
type SearchResult struct {
	DocID uint32  // Document ID
	Score float64 // Cosine similarity with the query
}

// Search returns every indexed document whose cosine similarity with doc is
// at least threshold, ordered by descending score then ascending ID.
//
// SEARCH ALGORITHM:
//  1. Weight the query terms with the corpus IDF and L2-normalize
//  2. Union the posting lists of the query terms (candidate set)
//  3. Score each candidate by the dot product of normalized weights
//
// Scores are computed from float16 weights, so a candidate within
// scoreTolerance below threshold is kept. An exact duplicate is found at
// threshold 1.
//
// Returns ErrIndexNotReady if InitSearch has not run since the last change.
func (ix *TfidfIndex) Search(doc Document, threshold float64) ([]SearchResult, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.ready {
		return nil, ErrIndexNotReady
	}
	query := ix.vectorLocked(doc)
	if len(query) == 0 {
		return nil, nil
	}
	normalizeVector(query)
	terms := sortedTerms(query)

	bitmaps := make([]*roaring.Bitmap, 0, len(terms))
	for _, t := range terms {
		if bitmap := ix.postings[t]; bitmap != nil {
			bitmaps = append(bitmaps, bitmap)
		}
	}
	if len(bitmaps) == 0 {
		return nil, nil
	}
	candidates := roaring.FastOr(bitmaps...)

	var results []SearchResult
	for iter := candidates.Iterator(); iter.HasNext(); {
		id := iter.Next()
		var score float64
		for _, t := range terms {
			if bits, ok := ix.weights[t][id]; ok {
				score += query[t] * float64(float16.Frombits(bits).Float32())
			}
		}
		if score+scoreTolerance >= threshold {
			results = append(results, SearchResult{DocID: id, Score: math.Min(score, 1)})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	return results, nil
}

// Vector returns the un-normalized tf × idf weights of doc against the corpus.
// Terms unseen in the corpus receive the IDF of a zero document frequency.
func (ix *TfidfIndex) Vector(doc Document) (map[string]float64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.ready {
		return nil, ErrIndexNotReady
	}
	return ix.vectorLocked(doc), nil
}

// vectorLocked must be called with ix.mu held.
func (ix *TfidfIndex) vectorLocked(doc Document) map[string]float64 {
	if len(doc) == 0 {
		return nil
	}
	n := float64(len(ix.docTerms))
	vec := make(map[string]float64, len(doc))
	for _, t := range doc {
		vec[t]++
	}
	for t, count := range vec {
		idf, ok := ix.idf[t]
		if !ok {
			idf = smoothIDF(n, 0)
		}
		vec[t] = count * idf
	}
	return vec
}

// normalizeVector scales v to unit length in place. Zero vectors are left as is.
func normalizeVector(v map[string]float64) {
	var sum float64
	for _, t := range sortedTerms(v) {
		sum += v[t] * v[t]
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for t, w := range v {
		v[t] = w / norm
	}
}

// sortedTerms fixes the summation order of floating point sums over a
// vector, so equal inputs always give bit-identical scores.
func sortedTerms[V any](v map[string]V) []string {
	return slices.Sorted(maps.Keys(v))
}
