// Package blocking implements a TF-IDF index used by search and canopy
// blocking predicates.
//
// HOW THE INDEX WORKS:
// Documents (preprocessed field values) are added with Index and removed with
// Unindex. Identical documents share one document ID and are reference
// counted. InitSearch finalizes the corpus:
//  1. IDF per term: ln((1 + N) / (1 + df)) + 1 (smoothed, never zero)
//  2. Per document weight: tf × idf, L2-normalized
//  3. Weights are stored as float16 to halve the dominant memory cost;
//     searches allow scoreTolerance for the rounding
//
// Search computes the cosine between a query document and every document
// sharing at least one term with it, using the roaring posting lists to find
// candidates.
//
// LIFECYCLE:
// Index/Unindex invalidate the search state; InitSearch must run again before
// the next query. Reset drops the whole corpus.
package blocking

import (
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/x448/float16"
)

// Compile-time checks to ensure TfidfIndex implements Searcher
var _ Searcher = (*TfidfIndex)(nil)

// TfidfIndex is a term-weighted search structure over a corpus of documents.
// All methods are safe for concurrent use by multiple goroutines.
type TfidfIndex struct {
	mu sync.RWMutex

	// inverted index: term -> docIDs
	postings map[string]*roaring.Bitmap
	// term frequencies: term -> docID -> tf
	tf map[string]map[uint32]int
	// canonical document key -> docID
	docIDs map[string]uint32
	// docID -> terms, kept for Unindex
	docTerms map[uint32][]string
	// docID -> number of times the document was indexed
	refs   map[uint32]int
	nextID uint32

	// search state, valid while ready is true
	ready   bool
	idf     map[string]float64
	weights map[string]map[uint32]uint16 // term -> docID -> float16 bits
}

// NewTfidfIndex creates and returns a new empty TfidfIndex.
func NewTfidfIndex() *TfidfIndex {
	return &TfidfIndex{
		postings: make(map[string]*roaring.Bitmap),
		tf:       make(map[string]map[uint32]int),
		docIDs:   make(map[string]uint32),
		docTerms: make(map[uint32][]string),
		refs:     make(map[uint32]int),
	}
}

// Index adds a document to the corpus. Empty documents are ignored.
// Adding a document already present only increments its reference count.
func (ix *TfidfIndex) Index(doc Document) {
	if len(doc) == 0 {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.ready = false
	key := doc.key()
	if id, exists := ix.docIDs[key]; exists {
		ix.refs[id]++
		return
	}

	id := ix.nextID
	ix.nextID++
	terms := append([]string(nil), doc...)
	ix.docIDs[key] = id
	ix.docTerms[id] = terms
	ix.refs[id] = 1

	for _, t := range terms {
		if ix.postings[t] == nil {
			ix.postings[t] = roaring.New()
		}
		ix.postings[t].Add(id)
		if ix.tf[t] == nil {
			ix.tf[t] = make(map[uint32]int)
		}
		ix.tf[t][id]++
	}
}

// Unindex removes one occurrence of a document from the corpus. The document
// leaves the postings once every occurrence has been removed.
func (ix *TfidfIndex) Unindex(doc Document) {
	if len(doc) == 0 {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	key := doc.key()
	id, exists := ix.docIDs[key]
	if !exists {
		return
	}
	ix.ready = false
	ix.refs[id]--
	if ix.refs[id] > 0 {
		return
	}

	for _, t := range ix.docTerms[id] {
		if bitmap := ix.postings[t]; bitmap != nil {
			bitmap.Remove(id)
			if bitmap.IsEmpty() {
				delete(ix.postings, t)
			}
		}
		if tfMap := ix.tf[t]; tfMap != nil {
			delete(tfMap, id)
			if len(tfMap) == 0 {
				delete(ix.tf, t)
			}
		}
	}
	delete(ix.docIDs, key)
	delete(ix.docTerms, id)
	delete(ix.refs, id)
}

// InitSearch computes IDF values and normalized document weights. It must be
// called after the last Index/Unindex and before any query.
func (ix *TfidfIndex) InitSearch() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	n := float64(len(ix.docTerms))
	ix.idf = make(map[string]float64, len(ix.postings))
	for t, bitmap := range ix.postings {
		ix.idf[t] = smoothIDF(n, float64(bitmap.GetCardinality()))
	}

	terms := sortedTerms(ix.tf)
	norms := make(map[uint32]float64, len(ix.docTerms))
	for _, t := range terms {
		idf := ix.idf[t]
		for id, count := range ix.tf[t] {
			w := float64(count) * idf
			norms[id] += w * w
		}
	}

	ix.weights = make(map[string]map[uint32]uint16, len(ix.tf))
	for _, t := range terms {
		docs := ix.tf[t]
		idf := ix.idf[t]
		wm := make(map[uint32]uint16, len(docs))
		for id, count := range docs {
			w := float64(count) * idf / math.Sqrt(norms[id])
			wm[id] = float16.Fromfloat32(float32(w)).Bits()
		}
		ix.weights[t] = wm
	}
	ix.ready = true
}

// Reset drops every document and the search state.
func (ix *TfidfIndex) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.postings = make(map[string]*roaring.Bitmap)
	ix.tf = make(map[string]map[uint32]int)
	ix.docIDs = make(map[string]uint32)
	ix.docTerms = make(map[uint32][]string)
	ix.refs = make(map[uint32]int)
	ix.nextID = 0
	ix.ready = false
	ix.idf = nil
	ix.weights = nil
}

// Len returns the number of distinct documents in the corpus.
func (ix *TfidfIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docTerms)
}

// Ready reports whether InitSearch ran since the last corpus change.
func (ix *TfidfIndex) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.ready
}

// DocID returns the ID of an indexed document.
func (ix *TfidfIndex) DocID(doc Document) (uint32, bool) {
	if len(doc) == 0 {
		return 0, false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.docIDs[doc.key()]
	return id, ok
}

// scoreTolerance bounds the error float16 weights add to a cosine score.
// Each weight is rounded with a relative error of at most 2^-11, so a score
// s in [0, 1] is off by at most s × 2^-11 < 5e-4.
const scoreTolerance = 1e-3

// smoothIDF is ln((1+n)/(1+df)) + 1.
func smoothIDF(n, df float64) float64 {
	return math.Log((1+n)/(1+df)) + 1
}
