package blocking

import (
	"fmt"
	"strconv"
	"sync"
)

// indexBinding holds what an indexed predicate knows about its index: the
// lookup key and the resolver to look it up in. It never owns the index.
type indexBinding struct {
	key IndexKey

	mu       sync.RWMutex
	resolver IndexResolver
}

// Requirement returns the field and index kind the predicate queries.
func (b *indexBinding) Requirement() IndexKey { return b.key }

// Field returns the field the predicate reads.
func (b *indexBinding) Field() string { return b.key.Field }

// Attach sets the resolver used at invocation time.
func (b *indexBinding) Attach(r IndexResolver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolver = r
}

// searcher resolves the current index. name identifies the calling predicate
// in the returned error.
func (b *indexBinding) searcher(name string) (Searcher, error) {
	b.mu.RLock()
	r := b.resolver
	b.mu.RUnlock()

	if r == nil {
		return nil, newStateError(name, b.key, fmt.Errorf("%w: predicate not registered with an index manager", ErrIndexNotBuilt))
	}
	idx, err := r.Lookup(b.key)
	if err != nil {
		return nil, newStateError(name, b.key, err)
	}
	s, ok := idx.(Searcher)
	if !ok {
		return nil, &ConfigurationError{Field: b.key.Field, Reason: fmt.Sprintf("index %T for %s is not searchable", idx, b.key)}
	}
	return s, nil
}

// Preprocessor converts a raw field value into an index document.
type Preprocessor func(value any) Document

func preprocessorFor(kind IndexKind) Preprocessor {
	if kind == TfidfSetIndex {
		return PreprocessSet
	}
	return PreprocessText
}

// TfidfSearchPredicate blocks records with near neighbours in a TF-IDF index.
//
// A non-target record seeds the index: its key is the ID of its own indexed
// value. A target record queries the index and receives the IDs of every
// indexed value at least threshold similar, so it shares a block with each
// non-target record it resembles.
//
// Near neighbours are only grouped in record linkage, where one side is
// emitted as target. When deduplicating a single dataset every record is
// non-target, so the predicate groups identical preprocessed values only.
type TfidfSearchPredicate struct {
	indexBinding
	name       string
	threshold  float64
	preprocess Preprocessor
}

// Compile-time checks to ensure TfidfSearchPredicate implements IndexedPredicate
var _ IndexedPredicate = (*TfidfSearchPredicate)(nil)

// NewTfidfTextSearchPredicate searches word tokens of a string field.
func NewTfidfTextSearchPredicate(field string, threshold float64) *TfidfSearchPredicate {
	return newTfidfSearchPredicate("TfidfTextSearchPredicate", field, TfidfTextIndex, threshold)
}

// NewTfidfSetSearchPredicate searches the elements of a set field.
func NewTfidfSetSearchPredicate(field string, threshold float64) *TfidfSearchPredicate {
	return newTfidfSearchPredicate("TfidfSetSearchPredicate", field, TfidfSetIndex, threshold)
}

func newTfidfSearchPredicate(name, field string, kind IndexKind, threshold float64) *TfidfSearchPredicate {
	return &TfidfSearchPredicate{
		indexBinding: indexBinding{key: IndexKey{Field: field, Kind: kind}},
		name:         name,
		threshold:    threshold,
		preprocess:   preprocessorFor(kind),
	}
}

// Threshold returns the minimum cosine similarity of a neighbour.
func (p *TfidfSearchPredicate) Threshold() float64 { return p.threshold }

// Kind returns SearchPredicateKind.
func (p *TfidfSearchPredicate) Kind() PredicateKind { return SearchPredicateKind }

// NewIndex returns an empty TfidfIndex.
func (p *TfidfSearchPredicate) NewIndex() Index { return NewTfidfIndex() }

// Preprocess converts a field value into a document.
func (p *TfidfSearchPredicate) Preprocess(value any) Document { return p.preprocess(value) }

// ResetCache is a no-op: search predicates keep no index-derived state.
func (p *TfidfSearchPredicate) ResetCache() {}

// Keys returns the record's own document ID, or its neighbours' IDs when
// target is set.
func (p *TfidfSearchPredicate) Keys(inst Instance, target bool) ([]string, error) {
	v, ok := inst[p.key.Field]
	if !ok || isEmptyValue(v) {
		return nil, nil
	}
	s, err := p.searcher(p.String())
	if err != nil {
		return nil, err
	}
	doc := p.preprocess(v)
	if len(doc) == 0 {
		return nil, nil
	}

	if !target {
		id, ok := s.DocID(doc)
		if !ok {
			return nil, nil
		}
		return []string{strconv.FormatUint(uint64(id), 10)}, nil
	}

	results, err := s.Search(doc, p.threshold)
	if err != nil {
		return nil, newStateError(p.String(), p.key, err)
	}
	keys := make([]string, len(results))
	for i, r := range results {
		keys[i] = strconv.FormatUint(uint64(r.DocID), 10)
	}
	return keys, nil
}

func (p *TfidfSearchPredicate) String() string {
	return fmt.Sprintf("(%s: %g, %s)", p.name, p.threshold, p.key.Field)
}

// noCanopy marks a document that was visited but found no neighbours.
const noCanopy = -1

// TfidfCanopyPredicate blocks records by canopy. The first record of a
// canopy becomes its center; every indexed value at least threshold similar
// to the center and not yet assigned joins that canopy. Canopies are computed
// lazily and cached until ResetCache.
type TfidfCanopyPredicate struct {
	indexBinding
	name       string
	threshold  float64
	preprocess Preprocessor

	canopyMu sync.Mutex
	canopy   map[uint32]int64 // docID -> center docID, noCanopy when alone
}

// Compile-time checks to ensure TfidfCanopyPredicate implements IndexedPredicate
var _ IndexedPredicate = (*TfidfCanopyPredicate)(nil)

// NewTfidfTextCanopyPredicate clusters word tokens of a string field.
func NewTfidfTextCanopyPredicate(field string, threshold float64) *TfidfCanopyPredicate {
	return newTfidfCanopyPredicate("TfidfTextCanopyPredicate", field, TfidfTextIndex, threshold)
}

// NewTfidfSetCanopyPredicate clusters the elements of a set field.
func NewTfidfSetCanopyPredicate(field string, threshold float64) *TfidfCanopyPredicate {
	return newTfidfCanopyPredicate("TfidfSetCanopyPredicate", field, TfidfSetIndex, threshold)
}

func newTfidfCanopyPredicate(name, field string, kind IndexKind, threshold float64) *TfidfCanopyPredicate {
	return &TfidfCanopyPredicate{
		indexBinding: indexBinding{key: IndexKey{Field: field, Kind: kind}},
		name:         name,
		threshold:    threshold,
		preprocess:   preprocessorFor(kind),
		canopy:       make(map[uint32]int64),
	}
}

// Threshold returns the minimum cosine similarity to a canopy center.
func (p *TfidfCanopyPredicate) Threshold() float64 { return p.threshold }

// Kind returns CanopyPredicateKind.
func (p *TfidfCanopyPredicate) Kind() PredicateKind { return CanopyPredicateKind }

// NewIndex returns an empty TfidfIndex.
func (p *TfidfCanopyPredicate) NewIndex() Index { return NewTfidfIndex() }

// Preprocess converts a field value into a document.
func (p *TfidfCanopyPredicate) Preprocess(value any) Document { return p.preprocess(value) }

// ResetCache forgets every canopy assignment.
func (p *TfidfCanopyPredicate) ResetCache() {
	p.canopyMu.Lock()
	defer p.canopyMu.Unlock()
	p.canopy = make(map[uint32]int64)
}

// CanopySize returns the number of cached canopy assignments.
func (p *TfidfCanopyPredicate) CanopySize() int {
	p.canopyMu.Lock()
	defer p.canopyMu.Unlock()
	return len(p.canopy)
}

// Keys returns the canopy center of the record's value. Canopy membership
// does not depend on target. Values absent from the corpus get no key.
func (p *TfidfCanopyPredicate) Keys(inst Instance, _ bool) ([]string, error) {
	v, ok := inst[p.key.Field]
	if !ok || isEmptyValue(v) {
		return nil, nil
	}
	s, err := p.searcher(p.String())
	if err != nil {
		return nil, err
	}
	doc := p.preprocess(v)
	id, ok := s.DocID(doc)
	if !ok {
		return nil, nil
	}

	p.canopyMu.Lock()
	defer p.canopyMu.Unlock()

	center, seen := p.canopy[id]
	if !seen {
		members, err := s.Search(doc, p.threshold)
		if err != nil {
			return nil, newStateError(p.String(), p.key, err)
		}
		for _, m := range members {
			if _, assigned := p.canopy[m.DocID]; !assigned {
				p.canopy[m.DocID] = int64(id)
			}
		}
		if len(members) > 0 {
			center = int64(id)
		} else {
			center = noCanopy
		}
		p.canopy[id] = center
	}

	if center == noCanopy {
		return nil, nil
	}
	return []string{strconv.FormatInt(center, 10)}, nil
}

func (p *TfidfCanopyPredicate) String() string {
	return fmt.Sprintf("(%s: %g, %s)", p.name, p.threshold, p.key.Field)
}
