package blocking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var peopleData = Dataset{
	"1": {"name": "Ada Lovelace", "tags": []string{"math", "poetry"}},
	"2": {"name": "Ada Lovelace London", "tags": []string{"math", "poetry", "london"}},
	"3": {"name": "Charles Babbage", "tags": []string{"engines"}},
}

func builtManager(t *testing.T, predicates ...Predicate) *IndexManager {
	t.Helper()
	m, err := NewIndexManager(predicates, WithLogger(NoopLogger()))
	require.NoError(t, err)
	require.NoError(t, m.BuildAll(context.Background(), peopleData))
	return m
}

// TestSearchPredicateSeedsAndQueries tests the non-target and target sides
// of a search predicate
func TestSearchPredicateSeedsAndQueries(t *testing.T) {
	p := NewTfidfTextSearchPredicate("name", 0.7)
	builtManager(t, p)

	tests := []struct {
		name   string
		inst   Instance
		target bool
		want   []string
	}{
		{name: "seed returns own id", inst: peopleData["1"], target: false, want: []string{"0"}},
		{name: "seed of other value", inst: peopleData["3"], target: false, want: []string{"2"}},
		{name: "target returns neighbours", inst: peopleData["1"], target: true, want: []string{"0", "1"}},
		{name: "seed not in corpus", inst: Instance{"name": "Grace Hopper"}, target: false, want: nil},
		{name: "target not in corpus", inst: Instance{"name": "Grace Hopper"}, target: true, want: []string{}},
		{name: "empty value", inst: Instance{"name": ""}, target: true, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := p.Keys(tt.inst, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys)
		})
	}
}

// TestSearchPredicateDedupeGroupsIdenticalValues tests that without a target
// side only identical preprocessed values share a key
func TestSearchPredicateDedupeGroupsIdenticalValues(t *testing.T) {
	b, err := NewBlocker([]Predicate{NewTfidfTextSearchPredicate("name", 0.5)}, WithLogger(NoopLogger()))
	require.NoError(t, err)
	data := Dataset{
		"1": {"name": "Ada Lovelace"},
		"2": {"name": "ada  LOVELACE"},
		"3": {"name": "Ada Lovelace London"},
	}
	require.NoError(t, b.Indices().BuildAll(context.Background(), data))

	sizes, err := b.BlockSizes(context.Background(), RecordsOf(data), false)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		"0:0:(TfidfTextSearchPredicate: 0.5, name)": 2,
		"1:0:(TfidfTextSearchPredicate: 0.5, name)": 1,
	}, sizes)
}

// TestSearchPredicateThresholdOne tests that every indexed value recalls
// its own exact match at the strictest threshold
func TestSearchPredicateThresholdOne(t *testing.T) {
	data := Dataset{
		"1": {"name": "Ada Lovelace"},
		"2": {"name": "Charles Babbage"},
		"3": {"name": "Grace Brewster Murray Hopper"},
		"4": {"name": "Alan Mathison Turing"},
		"5": {"name": "John von Neumann"},
	}
	p := NewTfidfTextSearchPredicate("name", 1)
	m, err := NewIndexManager([]Predicate{p}, WithLogger(NoopLogger()))
	require.NoError(t, err)
	require.NoError(t, m.BuildAll(context.Background(), data))

	for rec := range RecordsOf(data) {
		seed, err := p.Keys(rec.Instance, false)
		require.NoError(t, err)
		require.Len(t, seed, 1)

		neighbours, err := p.Keys(rec.Instance, true)
		require.NoError(t, err)
		assert.Equal(t, seed, neighbours, "record %s", rec.ID)
	}
}

// TestSearchPredicateRequiresIndex tests the StateError raised before a
// build and after a reset
func TestSearchPredicateRequiresIndex(t *testing.T) {
	unregistered := NewTfidfTextSearchPredicate("name", 0.5)
	_, err := unregistered.Keys(Instance{"name": "Ada"}, false)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.ErrorIs(t, err, ErrIndexNotBuilt)
	assert.Equal(t, IndexKey{Field: "name", Kind: TfidfTextIndex}, stateErr.Key)

	p := NewTfidfTextSearchPredicate("name", 0.5)
	m, err := NewIndexManager([]Predicate{p}, WithLogger(NoopLogger()))
	require.NoError(t, err)

	_, err = p.Keys(Instance{"name": "Ada"}, true)
	assert.ErrorIs(t, err, ErrIndexNotBuilt)

	require.NoError(t, m.BuildAll(context.Background(), peopleData))
	_, err = p.Keys(Instance{"name": "Ada"}, true)
	require.NoError(t, err)

	m.Reset()
	_, err = p.Keys(Instance{"name": "Ada"}, true)
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, p.String(), stateErr.Predicate)
}

// TestSetSearchPredicate tests search over set elements
func TestSetSearchPredicate(t *testing.T) {
	p := NewTfidfSetSearchPredicate("tags", 0.5)
	builtManager(t, p)

	keys, err := p.Keys(Instance{"tags": []string{"Math", "Poetry"}}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, keys)

	keys, err = p.Keys(Instance{"tags": []string{"engines"}}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, keys)
}

// TestCanopyPredicate tests canopy assignment and its cache
func TestCanopyPredicate(t *testing.T) {
	p := NewTfidfTextCanopyPredicate("name", 0.7)
	builtManager(t, p)

	// the first record queried becomes its canopy's center
	keys, err := p.Keys(peopleData["2"], false)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, keys)

	keys, err = p.Keys(peopleData["1"], true)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, keys, "canopy membership ignores target")

	keys, err = p.Keys(peopleData["3"], false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, keys)
	assert.Equal(t, 3, p.CanopySize())

	keys, err = p.Keys(Instance{"name": "Grace Hopper"}, false)
	require.NoError(t, err)
	assert.Empty(t, keys)

	p.ResetCache()
	assert.Equal(t, 0, p.CanopySize())

	// a fresh cache lets record 1 become the center
	keys, err = p.Keys(peopleData["1"], false)
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, keys)
}

// TestCanopyPredicateResetByManager tests that a manager reset clears the
// canopy cache and detaches the index
func TestCanopyPredicateResetByManager(t *testing.T) {
	p := NewTfidfTextCanopyPredicate("name", 0.7)
	m := builtManager(t, p)

	_, err := p.Keys(peopleData["1"], false)
	require.NoError(t, err)
	require.Positive(t, p.CanopySize())

	m.Reset()
	assert.Equal(t, 0, p.CanopySize())
	_, err = p.Keys(peopleData["1"], false)
	assert.ErrorIs(t, err, ErrIndexNotBuilt)
}

// TestIndexedPredicateDescribe tests names, kinds and requirements
func TestIndexedPredicateDescribe(t *testing.T) {
	search := NewTfidfSetSearchPredicate("tags", 0.4)
	assert.Equal(t, "(TfidfSetSearchPredicate: 0.4, tags)", search.String())
	assert.Equal(t, SearchPredicateKind, search.Kind())
	assert.Equal(t, IndexKey{Field: "tags", Kind: TfidfSetIndex}, search.Requirement())
	assert.Equal(t, 0.4, search.Threshold())
	assert.IsType(t, &TfidfIndex{}, search.NewIndex())

	canopy := NewTfidfTextCanopyPredicate("name", 0.8)
	assert.Equal(t, "(TfidfTextCanopyPredicate: 0.8, name)", canopy.String())
	assert.Equal(t, CanopyPredicateKind, canopy.Kind())
	assert.Equal(t, "name", canopy.Field())
	assert.Equal(t, Document{"ada", "lovelace"}, canopy.Preprocess("Ada Lovelace"))
}

type stubIndex struct{}

func (stubIndex) Index(Document)   {}
func (stubIndex) Unindex(Document) {}
func (stubIndex) InitSearch()      {}

type stubResolver struct{ idx Index }

func (r stubResolver) Lookup(IndexKey) (Index, error) { return r.idx, nil }

// TestIndexedPredicateNonSearchableIndex tests the configuration error for
// an index that cannot be queried
func TestIndexedPredicateNonSearchableIndex(t *testing.T) {
	p := NewTfidfTextSearchPredicate("name", 0.5)
	p.Attach(stubResolver{idx: stubIndex{}})

	_, err := p.Keys(Instance{"name": "Ada"}, true)
	assert.ErrorIs(t, err, ErrConfiguration)
}
