package blocking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompoundPredicateKeys tests the cartesian product of member keys
func TestCompoundPredicateKeys(t *testing.T) {
	p := NewCompoundPredicate(
		CommonSetElementPredicate("tags"),
		WholeFieldPredicate("city"),
	)

	keys, err := p.Keys(Instance{"tags": []string{"b", "a"}, "city": "Paris"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:Paris", "b:Paris"}, keys)
}

// TestCompoundPredicateEscapesMemberKeys tests that separators inside member
// keys never make unrelated records share a key
func TestCompoundPredicateEscapesMemberKeys(t *testing.T) {
	p := NewCompoundPredicate(WholeFieldPredicate("a"), WholeFieldPredicate("b"))

	tests := []struct {
		name string
		inst Instance
		want []string
	}{
		{name: "colon in first member", inst: Instance{"a": "x:y", "b": "z"}, want: []string{`x\:y:z`}},
		{name: "colon in second member", inst: Instance{"a": "x", "b": "y:z"}, want: []string{`x:y\:z`}},
		{name: "escape character", inst: Instance{"a": `x\`, "b": ":z"}, want: []string{`x\\:\:z`}},
		{name: "escaped colon literal", inst: Instance{"a": `x\:`, "b": "z"}, want: []string{`x\\\::z`}},
	}

	seen := make(map[string]string)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := p.Keys(tt.inst, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys)
			for _, k := range keys {
				other, dup := seen[k]
				assert.False(t, dup, "key %q shared with %s", k, other)
				seen[k] = tt.name
			}
		})
	}
}

// TestCompoundPredicateEscapedKeysStayApart tests emission of colliding
// member values through a blocker
func TestCompoundPredicateEscapedKeysStayApart(t *testing.T) {
	b, err := NewBlocker([]Predicate{
		NewCompoundPredicate(WholeFieldPredicate("a"), WholeFieldPredicate("b")),
	}, WithLogger(NoopLogger()))
	require.NoError(t, err)

	data := Dataset{
		"1": {"a": "x:y", "b": "z"},
		"2": {"a": "x", "b": "y:z"},
	}
	pairs := collectPairs(t, b.Emit(context.Background(), RecordsOf(data), false))
	require.Len(t, pairs, 2)
	assert.NotEqual(t, pairs[0].Key, pairs[1].Key)
}

// TestCompoundPredicateMissingMember tests that one keyless member blocks
// the record out
func TestCompoundPredicateMissingMember(t *testing.T) {
	p := NewCompoundPredicate(
		WholeFieldPredicate("name"),
		WholeFieldPredicate("city"),
	)

	keys, err := p.Keys(Instance{"name": "Ada"}, false)
	require.NoError(t, err)
	assert.Empty(t, keys)

	empty := NewCompoundPredicate()
	keys, err = empty.Keys(Instance{"name": "Ada"}, false)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

// TestCompoundPredicateKind tests that the most demanding member kind wins
func TestCompoundPredicateKind(t *testing.T) {
	simple := NewCompoundPredicate(WholeFieldPredicate("a"), FirstTokenPredicate("b"))
	assert.Equal(t, SimplePredicateKind, simple.Kind())

	canopy := NewCompoundPredicate(WholeFieldPredicate("a"), NewTfidfTextCanopyPredicate("b", 0.5))
	assert.Equal(t, CanopyPredicateKind, canopy.Kind())
	assert.True(t, canopy.Kind().RequiresIndex())
}

// TestCompoundPredicateString tests the diagnostic description
func TestCompoundPredicateString(t *testing.T) {
	p := NewCompoundPredicate(WholeFieldPredicate("a"), NewTfidfTextSearchPredicate("b", 0.6))
	assert.Equal(t, "((wholeFieldPredicate, a), (TfidfTextSearchPredicate: 0.6, b))", p.String())
	assert.Len(t, p.Members(), 2)
}

// TestMembersOf tests flattening of compound predicates
func TestMembersOf(t *testing.T) {
	a := WholeFieldPredicate("a")
	b := WholeFieldPredicate("b")

	assert.Equal(t, []Predicate{a}, membersOf(a))
	assert.Equal(t, []Predicate{a, b}, membersOf(NewCompoundPredicate(a, b)))
}

// TestIndexKeyString tests index key formatting
func TestIndexKeyString(t *testing.T) {
	assert.Equal(t, "address/TfidfText", IndexKey{Field: "address", Kind: TfidfTextIndex}.String())
}
