package blocking

import (
	"fmt"
	"strings"
)

// PredicateKind tags the predicate variants. The kind is inspected once, when
// predicates are registered with an IndexManager.
type PredicateKind string

const (
	// SimplePredicateKind is a pure function of one field with no shared state.
	SimplePredicateKind PredicateKind = "simple"

	// SearchPredicateKind returns the IDs of indexed near neighbours.
	SearchPredicateKind PredicateKind = "search"

	// CanopyPredicateKind returns the canopy a value falls into.
	CanopyPredicateKind PredicateKind = "canopy"
)

// RequiresIndex reports whether predicates of this kind need a built index.
func (k PredicateKind) RequiresIndex() bool {
	return k == SearchPredicateKind || k == CanopyPredicateKind
}

// IndexKind names the corpus preprocessing an index is built with. Indexed
// predicates of the same field and kind share one index.
type IndexKind string

const (
	// TfidfTextIndex indexes word tokens of string values.
	TfidfTextIndex IndexKind = "TfidfText"

	// TfidfSetIndex indexes the elements of set values.
	TfidfSetIndex IndexKind = "TfidfSet"
)

// IndexKey identifies a shared index.
type IndexKey struct {
	Field string
	Kind  IndexKind
}

func (k IndexKey) String() string {
	return fmt.Sprintf("%s/%s", k.Field, k.Kind)
}

// Predicate maps an instance to zero or more raw block keys.
type Predicate interface {
	// Keys returns the raw block keys of inst. target selects the record's
	// side in a record-linkage run.
	Keys(inst Instance, target bool) ([]string, error)

	// Kind returns the predicate variant.
	Kind() PredicateKind

	// String returns a human-readable description used in diagnostics.
	String() string
}

// Index owns a corpus of preprocessed field values.
type Index interface {
	Index(doc Document)
	Unindex(doc Document)
	InitSearch()
}

// Searcher is an Index that can be queried once InitSearch has run.
type Searcher interface {
	Index
	DocID(doc Document) (uint32, bool)
	Search(doc Document, threshold float64) ([]SearchResult, error)
}

// IndexResolver resolves an index key to the currently built index.
// Predicates hold a resolver, never the index itself.
type IndexResolver interface {
	Lookup(key IndexKey) (Index, error)
}

// IndexedPredicate is a predicate whose kind requires a shared index.
type IndexedPredicate interface {
	Predicate

	// Requirement returns the field and index kind the predicate queries.
	Requirement() IndexKey

	// NewIndex creates an empty index suitable for this predicate.
	NewIndex() Index

	// Preprocess converts a raw field value into an index document.
	Preprocess(value any) Document

	// Attach gives the predicate the resolver it looks its index up in.
	Attach(r IndexResolver)

	// ResetCache drops any index-derived state held by the predicate.
	ResetCache()
}

// memberKeyEscaper escapes the separator and the escape character itself.
var memberKeyEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)

// CompoundPredicate is a conjunction of predicates. Its keys are the
// cartesian product of its members' keys joined with ":".
type CompoundPredicate struct {
	members []Predicate
}

// Compile-time checks to ensure CompoundPredicate implements Predicate
var _ Predicate = (*CompoundPredicate)(nil)

// NewCompoundPredicate returns the conjunction of the given predicates.
func NewCompoundPredicate(members ...Predicate) *CompoundPredicate {
	return &CompoundPredicate{members: append([]Predicate(nil), members...)}
}

// Members returns the conjoined predicates in order.
func (c *CompoundPredicate) Members() []Predicate {
	return c.members
}

// Kind returns the most demanding kind among the members.
func (c *CompoundPredicate) Kind() PredicateKind {
	kind := SimplePredicateKind
	for _, p := range c.members {
		if p.Kind().RequiresIndex() {
			kind = p.Kind()
		}
	}
	return kind
}

// Keys combines member keys. A member with no keys blocks the record out.
// Member keys are escaped so a ":" inside a key never reads as a separator.
func (c *CompoundPredicate) Keys(inst Instance, target bool) ([]string, error) {
	if len(c.members) == 0 {
		return nil, nil
	}
	combined := []string{""}
	for i, p := range c.members {
		keys, err := p.Keys(inst, target)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, nil
		}
		next := make([]string, 0, len(combined)*len(keys))
		for _, prefix := range combined {
			for _, k := range keys {
				k = memberKeyEscaper.Replace(k)
				if i == 0 {
					next = append(next, k)
				} else {
					next = append(next, prefix+":"+k)
				}
			}
		}
		combined = next
	}
	return combined, nil
}

func (c *CompoundPredicate) String() string {
	parts := make([]string, len(c.members))
	for i, p := range c.members {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// membersOf flattens a predicate into its conjoined members.
func membersOf(p Predicate) []Predicate {
	if c, ok := p.(*CompoundPredicate); ok {
		return c.members
	}
	return []Predicate{p}
}
