package blocking

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// KeyFunc derives raw block keys from a non-empty field value.
type KeyFunc func(value any) []string

// SimplePredicate applies a KeyFunc to one field. It holds no state.
type SimplePredicate struct {
	name  string
	field string
	fn    KeyFunc
}

// Compile-time checks to ensure SimplePredicate implements Predicate
var _ Predicate = (*SimplePredicate)(nil)

// NewSimplePredicate wraps fn as a predicate on field. name describes fn in
// diagnostics output.
func NewSimplePredicate(name, field string, fn KeyFunc) *SimplePredicate {
	return &SimplePredicate{name: name, field: field, fn: fn}
}

// Field returns the field the predicate reads.
func (p *SimplePredicate) Field() string { return p.field }

// Kind returns SimplePredicateKind.
func (p *SimplePredicate) Kind() PredicateKind { return SimplePredicateKind }

// Keys returns no keys for an empty field value.
func (p *SimplePredicate) Keys(inst Instance, _ bool) ([]string, error) {
	v, ok := inst[p.field]
	if !ok || isEmptyValue(v) {
		return nil, nil
	}
	return p.fn(v), nil
}

func (p *SimplePredicate) String() string {
	return fmt.Sprintf("(%s, %s)", p.name, p.field)
}

// WholeFieldPredicate blocks on the exact string value.
func WholeFieldPredicate(field string) *SimplePredicate {
	return NewSimplePredicate("wholeFieldPredicate", field, wholeField)
}

// TokenFieldPredicate blocks on every distinct word token.
func TokenFieldPredicate(field string) *SimplePredicate {
	return NewSimplePredicate("tokenFieldPredicate", field, tokenField)
}

// FirstTokenPredicate blocks on the first word token.
func FirstTokenPredicate(field string) *SimplePredicate {
	return NewSimplePredicate("firstTokenPredicate", field, firstToken)
}

// WholeSetPredicate blocks on the whole set, element order preserved.
func WholeSetPredicate(field string) *SimplePredicate {
	return NewSimplePredicate("wholeSetPredicate", field, wholeSet)
}

// CommonSetElementPredicate blocks on every distinct set element.
func CommonSetElementPredicate(field string) *SimplePredicate {
	return NewSimplePredicate("commonSetElementPredicate", field, commonSetElement)
}

// FirstSetElementPredicate blocks on the smallest set element.
func FirstSetElementPredicate(field string) *SimplePredicate {
	return NewSimplePredicate("firstSetElementPredicate", field, firstSetElement)
}

// LastSetElementPredicate blocks on the largest set element.
func LastSetElementPredicate(field string) *SimplePredicate {
	return NewSimplePredicate("lastSetElementPredicate", field, lastSetElement)
}

// CommonTwoElementsPredicate blocks on adjacent pairs of the sorted set.
func CommonTwoElementsPredicate(field string) *SimplePredicate {
	return NewSimplePredicate("commonTwoElementsPredicate", field, commonElements(2))
}

// CommonThreeElementsPredicate blocks on adjacent triples of the sorted set.
func CommonThreeElementsPredicate(field string) *SimplePredicate {
	return NewSimplePredicate("commonThreeElementsPredicate", field, commonElements(3))
}

// MagnitudeOfCardinalityPredicate blocks on the rounded log10 of the set size.
func MagnitudeOfCardinalityPredicate(field string) *SimplePredicate {
	return NewSimplePredicate("magnitudeOfCardinality", field, magnitudeOfCardinality)
}

func wholeField(v any) []string {
	s, ok := asString(v)
	if !ok {
		return nil
	}
	return []string{s}
}

func tokenField(v any) []string {
	s, ok := asString(v)
	if !ok {
		return nil
	}
	return sortedUnique(tokenize(normalize(s)))
}

func firstToken(v any) []string {
	s, ok := asString(v)
	if !ok {
		return nil
	}
	tokens := tokenize(normalize(s))
	if len(tokens) == 0 {
		return nil
	}
	return tokens[:1]
}

func wholeSet(v any) []string {
	set, ok := asSet(v)
	if !ok {
		return nil
	}
	return []string{"(" + strings.Join(set, ", ") + ")"}
}

func commonSetElement(v any) []string {
	set, ok := asSet(v)
	if !ok {
		return nil
	}
	return sortedUnique(set)
}

func firstSetElement(v any) []string {
	set, ok := asSet(v)
	if !ok || len(set) == 0 {
		return nil
	}
	return []string{slices.Min(set)}
}

func lastSetElement(v any) []string {
	set, ok := asSet(v)
	if !ok || len(set) == 0 {
		return nil
	}
	return []string{slices.Max(set)}
}

func commonElements(n int) KeyFunc {
	return func(v any) []string {
		set, ok := asSet(v)
		if !ok {
			return nil
		}
		sorted := sortedUnique(set)
		if len(sorted) < n {
			return nil
		}
		keys := make([]string, 0, len(sorted)-n+1)
		for i := 0; i+n <= len(sorted); i++ {
			keys = append(keys, strings.Join(sorted[i:i+n], " "))
		}
		return keys
	}
}

func magnitudeOfCardinality(v any) []string {
	set, ok := asSet(v)
	if !ok || len(set) == 0 {
		return nil
	}
	return []string{strconv.Itoa(int(math.Round(math.Log10(float64(len(set))))))}
}

func sortedUnique(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
