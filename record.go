package blocking

import (
	"iter"
	"slices"
	"strings"
)

// RecordID identifies a record inside a Dataset.
type RecordID string

// Instance maps field names to field values. Values are either a string or a
// set (a []string, or a []any holding strings). Instances are treated as
// immutable while blocking.
type Instance map[string]any

// Record pairs an identifier with its field values.
type Record struct {
	ID       RecordID
	Instance Instance
}

// Dataset maps record identifiers to instances.
type Dataset map[RecordID]Instance

// Has reports whether the instance carries a non-empty value for field.
func (inst Instance) Has(field string) bool {
	v, ok := inst[field]
	return ok && !isEmptyValue(v)
}

// RecordsOf returns the records of a dataset ordered by ID, so repeated
// emission over the same dataset is deterministic.
func RecordsOf(data Dataset) iter.Seq[Record] {
	ids := make([]RecordID, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return func(yield func(Record) bool) {
		for _, id := range ids {
			if !yield(Record{ID: id, Instance: data[id]}) {
				return
			}
		}
	}
}

// RecordsFrom returns the records in slice order.
func RecordsFrom(records []Record) iter.Seq[Record] {
	return slices.Values(records)
}

// isEmptyValue reports whether v is missing, the empty string or an empty set.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

// asString returns v as a string value.
func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asSet returns v as a set of strings. A plain string is a one-element set.
func asSet(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		return []string{t}, true
	default:
		return nil, false
	}
}

// valueKey returns a canonical key used to deduplicate field values when
// collecting a field's corpus.
func valueKey(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return "s\x00" + s, true
	}
	if set, ok := asSet(v); ok {
		return "t\x00" + strings.Join(set, "\x1f"), true
	}
	return "", false
}
