package blocking

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Compile-time checks to ensure IndexManager implements IndexResolver
var _ IndexResolver = (*IndexManager)(nil)

// fieldGroup holds the indexed predicates of one field, grouped by index kind
// in registration order.
type fieldGroup struct {
	kinds      []IndexKind
	predicates map[IndexKind][]IndexedPredicate
}

// IndexManager groups indexed predicates by field and index kind and owns the
// shared index of every group.
//
// Predicates never own their index. They resolve it through the manager on
// every call, so Reset releases all index memory at once and any later call
// fails with a StateError until the index is built again.
//
// Build and BuildAll may run while nothing else uses the manager's
// predicates. Reset must not run concurrently with emission or builds.
type IndexManager struct {
	logger      *Logger
	metrics     MetricsCollector
	concurrency int

	fields  []string
	groups  map[string]*fieldGroup
	managed []IndexedPredicate

	mu      sync.RWMutex
	indices map[IndexKey]Index
}

// NewIndexManager registers every indexed member of predicates. Simple
// predicates are ignored. Compound predicates are walked member by member.
//
// Returns a *ConfigurationError if a predicate whose kind requires an index
// does not implement IndexedPredicate or names no field or index kind.
func NewIndexManager(predicates []Predicate, opts ...Option) (*IndexManager, error) {
	o := applyOptions(opts)
	m := &IndexManager{
		logger:      o.logger,
		metrics:     o.metrics,
		concurrency: o.buildConcurrency,
		groups:      make(map[string]*fieldGroup),
		indices:     make(map[IndexKey]Index),
	}

	for _, full := range predicates {
		for _, p := range membersOf(full) {
			if !p.Kind().RequiresIndex() {
				continue
			}
			ip, ok := p.(IndexedPredicate)
			if !ok {
				return nil, &ConfigurationError{
					Reason: fmt.Sprintf("predicate %s of kind %s requires an index but does not implement IndexedPredicate", p, p.Kind()),
				}
			}
			if err := m.register(ip); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *IndexManager) register(p IndexedPredicate) error {
	key := p.Requirement()
	if key.Field == "" {
		return &ConfigurationError{Reason: fmt.Sprintf("indexed predicate %s names no field", p)}
	}
	if key.Kind == "" {
		return &ConfigurationError{Field: key.Field, Reason: fmt.Sprintf("indexed predicate %s names no index kind", p)}
	}

	group, ok := m.groups[key.Field]
	if !ok {
		group = &fieldGroup{predicates: make(map[IndexKind][]IndexedPredicate)}
		m.groups[key.Field] = group
		m.fields = append(m.fields, key.Field)
	}
	if _, ok := group.predicates[key.Kind]; !ok {
		group.kinds = append(group.kinds, key.Kind)
	}
	group.predicates[key.Kind] = append(group.predicates[key.Kind], p)
	m.managed = append(m.managed, p)
	p.Attach(m)
	return nil
}

// Fields returns the fields with at least one indexed predicate, in
// registration order.
func (m *IndexManager) Fields() []string {
	return slices.Clone(m.fields)
}

// Keys returns every registered index key, grouped by field.
func (m *IndexManager) Keys() []IndexKey {
	var keys []IndexKey
	for _, field := range m.fields {
		for _, kind := range m.groups[field].kinds {
			keys = append(keys, IndexKey{Field: field, Kind: kind})
		}
	}
	return keys
}

// Predicates returns the predicates sharing the index identified by key.
func (m *IndexManager) Predicates(key IndexKey) []IndexedPredicate {
	group, ok := m.groups[key.Field]
	if !ok {
		return nil
	}
	return slices.Clone(group.predicates[key.Kind])
}

// Lookup returns the built index for key.
// Returns an error wrapping ErrIndexNotBuilt when none is published.
func (m *IndexManager) Lookup(key IndexKey) (Index, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.indices[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotBuilt, key)
	}
	return idx, nil
}

// IndexFor returns the index a predicate currently resolves to.
func (m *IndexManager) IndexFor(p IndexedPredicate) (Index, bool) {
	idx, err := m.Lookup(p.Requirement())
	return idx, err == nil
}

// Build indexes the distinct values of field for every index kind the field
// needs, finalizes each index and publishes it to all predicates of its
// group. An index already built for a group is reused and extended rather
// than rebuilt. Empty values are skipped. Fields without indexed predicates
// are a no-op. A canceled ctx stops before the next index kind and is
// reported as a failed build.
func (m *IndexManager) Build(ctx context.Context, field string, values []any) error {
	group, ok := m.groups[field]
	if !ok {
		m.logger.DebugContext(ctx, "no indexed predicates on field", "field", field)
		return nil
	}

	for _, kind := range group.kinds {
		start := time.Now()
		key := IndexKey{Field: field, Kind: kind}
		predicates := group.predicates[kind]
		if err := ctx.Err(); err != nil {
			m.logger.LogIndexBuild(ctx, key, 0, len(predicates), time.Since(start), err)
			m.metrics.RecordIndexBuild(key, 0, time.Since(start), err)
			return err
		}
		// every predicate of the group preprocesses the same way
		lead := predicates[0]

		m.mu.RLock()
		idx, exists := m.indices[key]
		m.mu.RUnlock()
		if !exists {
			idx = lead.NewIndex()
		}

		docs := 0
		for _, v := range values {
			if isEmptyValue(v) {
				continue
			}
			idx.Index(lead.Preprocess(v))
			docs++
		}
		idx.InitSearch()

		m.mu.Lock()
		m.indices[key] = idx
		m.mu.Unlock()

		for _, p := range predicates {
			m.logger.DebugContext(ctx, "index attached", "predicate", p.String(), "index", key.String())
		}
		elapsed := time.Since(start)
		m.logger.LogIndexBuild(ctx, key, docs, len(predicates), elapsed, nil)
		m.metrics.RecordIndexBuild(key, docs, elapsed, nil)
	}
	return nil
}

// BuildAll builds the index of every registered field from the unique
// non-empty values of that field across data. Fields are built concurrently;
// each field's indices are independent.
//
// Returns a *ConfigurationError if a non-empty dataset has no record carrying
// a registered field at all.
func (m *IndexManager) BuildAll(ctx context.Context, data Dataset) error {
	corpora := make([][]any, len(m.fields))
	for i, field := range m.fields {
		values, present := uniqueValues(data, field)
		if !present && len(data) > 0 {
			return &ConfigurationError{Field: field, Reason: "no record carries this field, cannot build its index"}
		}
		corpora[i] = values
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, field := range m.fields {
		g.Go(func() error {
			if err := m.Build(gctx, field, corpora[i]); err != nil {
				return fmt.Errorf("build index for field %q: %w", field, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Unbuild removes values from the indices of field and finalizes them again.
// Used when records leave the pool that was indexed.
//
// Returns a *StateError if an index of the field was never built.
func (m *IndexManager) Unbuild(ctx context.Context, field string, values []any) error {
	group, ok := m.groups[field]
	if !ok {
		return nil
	}

	for _, kind := range group.kinds {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := IndexKey{Field: field, Kind: kind}
		lead := group.predicates[kind][0]
		idx, err := m.Lookup(key)
		if err != nil {
			return newStateError(lead.String(), key, err)
		}
		for _, v := range values {
			if isEmptyValue(v) {
				continue
			}
			idx.Unindex(lead.Preprocess(v))
		}
		idx.InitSearch()
		m.logger.DebugContext(ctx, "index shrunk", "index", key.String(), "removed", len(values))
	}
	return nil
}

// Reset releases every built index and clears the caches of all managed
// predicates. Indexed predicates fail with a StateError until rebuilt.
func (m *IndexManager) Reset() {
	m.mu.Lock()
	released := len(m.indices)
	m.indices = make(map[IndexKey]Index)
	m.mu.Unlock()

	for _, p := range m.managed {
		p.ResetCache()
	}
	m.logger.LogIndexReset(context.Background(), released, len(m.managed))
	m.metrics.RecordIndexReset(released)
}

// uniqueValues returns the distinct non-empty values of field in record ID
// order, and whether any record carries the field at all.
func uniqueValues(data Dataset, field string) ([]any, bool) {
	present := false
	seen := make(map[string]struct{})
	var values []any
	for rec := range RecordsOf(data) {
		v, ok := rec.Instance[field]
		if !ok {
			continue
		}
		present = true
		if isEmptyValue(v) {
			continue
		}
		key, ok := valueKey(v)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		values = append(values, v)
	}
	return values, present
}
