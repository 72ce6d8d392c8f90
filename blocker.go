// Package blocking implements the block-key emitter.
//
// WHAT IS BLOCKING?
// Comparing every pair of records is O(n²). A blocker maps each record to a
// handful of block keys with cheap predicates; only records sharing a key are
// ever compared.
//
// HOW EMISSION WORKS:
// For every record and every predicate (identified by its ordinal) the
// predicate's raw keys are tagged with the ordinal and emitted together with
// the record ID. A record may be emitted under zero, one or many keys. A
// record with zero keys is never compared with anything.
//
// Emission is a single-pass pull stream. Blocks are never materialized:
// consumers group pairs by key themselves (see BlockSizes).
package blocking

import (
	"context"
	"iter"
	"slices"
	"time"
)

// Blocker streams records through an ordered set of predicates.
type Blocker struct {
	predicates []Predicate
	indices    *IndexManager

	logger           *Logger
	metrics          MetricsCollector
	progressInterval int
	largestBlocks    int
}

// NewBlocker creates a blocker over predicates. The predicate order fixes the
// ordinals used to tag keys. Indexed members are registered with a new
// IndexManager, reachable through Indices.
func NewBlocker(predicates []Predicate, opts ...Option) (*Blocker, error) {
	o := applyOptions(opts)
	indices, err := NewIndexManager(predicates, opts...)
	if err != nil {
		return nil, err
	}
	return &Blocker{
		predicates:       slices.Clone(predicates),
		indices:          indices,
		logger:           o.logger,
		metrics:          o.metrics,
		progressInterval: o.progressInterval,
		largestBlocks:    o.largestBlocks,
	}, nil
}

// Predicates returns the predicates in ordinal order.
func (b *Blocker) Predicates() []Predicate {
	return slices.Clone(b.predicates)
}

// Indices returns the manager owning the shared indices.
func (b *Blocker) Indices() *IndexManager {
	return b.indices
}

// BlockPair is one emitted (tagged block key, record ID) pair.
type BlockPair struct {
	Key string
	ID  RecordID
}

// Emit returns a stream of tagged block keys for records. target marks the
// records as the queried side of a record-linkage run.
//
// Every indexed predicate must have its index built first; otherwise the
// stream stops with a *StateError. ctx is checked at every progress
// checkpoint. The stream must be drained or closed.
func (b *Blocker) Emit(ctx context.Context, records iter.Seq[Record], target bool) *BlockStream {
	next, stop := iter.Pull(records)
	return &BlockStream{
		blocker: b,
		ctx:     ctx,
		target:  target,
		next:    next,
		stop:    stop,
		start:   time.Now(),
	}
}

// BlockStream is a finite, single-pass sequence of BlockPairs.
// It is not safe for concurrent use.
//
// Example:
//
//	stream := blocker.Emit(ctx, blocking.RecordsOf(data), false)
//	defer stream.Close()
//	for stream.Next() {
//		pair := stream.Pair()
//		...
//	}
//	if err := stream.Err(); err != nil { ... }
type BlockStream struct {
	blocker *Blocker
	ctx     context.Context
	target  bool
	next    func() (Record, bool)
	stop    func()

	pending []BlockPair
	current BlockPair
	err     error
	done    bool

	start   time.Time
	records int
	pairs   int
}

// Next advances to the next pair. It returns false when the records are
// exhausted or an error occurred.
func (s *BlockStream) Next() bool {
	for len(s.pending) == 0 {
		if s.done {
			return false
		}
		rec, ok := s.next()
		if !ok {
			s.finish(nil)
			return false
		}
		if err := s.block(rec); err != nil {
			s.finish(err)
			return false
		}
	}
	s.current = s.pending[0]
	s.pending = s.pending[1:]
	s.pairs++
	return true
}

// block runs every predicate over one record and queues its pairs.
func (s *BlockStream) block(rec Record) error {
	for ordinal, p := range s.blocker.predicates {
		keys, err := p.Keys(rec.Instance, s.target)
		if err != nil {
			return err
		}
		for _, k := range keys {
			s.pending = append(s.pending, BlockPair{Key: TagKey(k, ordinal), ID: rec.ID})
		}
	}

	i := s.records
	s.records++
	if i > 0 && i%s.blocker.progressInterval == 0 {
		s.blocker.logger.LogProgress(s.ctx, i, time.Since(s.start))
		if err := s.ctx.Err(); err != nil {
			s.pending = nil
			return err
		}
	}
	return nil
}

func (s *BlockStream) finish(err error) {
	if s.done {
		return
	}
	s.done = true
	s.err = err
	s.pending = nil
	s.stop()
	s.blocker.metrics.RecordEmission(s.records, s.pairs, time.Since(s.start), err)
}

// Pair returns the pair produced by the last call to Next.
func (s *BlockStream) Pair() BlockPair {
	return s.current
}

// Err returns the error that stopped the stream, if any.
func (s *BlockStream) Err() error {
	return s.err
}

// Close releases the record sequence. Closing a drained stream is a no-op.
func (s *BlockStream) Close() {
	s.finish(s.err)
}

// Records returns how many records were consumed so far.
func (s *BlockStream) Records() int {
	return s.records
}

// Pairs adapts the stream to a range-over-func sequence. Check Err after the
// loop.
func (s *BlockStream) Pairs() iter.Seq[BlockPair] {
	return func(yield func(BlockPair) bool) {
		for s.Next() {
			if !yield(s.current) {
				s.Close()
				return
			}
		}
	}
}
