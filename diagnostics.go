package blocking

import (
	"context"
	"fmt"
	"iter"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// ReportedPercentiles are the block size percentiles of a SizeStats.
var ReportedPercentiles = []int{25, 50, 75, 95, 99}

// BlockSize is the number of records (or pairs) under one block key.
type BlockSize struct {
	Key  string
	Size int64
}

// Percentile is one point of a size distribution.
type Percentile struct {
	Rank  int
	Value float64
}

// Label returns the percentile name used in log output, e.g. "p95".
func (p Percentile) Label() string {
	return "p" + strconv.Itoa(p.Rank)
}

// SizeStats summarizes a block size distribution.
type SizeStats struct {
	Blocks      int
	Mean        float64
	Percentiles []Percentile
	Largest     []BlockSize // descending size, ties by key
}

// Empty reports whether the distribution had no blocks ("no data").
func (s SizeStats) Empty() bool {
	return s.Blocks == 0
}

// Percentile returns the value at rank, if it was computed.
func (s SizeStats) Percentile(rank int) (float64, bool) {
	for _, p := range s.Percentiles {
		if p.Rank == rank {
			return p.Value, true
		}
	}
	return 0, false
}

// BlockSizes counts the records emitted under each block key. Keys are
// reported as "raw:ordinal:<predicate>" so the responsible predicate can be
// read off the key.
func (b *Blocker) BlockSizes(ctx context.Context, records iter.Seq[Record], target bool) (map[string]int64, error) {
	stream := b.Emit(ctx, records, target)
	defer stream.Close()

	counts := make(map[string]int64)
	for stream.Next() {
		counts[stream.Pair().Key]++
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	sizes := make(map[string]int64, len(counts))
	for k, n := range counts {
		sizes[b.describeKey(k)] += n
	}
	return sizes, nil
}

func (b *Blocker) describeKey(tagged string) string {
	raw, ordinal, err := SplitKey(tagged)
	if err != nil || ordinal >= len(b.predicates) {
		return tagged
	}
	return fmt.Sprintf("%s:%d:%s", raw, ordinal, b.predicates[ordinal])
}

// SizeDistribution reports the block count, mean size, the
// ReportedPercentiles and the largest blocks of sizes. An empty input yields
// an empty SizeStats instead of failing.
func SizeDistribution(sizes map[string]int64, largest int) SizeStats {
	if len(sizes) == 0 {
		return SizeStats{}
	}

	blocks := make([]BlockSize, 0, len(sizes))
	values := make([]float64, 0, len(sizes))
	for k, n := range sizes {
		blocks = append(blocks, BlockSize{Key: k, Size: n})
		values = append(values, float64(n))
	}
	sort.Float64s(values)

	stats := SizeStats{
		Blocks: len(sizes),
		Mean:   stat.Mean(values, nil),
	}
	for _, rank := range ReportedPercentiles {
		stats.Percentiles = append(stats.Percentiles, Percentile{
			Rank:  rank,
			Value: percentile(values, float64(rank)),
		})
	}

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Size != blocks[j].Size {
			return blocks[i].Size > blocks[j].Size
		}
		return blocks[i].Key < blocks[j].Key
	})
	if largest > len(blocks) {
		largest = len(blocks)
	}
	if largest > 0 {
		stats.Largest = blocks[:largest]
	}
	return stats
}

// percentile interpolates linearly between the closest ranks of sorted,
// placing rank p at position p/100 × (n-1).
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	if lo == hi {
		return sorted[int(lo)]
	}
	return sorted[int(lo)] + (sorted[int(hi)]-sorted[int(lo)])*(pos-lo)
}

// PairProjection is the predicted comparison volume of a blocking scheme.
type PairProjection struct {
	PerKey map[string]int64
	Stats  SizeStats
	Total  int64
}

// ProjectedPairs predicts how many pairs each block produces.
//
// With sizes2 nil (deduplication) a block of n records counts n × n pairs.
// This is an approximation: it neither uses n(n-1)/2 nor removes pairs
// blocked together by several predicates, so the true comparison volume is
// generally lower.
//
// With sizes2 set (record linkage) a key counts n1 × n2 pairs when present in
// both datasets and nothing otherwise.
func ProjectedPairs(sizes1, sizes2 map[string]int64, largest int) PairProjection {
	perKey := make(map[string]int64, len(sizes1))
	for k, n1 := range sizes1 {
		if sizes2 == nil {
			perKey[k] = n1 * n1
			continue
		}
		if n2 := sizes2[k]; n2 > 0 {
			perKey[k] = n1 * n2
		}
	}

	var total int64
	for _, n := range perKey {
		total += n
	}
	return PairProjection{
		PerKey: perKey,
		Stats:  SizeDistribution(perKey, largest),
		Total:  total,
	}
}

// StatsReport is the full block quality report of one or two datasets.
type StatsReport struct {
	Data1 SizeStats
	Data2 *SizeStats // nil when deduplicating a single dataset
	Pairs PairProjection
}

// Stats blocks data1 (and data2 as the target side, when not nil), logs the
// size distributions and the projected pairs to be scored, and returns them.
func (b *Blocker) Stats(ctx context.Context, data1, data2 Dataset) (StatsReport, error) {
	sizes1, err := b.BlockSizes(ctx, RecordsOf(data1), false)
	if err != nil {
		return StatsReport{}, fmt.Errorf("block sizes for data1: %w", err)
	}
	report := StatsReport{Data1: SizeDistribution(sizes1, b.largestBlocks)}
	b.logger.LogSizeStats(ctx, "block stats for data1", report.Data1)

	var sizes2 map[string]int64
	if data2 != nil {
		sizes2, err = b.BlockSizes(ctx, RecordsOf(data2), true)
		if err != nil {
			return StatsReport{}, fmt.Errorf("block sizes for data2: %w", err)
		}
		stats2 := SizeDistribution(sizes2, b.largestBlocks)
		report.Data2 = &stats2
		b.logger.LogSizeStats(ctx, "block stats for data2", stats2)
	}

	report.Pairs = ProjectedPairs(sizes1, sizes2, b.largestBlocks)
	b.logger.LogSizeStats(ctx, "blocked pairs to be scored", report.Pairs.Stats)
	b.logger.InfoContext(ctx, "total blocked pairs", "pairs", report.Pairs.Total)
	return report, nil
}

// InstancePair is two instances labeled together.
type InstancePair [2]Instance

// TrainingPairs are labeled example pairs.
type TrainingPairs struct {
	Match    []InstancePair `yaml:"match" json:"match"`
	Distinct []InstancePair `yaml:"distinct" json:"distinct"`
}

// RecallStats counts the match pairs that share at least one block.
type RecallStats struct {
	Pairs    int
	Recalled int
}

// Recall returns the recalled fraction of match pairs. It is undefined
// (false) without match pairs.
func (r RecallStats) Recall() (float64, bool) {
	if r.Pairs == 0 {
		return 0, false
	}
	return float64(r.Recalled) / float64(r.Pairs), true
}

// RecallEstimate measures how many labeled matches blocking would present to
// the classifier at all, a ceiling on end-to-end recall. A pair counts as
// recalled as soon as one predicate gives the first record keys and the
// second record, as target, shares one of them. Indices must be built.
func (b *Blocker) RecallEstimate(ctx context.Context, pairs TrainingPairs) (RecallStats, error) {
	var stats RecallStats
	for _, pair := range pairs.Match {
		recalled, err := b.recalls(pair)
		if err != nil {
			return RecallStats{}, err
		}
		stats.Pairs++
		if recalled {
			stats.Recalled++
		}
	}
	b.logger.LogRecall(ctx, stats)
	b.metrics.RecordRecall(stats.Pairs, stats.Recalled)
	return stats, nil
}

func (b *Blocker) recalls(pair InstancePair) (bool, error) {
	for _, p := range b.predicates {
		keys1, err := p.Keys(pair[0], false)
		if err != nil {
			return false, err
		}
		if len(keys1) == 0 {
			continue
		}
		keys2, err := p.Keys(pair[1], true)
		if err != nil {
			return false, err
		}
		shared := make(map[string]struct{}, len(keys1))
		for _, k := range keys1 {
			shared[k] = struct{}{}
		}
		for _, k := range keys2 {
			if _, ok := shared[k]; ok {
				return true, nil
			}
		}
	}
	return false, nil
}
