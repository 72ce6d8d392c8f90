package blocking

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines an interface for collecting operational metrics
// of a blocking run.
type MetricsCollector interface {
	// RecordIndexBuild is called after one shared index was built.
	// docs is the number of values fed to the index.
	RecordIndexBuild(key IndexKey, docs int, duration time.Duration, err error)

	// RecordIndexReset is called after the indices were released.
	RecordIndexReset(indices int)

	// RecordEmission is called when a block stream ends, successfully or not.
	RecordEmission(records, pairs int, duration time.Duration, err error)

	// RecordRecall is called after each recall estimate.
	RecordRecall(pairs, recalled int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIndexBuild(IndexKey, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordIndexReset(int)                                 {}
func (NoopMetricsCollector) RecordEmission(int, int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordRecall(int, int)                                {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	IndexBuilds      atomic.Int64
	IndexBuildErrors atomic.Int64
	IndexedDocs      atomic.Int64
	IndexResets      atomic.Int64
	Emissions        atomic.Int64
	EmissionErrors   atomic.Int64
	EmittedRecords   atomic.Int64
	EmittedPairs     atomic.Int64
	RecallPairs      atomic.Int64
	RecalledPairs    atomic.Int64
}

// RecordIndexBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndexBuild(_ IndexKey, docs int, _ time.Duration, err error) {
	b.IndexBuilds.Add(1)
	if err != nil {
		b.IndexBuildErrors.Add(1)
		return
	}
	b.IndexedDocs.Add(int64(docs))
}

// RecordIndexReset implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndexReset(int) {
	b.IndexResets.Add(1)
}

// RecordEmission implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEmission(records, pairs int, _ time.Duration, err error) {
	b.Emissions.Add(1)
	if err != nil {
		b.EmissionErrors.Add(1)
	}
	b.EmittedRecords.Add(int64(records))
	b.EmittedPairs.Add(int64(pairs))
}

// RecordRecall implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecall(pairs, recalled int) {
	b.RecallPairs.Add(int64(pairs))
	b.RecalledPairs.Add(int64(recalled))
}

// PrometheusCollector exports blocking metrics to Prometheus.
type PrometheusCollector struct {
	indexBuilds    *prometheus.CounterVec
	indexBuildTime *prometheus.HistogramVec
	indexedDocs    *prometheus.CounterVec
	indexResets    prometheus.Counter
	records        prometheus.Counter
	pairs          prometheus.Counter
	emissionTime   *prometheus.HistogramVec
	recall         prometheus.Gauge
}

// NewPrometheusCollector creates the collectors and registers them with reg.
// Passing prometheus.DefaultRegisterer exposes them on the default registry.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	c := &PrometheusCollector{
		indexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blocking_index_builds_total",
			Help: "Total index builds by field, index kind and status",
		}, []string{"field", "index", "status"}),
		indexBuildTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blocking_index_build_seconds",
			Help:    "Duration of index builds",
			Buckets: prometheus.DefBuckets,
		}, []string{"field", "index"}),
		indexedDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blocking_indexed_documents_total",
			Help: "Total values fed to indices",
		}, []string{"field", "index"}),
		indexResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blocking_index_resets_total",
			Help: "Total index resets",
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blocking_records_total",
			Help: "Total records streamed through the predicates",
		}),
		pairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blocking_block_keys_total",
			Help: "Total (block key, record id) pairs emitted",
		}),
		emissionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blocking_emission_seconds",
			Help:    "Duration of block streams",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"status"}),
		recall: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blocking_estimated_recall",
			Help: "Last estimated blocking recall",
		}),
	}
	for _, col := range []prometheus.Collector{
		c.indexBuilds, c.indexBuildTime, c.indexedDocs, c.indexResets,
		c.records, c.pairs, c.emissionTime, c.recall,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordIndexBuild implements MetricsCollector.
func (c *PrometheusCollector) RecordIndexBuild(key IndexKey, docs int, duration time.Duration, err error) {
	c.indexBuilds.WithLabelValues(key.Field, string(key.Kind), statusLabel(err)).Inc()
	if err != nil {
		return
	}
	c.indexBuildTime.WithLabelValues(key.Field, string(key.Kind)).Observe(duration.Seconds())
	c.indexedDocs.WithLabelValues(key.Field, string(key.Kind)).Add(float64(docs))
}

// RecordIndexReset implements MetricsCollector.
func (c *PrometheusCollector) RecordIndexReset(int) {
	c.indexResets.Inc()
}

// RecordEmission implements MetricsCollector.
func (c *PrometheusCollector) RecordEmission(records, pairs int, duration time.Duration, err error) {
	c.records.Add(float64(records))
	c.pairs.Add(float64(pairs))
	c.emissionTime.WithLabelValues(statusLabel(err)).Observe(duration.Seconds())
}

// RecordRecall implements MetricsCollector.
func (c *PrometheusCollector) RecordRecall(pairs, recalled int) {
	if pairs == 0 {
		return
	}
	c.recall.Set(float64(recalled) / float64(pairs))
}
