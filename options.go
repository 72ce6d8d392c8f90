package blocking

import "runtime"

const (
	// DefaultProgressInterval is the record cadence of emission progress logs.
	DefaultProgressInterval = 10000

	// DefaultLargestBlocks is how many of the largest blocks a size
	// distribution reports.
	DefaultLargestBlocks = 10
)

type options struct {
	logger           *Logger
	metrics          MetricsCollector
	progressInterval int
	buildConcurrency int
	largestBlocks    int
}

// Option configures a Blocker or an IndexManager.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           NewLogger(nil),
		metrics:          NoopMetricsCollector{},
		progressInterval: DefaultProgressInterval,
		buildConcurrency: runtime.GOMAXPROCS(0),
		largestBlocks:    DefaultLargestBlocks,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the structured logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetrics sets the metrics collector. If nil is passed, metrics are
// discarded.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithProgressInterval sets how many records pass between progress logs and
// cancellation checks during emission. Values <= 0 keep the default.
func WithProgressInterval(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.progressInterval = n
		}
	}
}

// WithBuildConcurrency bounds how many fields are indexed in parallel by
// BuildAll. Values <= 0 keep the default (GOMAXPROCS).
func WithBuildConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buildConcurrency = n
		}
	}
}

// WithLargestBlocks sets how many of the largest blocks Stats reports.
// Values < 0 keep the default.
func WithLargestBlocks(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.largestBlocks = n
		}
	}
}
