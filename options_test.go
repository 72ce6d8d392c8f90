package blocking

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestApplyOptions tests defaults and overrides
func TestApplyOptions(t *testing.T) {
	o := applyOptions(nil)
	assert.Equal(t, DefaultProgressInterval, o.progressInterval)
	assert.Equal(t, DefaultLargestBlocks, o.largestBlocks)
	assert.Equal(t, runtime.GOMAXPROCS(0), o.buildConcurrency)
	assert.IsType(t, NoopMetricsCollector{}, o.metrics)

	metrics := &BasicMetricsCollector{}
	o = applyOptions([]Option{
		WithProgressInterval(50),
		WithBuildConcurrency(3),
		WithLargestBlocks(0),
		WithMetrics(metrics),
	})
	assert.Equal(t, 50, o.progressInterval)
	assert.Equal(t, 3, o.buildConcurrency)
	assert.Equal(t, 0, o.largestBlocks)
	assert.Same(t, metrics, o.metrics)

	// invalid values keep the defaults
	o = applyOptions([]Option{
		WithProgressInterval(0),
		WithBuildConcurrency(-1),
		WithLargestBlocks(-1),
		WithMetrics(nil),
		WithLogger(nil),
	})
	assert.Equal(t, DefaultProgressInterval, o.progressInterval)
	assert.Equal(t, runtime.GOMAXPROCS(0), o.buildConcurrency)
	assert.Equal(t, DefaultLargestBlocks, o.largestBlocks)
	assert.IsType(t, NoopMetricsCollector{}, o.metrics)
	assert.NotNil(t, o.logger)
}
