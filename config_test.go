package blocking

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
progress_interval: 500
largest_blocks: 3
build_concurrency: 2
log_level: debug
predicates:
  - [{type: whole_field, field: city}]
  - [{type: tfidf_text_canopy, field: name, threshold: 0.6},
     {type: first_token, field: name}]
  - [{type: common_set_element, field: tags}]
fields:
  - {field: tags, type: Set, corpus: [[go, rust], [go]]}
  - {field: aliases, type: MinDistanceSet}
`

// TestParseConfig tests YAML decoding
func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.ProgressInterval)
	assert.Equal(t, 3, cfg.LargestBlocks)
	assert.Equal(t, 2, cfg.BuildConcurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.Len(t, cfg.Predicates, 3)
	assert.Equal(t, PredicateConfig{Type: "tfidf_text_canopy", Field: "name", Threshold: 0.6}, cfg.Predicates[1][0])
	require.Len(t, cfg.Fields, 2)
	assert.Equal(t, [][]string{{"go", "rust"}, {"go"}}, cfg.Fields[0].Corpus)
	assert.Equal(t, MinDistanceSetFieldType, cfg.Fields[1].Type)
}

// TestParseConfigDefaults tests defaults for omitted settings
func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("log_level: info\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, DefaultProgressInterval, cfg.ProgressInterval)
	assert.Equal(t, DefaultLargestBlocks, cfg.LargestBlocks)
	assert.Equal(t, "info", cfg.LogLevel)

	_, err = ParseConfig([]byte("predicates: {"))
	assert.Error(t, err)
}

// TestLoadConfig tests reading from disk
func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	path := filepath.Join(dir, "blocking.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.ProgressInterval)
}

// TestConfigBuildPredicates tests the predicate registry built from config
func TestConfigBuildPredicates(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	predicates, err := cfg.BuildPredicates()
	require.NoError(t, err)
	require.Len(t, predicates, 3)

	assert.Equal(t, "(wholeFieldPredicate, city)", predicates[0].String())
	compound, ok := predicates[1].(*CompoundPredicate)
	require.True(t, ok)
	assert.Equal(t, CanopyPredicateKind, compound.Kind())
	assert.Equal(t, "((TfidfTextCanopyPredicate: 0.6, name), (firstTokenPredicate, name))", compound.String())
}

// TestConfigBuildPredicatesErrors tests rejected predicate configurations
func TestConfigBuildPredicatesErrors(t *testing.T) {
	tests := []struct {
		name  string
		rules [][]PredicateConfig
	}{
		{name: "empty rule", rules: [][]PredicateConfig{{}}},
		{name: "unknown type", rules: [][]PredicateConfig{{{Type: "soundex", Field: "name"}}}},
		{name: "missing field", rules: [][]PredicateConfig{{{Type: "whole_field"}}}},
		{name: "missing threshold", rules: [][]PredicateConfig{{{Type: "tfidf_text_search", Field: "name"}}}},
		{name: "threshold too high", rules: [][]PredicateConfig{{{Type: "tfidf_set_canopy", Field: "tags", Threshold: 1.5}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Predicates = tt.rules
			_, err := cfg.BuildPredicates()
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

// TestConfigBuildVariables tests set variables built from config
func TestConfigBuildVariables(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	vars, err := cfg.BuildVariables()
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Equal(t, SetFieldType, vars["tags"].Type())

	cfg.Fields = append(cfg.Fields, FieldDefinition{Field: "tags", Type: MinDistanceSetFieldType})
	_, err = cfg.BuildVariables()
	assert.ErrorIs(t, err, ErrConfiguration)
}

// TestConfigNewBlocker tests a blocker configured end to end
func TestConfigNewBlocker(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	b, err := cfg.NewBlocker(WithLogger(NoopLogger()))
	require.NoError(t, err)
	assert.Equal(t, 500, b.progressInterval)
	assert.Equal(t, 3, b.largestBlocks)
	assert.Equal(t, []string{"name"}, b.Indices().Fields())

	data := Dataset{
		"1": {"city": "Paris", "name": "Ada Lovelace", "tags": []string{"go"}},
		"2": {"city": "Paris", "name": "Ada Lovelace"},
	}
	require.NoError(t, b.Indices().BuildAll(context.Background(), data))
	sizes, err := b.BlockSizes(context.Background(), RecordsOf(data), false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sizes["Paris:0:(wholeFieldPredicate, city)"])
	assert.Equal(t, int64(2), sizes["0:ada:1:((TfidfTextCanopyPredicate: 0.6, name), (firstTokenPredicate, name))"])

	cfg.LogLevel = "loud"
	_, err = cfg.NewBlocker()
	assert.ErrorIs(t, err, ErrConfiguration)
}
