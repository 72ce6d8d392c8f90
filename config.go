package blocking

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// PredicateConfig describes one predicate by its registered type name.
type PredicateConfig struct {
	Type      string  `yaml:"type"`
	Field     string  `yaml:"field"`
	Threshold float64 `yaml:"threshold,omitempty"`
}

// Config is the configuration of a blocking run.
//
// Example:
//
//	progress_interval: 10000
//	largest_blocks: 10
//	predicates:
//	  - [{type: whole_field, field: name}]
//	  - [{type: tfidf_text_canopy, field: address, threshold: 0.6},
//	     {type: first_token, field: city}]
//	fields:
//	  - {field: tags, type: Set, corpus: [[a, b], [c]]}
type Config struct {
	ProgressInterval int    `yaml:"progress_interval"`
	LargestBlocks    int    `yaml:"largest_blocks"`
	BuildConcurrency int    `yaml:"build_concurrency"`
	LogLevel         string `yaml:"log_level"`
	// Predicates lists the blocking rules in ordinal order. A rule with
	// several members is their conjunction.
	Predicates [][]PredicateConfig `yaml:"predicates"`
	Fields     []FieldDefinition   `yaml:"fields"`
}

// predicateFactories maps configuration type names to constructors.
var predicateFactories = map[string]func(field string, threshold float64) Predicate{
	"whole_field":              func(f string, _ float64) Predicate { return WholeFieldPredicate(f) },
	"token_field":              func(f string, _ float64) Predicate { return TokenFieldPredicate(f) },
	"first_token":              func(f string, _ float64) Predicate { return FirstTokenPredicate(f) },
	"whole_set":                func(f string, _ float64) Predicate { return WholeSetPredicate(f) },
	"common_set_element":       func(f string, _ float64) Predicate { return CommonSetElementPredicate(f) },
	"first_set_element":        func(f string, _ float64) Predicate { return FirstSetElementPredicate(f) },
	"last_set_element":         func(f string, _ float64) Predicate { return LastSetElementPredicate(f) },
	"common_two_elements":      func(f string, _ float64) Predicate { return CommonTwoElementsPredicate(f) },
	"common_three_elements":    func(f string, _ float64) Predicate { return CommonThreeElementsPredicate(f) },
	"magnitude_of_cardinality": func(f string, _ float64) Predicate { return MagnitudeOfCardinalityPredicate(f) },
	"tfidf_text_search":        func(f string, t float64) Predicate { return NewTfidfTextSearchPredicate(f, t) },
	"tfidf_set_search":         func(f string, t float64) Predicate { return NewTfidfSetSearchPredicate(f, t) },
	"tfidf_text_canopy":        func(f string, t float64) Predicate { return NewTfidfTextCanopyPredicate(f, t) },
	"tfidf_set_canopy":         func(f string, t float64) Predicate { return NewTfidfSetCanopyPredicate(f, t) },
}

// DefaultConfig returns a configuration with no predicates and default
// tuning.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyConfigDefaults(cfg)
	return cfg
}

// LoadConfig reads a YAML config from path. If the file does not exist,
// returns defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML config and fills in defaults.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse blocking config: %w", err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

func applyConfigDefaults(cfg *Config) {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.LargestBlocks <= 0 {
		cfg.LargestBlocks = DefaultLargestBlocks
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// BuildPredicates constructs the predicate registry.
// Returns a *ConfigurationError for unknown types, missing fields, empty
// rules, or indexed predicates without a threshold in (0, 1].
func (c *Config) BuildPredicates() ([]Predicate, error) {
	predicates := make([]Predicate, 0, len(c.Predicates))
	for i, rule := range c.Predicates {
		if len(rule) == 0 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("predicate %d has no members", i)}
		}
		members := make([]Predicate, 0, len(rule))
		for _, pc := range rule {
			p, err := pc.build()
			if err != nil {
				return nil, err
			}
			members = append(members, p)
		}
		if len(members) == 1 {
			predicates = append(predicates, members[0])
		} else {
			predicates = append(predicates, NewCompoundPredicate(members...))
		}
	}
	return predicates, nil
}

func (pc PredicateConfig) build() (Predicate, error) {
	factory, ok := predicateFactories[pc.Type]
	if !ok {
		return nil, &ConfigurationError{Field: pc.Field, Reason: fmt.Sprintf("unknown predicate type %q", pc.Type)}
	}
	if pc.Field == "" {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("predicate type %q has no field", pc.Type)}
	}
	p := factory(pc.Field, pc.Threshold)
	if p.Kind().RequiresIndex() && (pc.Threshold <= 0 || pc.Threshold > 1) {
		return nil, &ConfigurationError{Field: pc.Field, Reason: fmt.Sprintf("predicate type %q needs a threshold in (0, 1], got %g", pc.Type, pc.Threshold)}
	}
	return p, nil
}

// BuildVariables constructs the set variables keyed by field name.
func (c *Config) BuildVariables() (map[string]*SetVariable, error) {
	vars := make(map[string]*SetVariable, len(c.Fields))
	for _, def := range c.Fields {
		v, err := NewSetVariable(def)
		if err != nil {
			return nil, err
		}
		if _, dup := vars[def.Field]; dup {
			return nil, &ConfigurationError{Field: def.Field, Reason: "field defined twice"}
		}
		vars[def.Field] = v
	}
	return vars, nil
}

// Options converts the tuning settings into blocker options.
func (c *Config) Options() ([]Option, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid log level %q", c.LogLevel)}
	}
	return []Option{
		WithLogger(NewTextLogger(level)),
		WithProgressInterval(c.ProgressInterval),
		WithLargestBlocks(c.LargestBlocks),
		WithBuildConcurrency(c.BuildConcurrency),
	}, nil
}

// NewBlocker builds the predicates and returns a blocker over them. extra
// options are applied after the configured ones.
func (c *Config) NewBlocker(extra ...Option) (*Blocker, error) {
	predicates, err := c.BuildPredicates()
	if err != nil {
		return nil, err
	}
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	return NewBlocker(predicates, append(opts, extra...)...)
}
