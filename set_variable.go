package blocking

import "fmt"

// FieldType names a field's comparison strategy.
type FieldType string

const (
	// SetFieldType compares sets by cosine similarity over a corpus.
	SetFieldType FieldType = "Set"

	// MinDistanceSetFieldType compares sets by their closest elements.
	MinDistanceSetFieldType FieldType = "MinDistanceSet"
)

// SetIndexThresholds are the similarity thresholds at which a set field
// contributes search and canopy predicates.
var SetIndexThresholds = []float64{0.2, 0.4, 0.6, 0.8}

// FieldDefinition configures one set-valued field.
type FieldDefinition struct {
	Field string    `yaml:"field"`
	Type  FieldType `yaml:"type"`
	// Corpus holds example set values seeding the cosine TF-IDF space.
	// Required (may be empty, not nil) for SetFieldType.
	Corpus [][]string `yaml:"corpus,omitempty"`
}

// SetVariable is a set-valued field with a configured comparator. Callers
// score pairs through Compare without knowing which strategy is active.
type SetVariable struct {
	def        FieldDefinition
	comparator SetComparator
}

// NewSetVariable selects the comparator for def.Type.
//
// Returns a *ConfigurationError for an empty field name, an unknown type, or
// a SetFieldType definition without a corpus.
func NewSetVariable(def FieldDefinition) (*SetVariable, error) {
	if def.Field == "" {
		return nil, &ConfigurationError{Reason: "field definition has no field name"}
	}

	var comparator SetComparator
	switch def.Type {
	case SetFieldType:
		if def.Corpus == nil {
			return nil, &ConfigurationError{Field: def.Field, Reason: "Set comparator requires a corpus"}
		}
		comparator = NewCosineSetComparator(def.Corpus)
	case MinDistanceSetFieldType:
		comparator = NewMinDistanceSetComparator()
	default:
		return nil, &ConfigurationError{Field: def.Field, Reason: fmt.Sprintf("unknown field type %q", def.Type)}
	}
	return &SetVariable{def: def, comparator: comparator}, nil
}

// Field returns the field name.
func (v *SetVariable) Field() string { return v.def.Field }

// Type returns the field type.
func (v *SetVariable) Type() FieldType { return v.def.Type }

// Comparator returns the active strategy.
func (v *SetVariable) Comparator() SetComparator { return v.comparator }

// Compare scores two values of the field.
func (v *SetVariable) Compare(a, b []string) (float64, bool) {
	return v.comparator.Compare(a, b)
}

// Predicates returns the blocking predicates a set field offers: the simple
// set predicates followed by a TF-IDF search and canopy predicate at each of
// SetIndexThresholds. All indexed predicates share one TfidfSetIndex.
func (v *SetVariable) Predicates() []Predicate {
	f := v.def.Field
	predicates := []Predicate{
		WholeSetPredicate(f),
		CommonSetElementPredicate(f),
		LastSetElementPredicate(f),
		CommonTwoElementsPredicate(f),
		CommonThreeElementsPredicate(f),
		MagnitudeOfCardinalityPredicate(f),
		FirstSetElementPredicate(f),
	}
	for _, t := range SetIndexThresholds {
		predicates = append(predicates, NewTfidfSetSearchPredicate(f, t))
	}
	for _, t := range SetIndexThresholds {
		predicates = append(predicates, NewTfidfSetCanopyPredicate(f, t))
	}
	return predicates
}
