package blocking

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is the root of every setup-time configuration failure.
	// Use errors.Is(err, ErrConfiguration) to detect it.
	ErrConfiguration = errors.New("blocking: configuration error")

	// ErrIndexNotBuilt is returned when an indexed predicate is invoked before
	// its index was built, or after the indices were reset.
	ErrIndexNotBuilt = errors.New("blocking: index not built")

	// ErrIndexNotReady is returned by an index queried before InitSearch.
	ErrIndexNotReady = errors.New("blocking: index not finalized, call InitSearch first")
)

// ConfigurationError describes an invalid predicate or field configuration.
// It is surfaced at setup time and is always fatal.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%v: field %q: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// StateError reports a caller sequencing bug: an indexed predicate used
// without a built index. It is never retried.
//
// The underlying cause can be accessed via errors.Unwrap.
type StateError struct {
	Predicate string
	Key       IndexKey
	cause     error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("predicate %s on %s: %v", e.Predicate, e.Key, e.cause)
}

func (e *StateError) Unwrap() error { return e.cause }

func newStateError(predicate string, key IndexKey, cause error) *StateError {
	if cause == nil {
		cause = ErrIndexNotBuilt
	}
	return &StateError{Predicate: predicate, Key: key, cause: cause}
}
