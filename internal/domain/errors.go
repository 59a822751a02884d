package domain

import (
	"errors"
	"fmt"
)

// ErrCancelled marks a run that was cancelled before completion.
// It is a terminal state rather than a failure: no partial aggregate accompanies it.
var ErrCancelled = errors.New("simulation cancelled")

// ErrBaselineNotLocked is returned when a draft baseline reaches the engine
var ErrBaselineNotLocked = errors.New("baseline is not locked")

// ConfigurationError reports an invalid run configuration (iterations, horizon, policy)
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// InputError reports a baseline that cannot be used for derivation
type InputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("input error: %s", e.Reason)
	}
	return fmt.Sprintf("input error: %s %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// NumericAnomalyError is returned when every path of a run produced NaN or Inf,
// leaving nothing to aggregate
type NumericAnomalyError struct {
	Excluded int
	Total    int
}

func (e *NumericAnomalyError) Error() string {
	return fmt.Sprintf("numeric anomaly: %d of %d paths produced non-finite values", e.Excluded, e.Total)
}

// IsConfigurationError reports whether err wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsInputError reports whether err wraps an InputError
func IsInputError(err error) bool {
	var target *InputError
	return errors.As(err, &target)
}

// IsNumericAnomaly reports whether err wraps a NumericAnomalyError
func IsNumericAnomaly(err error) bool {
	var target *NumericAnomalyError
	return errors.As(err, &target)
}

// IsCancelled reports whether err marks a cancelled run
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
