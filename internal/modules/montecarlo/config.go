// Package montecarlo runs ensembles of correlated monthly cash/ARR trajectories.
//
// Every iteration draws from its own PCG stream derived from (seed, iteration), so a run is
// bit-identical regardless of how iterations are scheduled across workers, and any single
// iteration can be replayed in isolation.
package montecarlo

import (
	"github.com/aristath/runway/internal/domain"
)

const (
	// MaxIterations caps the ensemble size of one run
	MaxIterations = 200_000
	// MaxHorizonMonths caps the projection horizon
	MaxHorizonMonths = 240
	// MaxTrajectoryPoints caps iterations x horizon, the number of points a run holds in memory
	MaxTrajectoryPoints = 6_000_000
	// MaxSensitivityIterations is the largest sub-ensemble that fits MaxTrajectoryPoints at any horizon
	MaxSensitivityIterations = MaxTrajectoryPoints / MaxHorizonMonths
	// DefaultChunkSize is the number of iterations a worker simulates between cancellation checks
	DefaultChunkSize = 250
)

// Config is the size of a run
type Config struct {
	Iterations    int `json:"iterations" yaml:"iterations" msgpack:"iterations"`
	HorizonMonths int `json:"horizon_months" yaml:"horizon_months" msgpack:"horizon_months"`
}

// Validate reports a ConfigurationError for sizes the engine will not run.
// Out-of-range values are never clamped.
func (c Config) Validate() error {
	switch {
	case c.Iterations <= 0:
		return &domain.ConfigurationError{Field: "iterations", Reason: "must be positive"}
	case c.Iterations > MaxIterations:
		return &domain.ConfigurationError{Field: "iterations", Reason: "exceeds the maximum of 200000"}
	case c.HorizonMonths <= 0:
		return &domain.ConfigurationError{Field: "horizon_months", Reason: "must be positive"}
	case c.HorizonMonths > MaxHorizonMonths:
		return &domain.ConfigurationError{Field: "horizon_months", Reason: "exceeds the maximum of 240"}
	case c.Iterations*c.HorizonMonths > MaxTrajectoryPoints:
		return &domain.ConfigurationError{Field: "iterations", Reason: "times horizon_months exceeds 6000000 trajectory points"}
	}
	return nil
}
