// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	// Simulation lifecycle
	SimulationStarted        EventType = "SIMULATION_STARTED"
	SimulationProgress       EventType = "SIMULATION_PROGRESS"
	SimulationCompleted      EventType = "SIMULATION_COMPLETED"
	SimulationCancelled      EventType = "SIMULATION_CANCELLED"
	SimulationFailed         EventType = "SIMULATION_FAILED"
	SimulationStaleDiscarded EventType = "SIMULATION_STALE_DISCARDED"
	NumericAnomaly           EventType = "NUMERIC_ANOMALY"

	// Storage upkeep
	ResultsPruned  EventType = "RESULTS_PRUNED"
	ResultExported EventType = "RESULT_EXPORTED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type streams can subscribe to
func AllTypes() []EventType {
	return []EventType{
		SimulationStarted,
		SimulationProgress,
		SimulationCompleted,
		SimulationCancelled,
		SimulationFailed,
		SimulationStaleDiscarded,
		NumericAnomaly,
		ResultsPruned,
		ResultExported,
		ErrorOccurred,
	}
}
