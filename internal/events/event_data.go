package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// SimulationStartedData is emitted when a run begins
type SimulationStartedData struct {
	ScenarioID    string `json:"scenario_id"`
	RunKey        string `json:"run_key"`
	Iterations    int    `json:"iterations"`
	HorizonMonths int    `json:"horizon_months"`
	Fragility     int    `json:"fragility"`
	Band          string `json:"band"`
}

func (d *SimulationStartedData) EventType() EventType { return SimulationStarted }

// SimulationProgressData reports iterations completed out of the target for the current stage
type SimulationProgressData struct {
	ScenarioID          string  `json:"scenario_id"`
	RunKey              string  `json:"run_key"`
	Stage               string  `json:"stage"`
	IterationsCompleted int     `json:"iterations_completed"`
	IterationsTarget    int     `json:"iterations_target"`
	Percent             float64 `json:"percent"`
}

func (d *SimulationProgressData) EventType() EventType { return SimulationProgress }

// SimulationCompletedData summarises a delivered result
type SimulationCompletedData struct {
	ScenarioID    string  `json:"scenario_id"`
	RunKey        string  `json:"run_key"`
	SurvivalRate  float64 `json:"survival_rate"`
	P50           float64 `json:"p50"`
	ExcludedPaths int     `json:"excluded_paths"`
	DurationMs    int64   `json:"duration_ms"`
}

func (d *SimulationCompletedData) EventType() EventType { return SimulationCompleted }

// SimulationCancelledData is emitted when a run is cancelled and its partial work discarded
type SimulationCancelledData struct {
	ScenarioID string `json:"scenario_id"`
	RunKey     string `json:"run_key"`
	Reason     string `json:"reason"`
}

func (d *SimulationCancelledData) EventType() EventType { return SimulationCancelled }

// SimulationFailedData carries the error that ended a run
type SimulationFailedData struct {
	ScenarioID string `json:"scenario_id"`
	RunKey     string `json:"run_key"`
	Error      string `json:"error"`
}

func (d *SimulationFailedData) EventType() EventType { return SimulationFailed }

// StaleDiscardedData is emitted when a finished run lost to a newer run of the same scenario
type StaleDiscardedData struct {
	ScenarioID   string `json:"scenario_id"`
	RunKey       string `json:"run_key"`
	LatestRunKey string `json:"latest_run_key"`
}

func (d *StaleDiscardedData) EventType() EventType { return SimulationStaleDiscarded }

// NumericAnomalyData reports paths excluded for producing NaN or Inf
type NumericAnomalyData struct {
	ScenarioID string `json:"scenario_id"`
	RunKey     string `json:"run_key"`
	Excluded   int    `json:"excluded"`
	Total      int    `json:"total"`
}

func (d *NumericAnomalyData) EventType() EventType { return NumericAnomaly }

// ResultsPrunedData is emitted by the maintenance job
type ResultsPrunedData struct {
	Removed   int64  `json:"removed"`
	OlderThan string `json:"older_than"`
}

func (d *ResultsPrunedData) EventType() EventType { return ResultsPruned }

// ResultExportedData records where a reproduction manifest was uploaded
type ResultExportedData struct {
	ScenarioID string `json:"scenario_id"`
	RunKey     string `json:"run_key"`
	Location   string `json:"location"`
}

func (d *ResultExportedData) EventType() EventType { return ResultExported }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }
