package simulation

import (
	"sync"
	"time"

	"github.com/aristath/runway/internal/events"
	"github.com/aristath/runway/internal/modules/montecarlo"
)

// ProgressReporter turns engine progress into SIMULATION_PROGRESS events.
// Reports are throttled to one per 100ms; completion of a stage and the first
// report of a new stage always go through.
type ProgressReporter struct {
	eventManager *events.Manager
	scenarioID   string
	runKey       string
	onReport     func(montecarlo.Progress)

	mu          sync.Mutex
	lastReport  time.Time
	lastStage   string
	minInterval time.Duration
}

// NewProgressReporter creates a reporter. onReport, if set, sees every report that
// passes the throttle.
func NewProgressReporter(em *events.Manager, scenarioID, runKey string, onReport func(montecarlo.Progress)) *ProgressReporter {
	return &ProgressReporter{
		eventManager: em,
		scenarioID:   scenarioID,
		runKey:       runKey,
		onReport:     onReport,
		minInterval:  100 * time.Millisecond,
	}
}

// Report is a montecarlo.ProgressFunc
func (pr *ProgressReporter) Report(p montecarlo.Progress) {
	pr.mu.Lock()
	now := time.Now()
	final := p.IterationsCompleted >= p.IterationsTarget
	if now.Sub(pr.lastReport) < pr.minInterval && !final && p.Stage == pr.lastStage {
		pr.mu.Unlock()
		return
	}
	pr.lastReport = now
	pr.lastStage = p.Stage
	pr.mu.Unlock()

	if pr.onReport != nil {
		pr.onReport(p)
	}
	if pr.eventManager == nil {
		return
	}
	pr.eventManager.EmitTyped("simulation", &events.SimulationProgressData{
		ScenarioID:          pr.scenarioID,
		RunKey:              pr.runKey,
		Stage:               p.Stage,
		IterationsCompleted: p.IterationsCompleted,
		IterationsTarget:    p.IterationsTarget,
		Percent:             100 * p.Fraction(),
	})
}
