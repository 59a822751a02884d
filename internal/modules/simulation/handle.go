package simulation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/runway/internal/modules/aggregation"
	"github.com/aristath/runway/internal/modules/montecarlo"
)

// State is the lifecycle state of a run
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
	StateStale     State = "stale"
)

// Status describes the latest run of a scenario
type Status struct {
	ScenarioID string              `json:"scenario_id"`
	RunID      string              `json:"run_id"`
	RunKey     string              `json:"run_key"`
	State      State               `json:"state"`
	Progress   montecarlo.Progress `json:"progress"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// RunHandle tracks one submitted run
type RunHandle struct {
	ID         string `json:"run_id"`
	ScenarioID string `json:"scenario_id"`
	RunKey     string `json:"run_key"`

	generation   uint64
	cancel       context.CancelFunc
	isSuperseded atomic.Bool

	once   sync.Once
	done   chan struct{}
	result *aggregation.AggregateResult
	err    error
}

// Done is closed when the run has finished, successfully or not
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run finishes or ctx is done
func (h *RunHandle) Wait(ctx context.Context) (*aggregation.AggregateResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel cancels the run
func (h *RunHandle) Cancel() {
	h.cancel()
}

func (h *RunHandle) supersede() {
	h.isSuperseded.Store(true)
	h.cancel()
}

func (h *RunHandle) superseded() bool {
	return h.isSuperseded.Load()
}

func (h *RunHandle) complete(res *aggregation.AggregateResult, err error) {
	h.once.Do(func() {
		h.result, h.err = res, err
		h.cancel()
		close(h.done)
	})
}
