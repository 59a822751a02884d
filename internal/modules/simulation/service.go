// Package simulation orchestrates runs: it derives parameters from a locked baseline,
// simulates and aggregates the ensemble, and delivers results keyed by run identity so
// that a superseded run can never overwrite a newer run's output.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/events"
	"github.com/aristath/runway/internal/modules/aggregation"
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/export"
	"github.com/aristath/runway/internal/modules/montecarlo"
	"github.com/aristath/runway/internal/modules/seed"
)

// ErrStale is returned to the waiter of a run that finished after a newer run of the
// same scenario started. Its result is discarded.
var ErrStale = errors.New("run superseded by a newer run of the same scenario")

// DefaultScenarioID keys baselines submitted without a scenario id
const DefaultScenarioID = "default"

// Request asks for one run. A nil Config uses the service defaults.
type Request struct {
	Baseline domain.Baseline    `json:"baseline"`
	Config   *montecarlo.Config `json:"config,omitempty"`
	Levers   montecarlo.Levers  `json:"levers"`
}

// ResultStore persists delivered results
type ResultStore interface {
	Save(ctx context.Context, res *aggregation.AggregateResult) error
}

// ManifestExporter archives reproduction manifests
type ManifestExporter interface {
	Export(ctx context.Context, m export.Manifest) (string, error)
}

// Deps are the collaborators of a Service. Store and Exporter may be nil.
type Deps struct {
	Deriver    *elasticity.Deriver
	Engine     *montecarlo.Engine
	Aggregator *aggregation.Aggregator
	Store      ResultStore
	Exporter   ManifestExporter
	Events     *events.Manager
	Defaults   montecarlo.Config
}

// Service runs simulations and tracks the latest run of every scenario
type Service struct {
	deps Deps
	log  zerolog.Logger

	root     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu          sync.Mutex
	generations map[string]uint64
	active      map[string]*RunHandle
	statuses    map[string]Status

	// deliverMu serialises the latest-generation check with the store write
	deliverMu sync.Mutex
}

// NewService creates a service
func NewService(deps Deps, log zerolog.Logger) *Service {
	root, cancel := context.WithCancel(context.Background())
	return &Service{
		deps:        deps,
		log:         log.With().Str("service", "simulation").Logger(),
		root:        root,
		shutdown:    cancel,
		generations: make(map[string]uint64),
		active:      make(map[string]*RunHandle),
		statuses:    make(map[string]Status),
	}
}

// plan is a validated request, ready to run
type plan struct {
	scenarioID string
	baseline   domain.Baseline
	levers     montecarlo.Levers
	derived    elasticity.Result // drives the engine
	display    elasticity.Result // fragility reported with the result, levers applied
	start      montecarlo.StartState
	cfg        montecarlo.Config
	seed       uint64
	key        string
}

func (s *Service) prepare(req Request) (*plan, error) {
	cfg := s.deps.Defaults
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	derived, err := s.deps.Deriver.Derive(req.Baseline)
	if err != nil {
		return nil, err
	}
	start, err := montecarlo.StartStateFromBaseline(req.Baseline, req.Levers)
	if err != nil {
		return nil, err
	}
	display := derived
	if !req.Levers.IsZero() {
		if display, err = s.deps.Deriver.Derive(req.Levers.Apply(req.Baseline)); err != nil {
			return nil, fmt.Errorf("levered baseline: %w", err)
		}
	}

	scenarioID := req.Baseline.ScenarioID
	if scenarioID == "" {
		scenarioID = DefaultScenarioID
	}
	runSeed := seed.Hash(req.Baseline)

	return &plan{
		scenarioID: scenarioID,
		baseline:   req.Baseline,
		levers:     req.Levers,
		derived:    derived,
		display:    display,
		start:      start,
		cfg:        cfg,
		seed:       runSeed,
		key:        RunKey(runSeed, cfg, req.Levers),
	}, nil
}

// Simulate runs a request and waits for its result. Cancelling ctx cancels the run.
// A newer Submit or Simulate for the same scenario supersedes this one.
func (s *Service) Simulate(ctx context.Context, req Request) (*aggregation.AggregateResult, error) {
	h, err := s.Submit(req)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, h.cancel)
	defer stop()
	<-h.Done()
	return h.result, h.err
}

// Submit validates a request and starts it in the background. Any in-flight run of
// the same scenario is cancelled. Validation errors are returned before any work.
func (s *Service) Submit(req Request) (*RunHandle, error) {
	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(s.root)
	h := &RunHandle{
		ID:         uuid.NewString(),
		ScenarioID: p.scenarioID,
		RunKey:     p.key,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	if s.root.Err() != nil {
		s.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("submit %s: service is shut down: %w", p.scenarioID, domain.ErrCancelled)
	}
	s.generations[p.scenarioID]++
	h.generation = s.generations[p.scenarioID]
	if prev := s.active[p.scenarioID]; prev != nil {
		prev.supersede()
	}
	s.active[p.scenarioID] = h
	s.statuses[p.scenarioID] = Status{
		ScenarioID: p.scenarioID,
		RunID:      h.ID,
		RunKey:     p.key,
		State:      StateRunning,
		Progress:   montecarlo.Progress{IterationsTarget: p.cfg.Iterations, Stage: montecarlo.StageSimulating},
		StartedAt:  time.Now().UTC(),
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.execute(runCtx, p, h)
	}()

	return h, nil
}

func (s *Service) execute(ctx context.Context, p *plan, h *RunHandle) {
	began := time.Now()
	s.emit(&events.SimulationStartedData{
		ScenarioID:    p.scenarioID,
		RunKey:        p.key,
		Iterations:    p.cfg.Iterations,
		HorizonMonths: p.cfg.HorizonMonths,
		Fragility:     p.derived.Fragility,
		Band:          string(p.derived.Band),
	})

	reporter := NewProgressReporter(s.deps.Events, p.scenarioID, p.key, func(pr montecarlo.Progress) {
		s.updateStatus(h, func(st *Status) { st.Progress = pr })
	})

	res, err := s.compute(ctx, p, reporter.Report)
	if err != nil {
		s.fail(p, h, err)
		return
	}

	if err := s.deliver(ctx, p, h, res); err != nil {
		s.fail(p, h, err)
		return
	}

	s.exportManifest(p, res)

	s.emit(&events.SimulationCompletedData{
		ScenarioID:    p.scenarioID,
		RunKey:        p.key,
		SurvivalRate:  res.SurvivalRate,
		P50:           res.Percentiles.P50,
		ExcludedPaths: res.ExcludedPaths,
		DurationMs:    time.Since(began).Milliseconds(),
	})
	s.finish(h, StateCompleted, res, nil)
}

// compute runs the ensemble and aggregates it
func (s *Service) compute(ctx context.Context, p *plan, progress montecarlo.ProgressFunc) (*aggregation.AggregateResult, error) {
	run, err := s.deps.Engine.Run(ctx, p.derived.Params, p.start, p.cfg, p.seed, progress)
	if err != nil {
		return nil, err
	}
	run.Key = p.key

	res, err := s.deps.Aggregator.Aggregate(ctx, run, progress)
	if err != nil {
		return nil, err
	}
	res.ScenarioID = p.scenarioID
	res.Fragility = p.display.Fragility
	res.Band = p.display.Band

	if res.ExcludedPaths > 0 {
		s.emit(&events.NumericAnomalyData{
			ScenarioID: p.scenarioID,
			RunKey:     p.key,
			Excluded:   res.ExcludedPaths,
			Total:      len(run.Paths),
		})
	}
	return res, nil
}

// deliver stores the result if h is still the latest run of its scenario
func (s *Service) deliver(ctx context.Context, p *plan, h *RunHandle, res *aggregation.AggregateResult) error {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if latest, ok := s.isLatest(h); !ok {
		s.emit(&events.StaleDiscardedData{ScenarioID: p.scenarioID, RunKey: p.key, LatestRunKey: latest})
		s.log.Info().
			Str("scenario_id", p.scenarioID).
			Str("run_key", p.key).
			Str("latest_run_key", latest).
			Msg("Discarding result of superseded run")
		return ErrStale
	}

	if s.deps.Store == nil {
		return nil
	}
	if err := s.deps.Store.Save(ctx, res); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (s *Service) exportManifest(p *plan, res *aggregation.AggregateResult) {
	if s.deps.Exporter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.root, time.Minute)
	defer cancel()

	location, err := s.deps.Exporter.Export(ctx, export.Manifest{
		ScenarioID: p.scenarioID,
		RunKey:     p.key,
		Seed:       p.seed,
		Baseline:   p.baseline,
		Config:     p.cfg,
		Levers:     p.levers,
		Policy:     s.deps.Deriver.Policy(),
		Result:     res,
	})
	if err != nil {
		s.log.Error().Err(err).Str("scenario_id", p.scenarioID).Msg("Failed to export manifest")
		if s.deps.Events != nil {
			s.deps.Events.EmitError("simulation", err, map[string]interface{}{"scenario_id": p.scenarioID, "run_key": p.key})
		}
		return
	}
	if location != "" {
		s.emit(&events.ResultExportedData{ScenarioID: p.scenarioID, RunKey: p.key, Location: location})
	}
}

func (s *Service) fail(p *plan, h *RunHandle, err error) {
	switch {
	case errors.Is(err, ErrStale):
		s.finish(h, StateStale, nil, err)
	case domain.IsCancelled(err):
		reason := "cancelled"
		if h.superseded() {
			reason = "superseded"
		}
		s.emit(&events.SimulationCancelledData{ScenarioID: p.scenarioID, RunKey: p.key, Reason: reason})
		s.finish(h, StateCancelled, nil, err)
	default:
		var anomaly *domain.NumericAnomalyError
		if errors.As(err, &anomaly) {
			s.emit(&events.NumericAnomalyData{ScenarioID: p.scenarioID, RunKey: p.key, Excluded: anomaly.Excluded, Total: anomaly.Total})
		}
		s.log.Error().Err(err).Str("scenario_id", p.scenarioID).Str("run_key", p.key).Msg("Simulation failed")
		s.emit(&events.SimulationFailedData{ScenarioID: p.scenarioID, RunKey: p.key, Error: err.Error()})
		s.finish(h, StateFailed, nil, err)
	}
}

// finish completes the handle and, if h is still the latest run, its scenario status
func (s *Service) finish(h *RunHandle, state State, res *aggregation.AggregateResult, err error) {
	s.mu.Lock()
	if s.active[h.ScenarioID] == h {
		delete(s.active, h.ScenarioID)
	}
	if st, ok := s.statuses[h.ScenarioID]; ok && st.RunID == h.ID {
		now := time.Now().UTC()
		st.State = state
		st.FinishedAt = &now
		if err != nil {
			st.Error = err.Error()
		}
		s.statuses[h.ScenarioID] = st
	}
	s.mu.Unlock()

	h.complete(res, err)
}

func (s *Service) updateStatus(h *RunHandle, fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.statuses[h.ScenarioID]; ok && st.RunID == h.ID {
		fn(&st)
		s.statuses[h.ScenarioID] = st
	}
}

// isLatest reports whether h is the newest run of its scenario, and the newest run's key
func (s *Service) isLatest(h *RunHandle) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latestKey := h.RunKey
	if st, ok := s.statuses[h.ScenarioID]; ok {
		latestKey = st.RunKey
	}
	return latestKey, s.generations[h.ScenarioID] == h.generation
}

// Cancel cancels the in-flight run of a scenario. It reports whether one was running.
func (s *Service) Cancel(scenarioID string) bool {
	s.mu.Lock()
	h := s.active[scenarioID]
	s.mu.Unlock()
	if h == nil {
		return false
	}
	h.cancel()
	return true
}

// Status returns the state of the latest run of a scenario
func (s *Service) Status(scenarioID string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[scenarioID]
	return st, ok
}

// Replay recomputes one iteration of the run a request describes
func (s *Service) Replay(ctx context.Context, req Request, iteration int) (montecarlo.Path, error) {
	p, err := s.prepare(req)
	if err != nil {
		return montecarlo.Path{}, err
	}
	if ctx.Err() != nil {
		return montecarlo.Path{}, fmt.Errorf("replay iteration %d: %w", iteration, domain.ErrCancelled)
	}
	return s.deps.Engine.Replay(p.derived.Params, p.start, p.cfg, p.seed, iteration)
}

// Fragility derives parameters and the fragility score of a baseline
func (s *Service) Fragility(b domain.Baseline) (elasticity.Result, error) {
	return s.deps.Deriver.Derive(b)
}

// Close cancels every in-flight run and waits for them to finish
func (s *Service) Close() {
	s.mu.Lock()
	s.shutdown()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) emit(data events.EventData) {
	if s.deps.Events != nil {
		s.deps.Events.EmitTyped("simulation", data)
	}
}
