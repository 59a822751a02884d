package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/config"
	"github.com/aristath/runway/internal/events"
	"github.com/aristath/runway/internal/modules/aggregation"
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/export"
	"github.com/aristath/runway/internal/modules/montecarlo"
	"github.com/aristath/runway/internal/modules/results"
	"github.com/aristath/runway/internal/modules/simulation"
)

// InitializeServices creates the repositories, the simulation pipeline and the service
// that orchestrates it
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.ResultsDB != nil {
		container.ResultsRepo = results.NewRepository(container.ResultsDB.Conn(), log)
	}

	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	deriver, err := elasticity.NewDeriver(cfg.Policy)
	if err != nil {
		return fmt.Errorf("failed to create deriver: %w", err)
	}
	container.Deriver = deriver

	container.Engine = montecarlo.NewEngine(montecarlo.Options{
		Workers:   cfg.Simulation.Workers,
		ChunkSize: cfg.Simulation.ChunkSize,
	}, log)

	container.Aggregator = aggregation.NewAggregator(container.Engine, aggregation.Options{
		Buckets:               cfg.Simulation.HistogramBuckets,
		SensitivityIterations: cfg.Simulation.SensitivityIterations,
	}, log)

	exporter, err := export.New(ctx, cfg.Export, log)
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}
	container.Exporter = exporter

	deps := simulation.Deps{
		Deriver:    container.Deriver,
		Engine:     container.Engine,
		Aggregator: container.Aggregator,
		Events:     container.EventManager,
		Defaults: montecarlo.Config{
			Iterations:    cfg.Simulation.DefaultIterations,
			HorizonMonths: cfg.Simulation.DefaultHorizon,
		},
	}
	// Leave the interfaces nil rather than holding typed nil pointers
	if container.ResultsRepo != nil {
		deps.Store = container.ResultsRepo
	}
	if exporter.Enabled() {
		deps.Exporter = exporter
	}
	container.SimulationService = simulation.NewService(deps, log)

	log.Info().
		Int("workers", container.Engine.Workers()).
		Bool("export_enabled", exporter.Enabled()).
		Msg("Services initialized")
	return nil
}
