package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/config"
	"github.com/aristath/runway/internal/scheduler"
)

// RegisterJobs creates the scheduler and registers upkeep jobs. The scheduler is not
// started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{}
	container.Scheduler = scheduler.New(log)

	if container.ResultsRepo == nil || cfg.ResultsRetention <= 0 {
		log.Info().Msg("Results retention disabled, maintenance job not registered")
		return instances, nil
	}

	job := scheduler.NewResultsMaintenanceJob(container.ResultsRepo, container.ResultsDB, container.EventManager, cfg.ResultsRetention)
	job.SetLogger(log)
	if err := container.Scheduler.AddJob(cfg.MaintenanceCron, job); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", job.Name(), err)
	}
	instances.ResultsMaintenance = job

	return instances, nil
}
