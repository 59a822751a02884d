// Package di wires Runway's databases, services and jobs.
//
// The Container is the single source of truth for service instances; the server and
// the CLI take what they need from it.
package di

import (
	"github.com/aristath/runway/internal/database"
	"github.com/aristath/runway/internal/events"
	"github.com/aristath/runway/internal/modules/aggregation"
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/export"
	"github.com/aristath/runway/internal/modules/montecarlo"
	"github.com/aristath/runway/internal/modules/results"
	"github.com/aristath/runway/internal/modules/simulation"
	"github.com/aristath/runway/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	ResultsDB *database.DB

	// Repositories
	ResultsRepo *results.Repository

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Simulation pipeline
	Deriver           *elasticity.Deriver
	Engine            *montecarlo.Engine
	Aggregator        *aggregation.Aggregator
	Exporter          *export.Exporter
	SimulationService *simulation.Service

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds job references for manual triggering
type JobInstances struct {
	ResultsMaintenance *scheduler.ResultsMaintenanceJob
}

// Close stops services and closes databases, in reverse order of creation
func (c *Container) Close() {
	if c.SimulationService != nil {
		c.SimulationService.Close()
	}
	if c.ResultsDB != nil {
		c.ResultsDB.Close()
	}
}
