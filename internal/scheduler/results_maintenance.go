package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/database"
	"github.com/aristath/runway/internal/events"
)

// ResultPruner deletes results not updated within a retention window
type ResultPruner interface {
	PruneOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// ResultsMaintenanceJob prunes expired results and keeps results.db compact
type ResultsMaintenanceJob struct {
	log          zerolog.Logger
	pruner       ResultPruner
	db           *database.DB
	eventManager *events.Manager
	retention    time.Duration
	timeout      time.Duration
}

// NewResultsMaintenanceJob creates a new ResultsMaintenanceJob. db and eventManager may be nil.
func NewResultsMaintenanceJob(pruner ResultPruner, db *database.DB, eventManager *events.Manager, retention time.Duration) *ResultsMaintenanceJob {
	return &ResultsMaintenanceJob{
		log:          zerolog.Nop(),
		pruner:       pruner,
		db:           db,
		eventManager: eventManager,
		retention:    retention,
		timeout:      5 * time.Minute,
	}
}

// SetLogger sets the logger for the job
func (j *ResultsMaintenanceJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *ResultsMaintenanceJob) Name() string {
	return "results_maintenance"
}

// Run prunes, checkpoints the WAL and returns free pages to the filesystem.
// Only a failed prune fails the job; storage upkeep errors are logged.
func (j *ResultsMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	removed, err := j.pruner.PruneOlderThan(ctx, j.retention)
	if err != nil {
		return fmt.Errorf("prune results: %w", err)
	}
	if removed > 0 && j.eventManager != nil {
		j.eventManager.EmitTyped("scheduler", &events.ResultsPrunedData{
			Removed:   removed,
			OlderThan: j.retention.String(),
		})
	}

	if j.db != nil {
		if err := j.db.WALCheckpoint(ctx, "TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Msg("WAL checkpoint failed")
		}
		if err := j.db.IncrementalVacuum(ctx); err != nil {
			j.log.Warn().Err(err).Msg("Incremental vacuum failed")
		}
		if stats, err := j.db.GetStats(ctx); err == nil {
			j.log.Debug().
				Int64("size_bytes", stats.SizeBytes).
				Int64("wal_size_bytes", stats.WALSizeBytes).
				Int64("freelist_count", stats.FreelistCount).
				Msg("Results database stats")
		}
	}

	j.log.Info().
		Int64("removed", removed).
		Dur("retention", j.retention).
		Msg("Results maintenance completed")
	return nil
}
