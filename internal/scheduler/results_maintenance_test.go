package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/runway/internal/database"
	"github.com/aristath/runway/internal/events"
)

type fakePruner struct {
	removed int64
	err     error
	gotAge  time.Duration
}

func (p *fakePruner) PruneOlderThan(_ context.Context, age time.Duration) (int64, error) {
	p.gotAge = age
	return p.removed, p.err
}

func TestResultsMaintenanceJob_Name(t *testing.T) {
	job := NewResultsMaintenanceJob(&fakePruner{}, nil, nil, time.Hour)
	assert.Equal(t, "results_maintenance", job.Name())
}

func TestResultsMaintenanceJob_Run(t *testing.T) {
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "results.db"), Name: "results"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	bus := events.NewBus()
	var pruned []*events.Event
	bus.Subscribe(events.ResultsPruned, func(e *events.Event) { pruned = append(pruned, e) })

	pruner := &fakePruner{removed: 3}
	job := NewResultsMaintenanceJob(pruner, db, events.NewManager(bus, zerolog.Nop()), 720*time.Hour)
	job.SetLogger(zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, 720*time.Hour, pruner.gotAge)
	require.Len(t, pruned, 1)
	assert.Equal(t, float64(3), pruned[0].Data["removed"])
	assert.Equal(t, "720h0m0s", pruned[0].Data["older_than"])
}

func TestResultsMaintenanceJob_NothingPruned(t *testing.T) {
	bus := events.NewBus()
	var pruned int
	bus.Subscribe(events.ResultsPruned, func(*events.Event) { pruned++ })

	job := NewResultsMaintenanceJob(&fakePruner{}, nil, events.NewManager(bus, zerolog.Nop()), time.Hour)
	require.NoError(t, job.Run())
	assert.Zero(t, pruned)
}

func TestResultsMaintenanceJob_PruneFailure(t *testing.T) {
	job := NewResultsMaintenanceJob(&fakePruner{err: errors.New("disk I/O error")}, nil, nil, time.Hour)

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prune results")
}
