package di

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/runway/internal/config"
	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/simulation"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir: t.TempDir(),
		Policy:  elasticity.DefaultPolicy(),
		Simulation: config.SimulationConfig{
			Workers:               2,
			ChunkSize:             50,
			HistogramBuckets:      10,
			SensitivityIterations: 0,
			DefaultIterations:     100,
			DefaultHorizon:        12,
		},
		ResultsRetention: 720 * time.Hour,
		MaintenanceCron:  "0 0 3 * * *",
	}
}

func TestWire(t *testing.T) {
	container, jobs, err := Wire(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.ResultsDB)
	assert.NotNil(t, container.ResultsRepo)
	assert.NotNil(t, container.EventManager)
	assert.NotNil(t, container.SimulationService)
	assert.Equal(t, 2, container.Engine.Workers())
	assert.False(t, container.Exporter.Enabled())

	require.NotNil(t, jobs.ResultsMaintenance)
	assert.Equal(t, 1, container.Scheduler.Entries())
	assert.NoError(t, jobs.ResultsMaintenance.Run())
}

func TestWire_SimulationReachesStore(t *testing.T) {
	container, _, err := Wire(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	b := domain.Baseline{
		ScenarioID:      "acme",
		CashOnHand:      1_200_000,
		MonthlyBurn:     150_000,
		ARR:             1_800_000,
		GrossMarginPct:  70,
		MonthlyChurnPct: 4,
		Locked:          true,
	}
	res, err := container.SimulationService.Simulate(context.Background(), simulation.Request{Baseline: b})
	require.NoError(t, err)

	stored, err := container.ResultsRepo.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, res.RunKey, stored.RunKey)
	assert.Equal(t, res.Percentiles, stored.Percentiles)
}

func TestWire_RetentionDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.ResultsRetention = 0

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.Nil(t, jobs.ResultsMaintenance)
	assert.Zero(t, container.Scheduler.Entries())
}

func TestWire_InvalidCron(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaintenanceCron = "every night"

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "results_maintenance")
}
