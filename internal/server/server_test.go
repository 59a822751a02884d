package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/aristath/runway/internal/database"
	"github.com/aristath/runway/internal/events"
	"github.com/aristath/runway/internal/modules/aggregation"
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/montecarlo"
	"github.com/aristath/runway/internal/modules/results"
	"github.com/aristath/runway/internal/modules/simulation"
)

type testEnv struct {
	server *httptest.Server
	events *events.Manager
	repo   *results.Repository
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "results.db"), Name: "results"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	repo := results.NewRepository(db.Conn(), log)

	em := events.NewManager(events.NewBus(), log)
	deriver, err := elasticity.NewDeriver(elasticity.DefaultPolicy())
	require.NoError(t, err)
	engine := montecarlo.NewEngine(montecarlo.Options{Workers: 2, ChunkSize: 50}, log)
	svc := simulation.NewService(simulation.Deps{
		Deriver:    deriver,
		Engine:     engine,
		Aggregator: aggregation.NewAggregator(engine, aggregation.Options{Buckets: 10, SensitivityIterations: 0}, log),
		Store:      repo,
		Events:     em,
		Defaults:   montecarlo.Config{Iterations: 100, HorizonMonths: 12},
	}, log)
	t.Cleanup(svc.Close)

	srv := New(Config{
		Log:          log,
		DevMode:      true,
		Workers:      engine.Workers(),
		Simulation:   svc,
		Results:      repo,
		ResultsDB:    db,
		EventManager: em,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, events: em, repo: repo}
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	env := setupServer(t)

	var body map[string]interface{}
	require.Equal(t, http.StatusOK, getJSON(t, env.server.URL+"/health", &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "runway", body["service"])
}

func TestSystemStatus(t *testing.T) {
	env := setupServer(t)

	var status SystemStatusResponse
	require.Equal(t, http.StatusOK, getJSON(t, env.server.URL+"/api/system/status", &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 2, status.Workers)
	assert.Positive(t, status.Goroutines)
	assert.GreaterOrEqual(t, status.UptimeSeconds, int64(0))
	assert.NotNil(t, status.Jobs)
}

func TestDatabaseStats(t *testing.T) {
	env := setupServer(t)

	var body struct {
		Name  string         `json:"name"`
		Stats database.Stats `json:"stats"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, env.server.URL+"/api/system/database/stats", &body))
	assert.Equal(t, "results", body.Name)
	assert.Positive(t, body.Stats.PageSize)
}

func TestSimulationIsStoredAndListed(t *testing.T) {
	env := setupServer(t)

	body := `{"baseline": {"scenario_id": "acme", "cash_on_hand": 1200000, "monthly_burn": 150000, "arr": 1800000, "gross_margin_pct": 70, "monthly_churn_pct": 4, "locked": true}}`
	resp, err := http.Post(env.server.URL+"/api/simulations", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Data []results.Summary `json:"data"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, env.server.URL+"/api/results", &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "acme", list.Data[0].ScenarioID)
	assert.Equal(t, 100, list.Data[0].Iterations)
}

func TestEventsStream(t *testing.T) {
	env := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/api/events/stream?types=SIMULATION_COMPLETED", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() map[string]interface{} {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var msg map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg))
				return msg
			}
		}
	}

	assert.Equal(t, "connected", next()["type"])

	// Filtered out
	env.events.EmitTyped("simulation", &events.SimulationStartedData{ScenarioID: "acme"})
	env.events.EmitTyped("simulation", &events.SimulationCompletedData{ScenarioID: "acme", RunKey: "k", SurvivalRate: 0.5})

	msg := next()
	assert.Equal(t, "SIMULATION_COMPLETED", msg["type"])
	assert.Equal(t, "simulation", msg["module"])
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "k", data["run_key"])

	cancel()
	assert.Eventually(t, func() bool {
		return env.events.Bus().SubscriberCount(events.SimulationCompleted) == 0
	}, 5*time.Second, 10*time.Millisecond, "disconnect unsubscribes")
}

func TestEventsSocket(t *testing.T) {
	env := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/events/ws?types=SIMULATION_PROGRESS"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool {
		return env.events.Bus().SubscriberCount(events.SimulationProgress) == 1
	}, 5*time.Second, 10*time.Millisecond)

	env.events.EmitTyped("simulation", &events.SimulationProgressData{
		ScenarioID:          "acme",
		Stage:               montecarlo.StageSimulating,
		IterationsCompleted: 50,
		IterationsTarget:    100,
		Percent:             50,
	})

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "SIMULATION_PROGRESS", msg["type"])
	assert.Equal(t, float64(50), msg["data"].(map[string]interface{})["percent"])

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool {
		return env.events.Bus().SubscriberCount(events.SimulationProgress) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestParseTypes(t *testing.T) {
	assert.Equal(t, events.AllTypes(), parseTypes(""))
	assert.Equal(t,
		[]events.EventType{events.SimulationStarted, events.NumericAnomaly},
		parseTypes(" SIMULATION_STARTED , ,NUMERIC_ANOMALY"),
	)
}
