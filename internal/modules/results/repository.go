// Package results provides the repository for delivered simulation results.
// Each scenario keeps only its latest AggregateResult; saving a newer run overwrites it.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/runway/internal/modules/aggregation"
	"github.com/aristath/runway/internal/modules/elasticity"
)

// ErrNotFound is returned when a scenario has no stored result
var ErrNotFound = errors.New("result not found")

// Summary is the indexed part of a stored result, readable without decoding the payload
type Summary struct {
	ScenarioID    string          `json:"scenario_id"`
	RunKey        string          `json:"run_key"`
	Seed          uint64          `json:"seed,string"`
	Iterations    int             `json:"iterations"`
	HorizonMonths int             `json:"horizon_months"`
	Fragility     int             `json:"fragility"`
	Band          elasticity.Band `json:"band"`
	SurvivalRate  float64         `json:"survival_rate"`
	P50           float64         `json:"p50"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Repository handles result storage in results.db.
//
// The payload column holds the msgpack-encoded AggregateResult; the other columns are
// denormalised for listing and pruning.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a new results repository.
//
// Parameters:
//   - db: Database connection to results.db (schema applied)
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "results").Logger(),
		now: time.Now,
	}
}

// Save stores the result of a scenario, replacing any earlier one.
//
// Parameters:
//   - ctx: Context for cancellation
//   - res: Result to store; res.ScenarioID is the key
//
// Returns:
//   - error: Error if encoding or the upsert fails
func (r *Repository) Save(ctx context.Context, res *aggregation.AggregateResult) error {
	if res == nil || res.ScenarioID == "" {
		return fmt.Errorf("save result: scenario id is required")
	}

	payload, err := msgpack.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result for %s: %w", res.ScenarioID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO scenario_results
			(scenario_id, run_key, seed, iterations, horizon_months, fragility, band, survival_rate, p50, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scenario_id) DO UPDATE SET
			run_key = excluded.run_key,
			seed = excluded.seed,
			iterations = excluded.iterations,
			horizon_months = excluded.horizon_months,
			fragility = excluded.fragility,
			band = excluded.band,
			survival_rate = excluded.survival_rate,
			p50 = excluded.p50,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`,
		res.ScenarioID,
		res.RunKey,
		strconv.FormatUint(res.Seed, 10),
		res.Iterations,
		res.HorizonMonths,
		res.Fragility,
		string(res.Band),
		res.SurvivalRate,
		res.Percentiles.P50,
		payload,
		r.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save result for %s: %w", res.ScenarioID, err)
	}

	r.log.Debug().
		Str("scenario_id", res.ScenarioID).
		Str("run_key", res.RunKey).
		Int("payload_bytes", len(payload)).
		Msg("Result saved")
	return nil
}

// Get returns the stored result of a scenario, or ErrNotFound
func (r *Repository) Get(ctx context.Context, scenarioID string) (*aggregation.AggregateResult, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM scenario_results WHERE scenario_id = ?`, scenarioID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scenario %s: %w", scenarioID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result for %s: %w", scenarioID, err)
	}

	var res aggregation.AggregateResult
	if err := msgpack.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("failed to decode result for %s: %w", scenarioID, err)
	}
	return &res, nil
}

// List returns summaries of every stored result, most recently updated first
func (r *Repository) List(ctx context.Context) ([]Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT scenario_id, run_key, seed, iterations, horizon_months, fragility, band, survival_rate, p50, updated_at
		FROM scenario_results
		ORDER BY updated_at DESC, scenario_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var (
			s       Summary
			seedStr string
			band    string
			updated int64
		)
		if err := rows.Scan(&s.ScenarioID, &s.RunKey, &seedStr, &s.Iterations, &s.HorizonMonths,
			&s.Fragility, &band, &s.SurvivalRate, &s.P50, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		if s.Seed, err = strconv.ParseUint(seedStr, 10, 64); err != nil {
			return nil, fmt.Errorf("corrupt seed for %s: %w", s.ScenarioID, err)
		}
		s.Band = elasticity.Band(band)
		s.UpdatedAt = time.Unix(0, updated).UTC()
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return summaries, nil
}

// Delete removes a scenario's result. It returns ErrNotFound when nothing was stored.
func (r *Repository) Delete(ctx context.Context, scenarioID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scenario_results WHERE scenario_id = ?`, scenarioID)
	if err != nil {
		return fmt.Errorf("failed to delete result for %s: %w", scenarioID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("scenario %s: %w", scenarioID, ErrNotFound)
	}
	return nil
}

// PruneOlderThan deletes results not updated within age and returns how many were removed
func (r *Repository) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := r.now().Add(-age).UnixNano()
	res, err := r.db.ExecContext(ctx, `DELETE FROM scenario_results WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned results: %w", err)
	}
	if n > 0 {
		r.log.Info().Int64("removed", n).Dur("older_than", age).Msg("Pruned stale results")
	}
	return n, nil
}
