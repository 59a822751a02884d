package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/modules/aggregation"
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/montecarlo"
)

// ManifestVersion identifies the manifest layout
const ManifestVersion = 1

// Manifest carries everything needed to reproduce a run bit for bit: the locked
// baseline (which determines the seed), the run size, the levers and the fragility
// policy. The result is included for comparison.
type Manifest struct {
	Version    int                          `json:"version"`
	ScenarioID string                       `json:"scenario_id"`
	RunKey     string                       `json:"run_key"`
	Seed       uint64                       `json:"seed,string"`
	Baseline   domain.Baseline              `json:"baseline"`
	Config     montecarlo.Config            `json:"config"`
	Levers     montecarlo.Levers            `json:"levers"`
	Policy     elasticity.Policy            `json:"policy"`
	Result     *aggregation.AggregateResult `json:"result,omitempty"`
	ExportedAt time.Time                    `json:"exported_at"`
}

// DecodeManifest reads a manifest written by Export
func DecodeManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return Manifest{}, fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	return m, nil
}
