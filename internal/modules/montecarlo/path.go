package montecarlo

import (
	"github.com/aristath/runway/internal/modules/elasticity"
)

// TrajectoryPoint is one month of one simulated path
type TrajectoryPoint struct {
	Month    int     `json:"month" msgpack:"month"`
	ARR      float64 `json:"arr" msgpack:"arr"`
	Cash     float64 `json:"cash" msgpack:"cash"`
	Burn     float64 `json:"burn" msgpack:"burn"`
	Runway   float64 `json:"runway" msgpack:"runway"`
	Survived bool    `json:"survived" msgpack:"survived"`
}

// Path is the trajectory of one iteration. DeathMonth is the first month with
// cash <= 0, or 0 when the path survived the horizon. An anomalous path stops at
// the last finite month and is excluded from aggregation.
type Path struct {
	Iteration     int               `json:"iteration" msgpack:"iteration"`
	Points        []TrajectoryPoint `json:"points" msgpack:"points"`
	Survived      bool              `json:"survived" msgpack:"survived"`
	DeathMonth    int               `json:"death_month,omitempty" msgpack:"death_month"`
	Anomaly       bool              `json:"anomaly,omitempty" msgpack:"anomaly"`
	AnomalyReason string            `json:"anomaly_reason,omitempty" msgpack:"anomaly_reason"`
}

// Terminal returns the last recorded point
func (p Path) Terminal() (TrajectoryPoint, bool) {
	if len(p.Points) == 0 {
		return TrajectoryPoint{}, false
	}
	return p.Points[len(p.Points)-1], true
}

// AliveAt reports whether the path was alive at the given month (1-based)
func (p Path) AliveAt(month int) bool {
	if p.Anomaly || month < 1 || month > len(p.Points) {
		return false
	}
	return p.Points[month-1].Survived
}

// Run is a completed ensemble. Paths are ordered by iteration index.
type Run struct {
	Key    string                `json:"key" msgpack:"key"`
	Seed   uint64                `json:"seed" msgpack:"seed"`
	Config Config                `json:"config" msgpack:"config"`
	Params elasticity.Parameters `json:"params" msgpack:"params"`
	Start  StartState            `json:"start" msgpack:"start"`
	Paths  []Path                `json:"paths" msgpack:"paths"`
}

// Progress reports how far a run has come
type Progress struct {
	IterationsCompleted int    `json:"iterations_completed"`
	IterationsTarget    int    `json:"iterations_target"`
	Stage               string `json:"stage"`
}

// Fraction returns completed / target in [0,1]
func (p Progress) Fraction() float64 {
	if p.IterationsTarget <= 0 {
		return 0
	}
	return float64(p.IterationsCompleted) / float64(p.IterationsTarget)
}

// ProgressFunc receives progress updates. Calls are serialised and completed counts never decrease.
type ProgressFunc func(Progress)

// StageSimulating is the stage reported while the main ensemble runs
const StageSimulating = "simulating"
