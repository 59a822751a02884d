package simulation

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/aristath/runway/internal/modules/montecarlo"
)

// RunKey identifies a run by what it computes: the structural seed and a hash of the
// run size and levers. Two requests with equal keys produce bit-identical results.
func RunKey(seed uint64, cfg montecarlo.Config, levers montecarlo.Levers) string {
	return fmt.Sprintf("%016x-%016x", seed, configHash(cfg, levers))
}

func configHash(cfg montecarlo.Config, l montecarlo.Levers) uint64 {
	h := fnv.New64a()
	var buf [8]byte

	putUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	putLever := func(v *float64) {
		if v == nil {
			putUint(0)
			return
		}
		putUint(1)
		f := *v
		if f == 0 {
			f = 0 // folds -0
		}
		putUint(math.Float64bits(f))
	}

	putUint(uint64(cfg.Iterations))
	putUint(uint64(cfg.HorizonMonths))
	putLever(l.CashOnHand)
	putLever(l.MonthlyBurn)
	putLever(l.ARR)
	putLever(l.MonthlyGrowthPct)
	putLever(l.MonthlyChurnPct)
	putLever(l.GrossMarginPct)
	return h.Sum64()
}
