package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/runway/internal/domain"
)

func fixture() domain.Baseline {
	return domain.Baseline{
		ScenarioID:        "acme",
		CashOnHand:        1_200_000,
		MonthlyBurn:       150_000,
		ARR:               1_800_000,
		GrossMarginPct:    70,
		MonthlyChurnPct:   4,
		MonthlyGrowthPct:  3,
		DebtOutstanding:   250_000,
		InterestRatePct:   9,
		MonthsToNextRaise: 7,
		Headcount:         18,
		CostLines: []domain.CostLine{
			{Name: "payroll", MonthlyAmount: 110_000},
			{Name: "hosting", MonthlyAmount: 12_000},
		},
		Locked: true,
	}
}

func TestHash_Deterministic(t *testing.T) {
	a := fixture()
	b := fixture()
	assert.Equal(t, Hash(a), Hash(b))
	assert.Equal(t, Hash(a), Hash(a))
}

func TestHash_EveryTrackedFieldMovesTheSeed(t *testing.T) {
	mutations := map[string]func(b *domain.Baseline){
		"scenario":       func(b *domain.Baseline) { b.ScenarioID = "acme2" },
		"cash":           func(b *domain.Baseline) { b.CashOnHand++ },
		"burn":           func(b *domain.Baseline) { b.MonthlyBurn++ },
		"arr":            func(b *domain.Baseline) { b.ARR++ },
		"margin":         func(b *domain.Baseline) { b.GrossMarginPct += 0.01 },
		"churn":          func(b *domain.Baseline) { b.MonthlyChurnPct += 0.01 },
		"growth":         func(b *domain.Baseline) { b.MonthlyGrowthPct += 0.01 },
		"debt":           func(b *domain.Baseline) { b.DebtOutstanding++ },
		"rate":           func(b *domain.Baseline) { b.InterestRatePct += 0.01 },
		"raise":          func(b *domain.Baseline) { b.MonthsToNextRaise++ },
		"headcount":      func(b *domain.Baseline) { b.Headcount++ },
		"cost amount":    func(b *domain.Baseline) { b.CostLines[1].MonthlyAmount++ },
		"cost name":      func(b *domain.Baseline) { b.CostLines[1].Name = "cloud" },
		"cost line drop": func(b *domain.Baseline) { b.CostLines = b.CostLines[:1] },
		"cost order": func(b *domain.Baseline) {
			b.CostLines[0], b.CostLines[1] = b.CostLines[1], b.CostLines[0]
		},
	}

	base := Hash(fixture())
	seen := map[uint64]string{base: "base"}
	for name, mutate := range mutations {
		b := fixture()
		mutate(&b)
		h := Hash(b)
		assert.NotEqual(t, base, h, name)
		if prev, ok := seen[h]; ok {
			t.Errorf("%s collides with %s", name, prev)
		}
		seen[h] = name
	}
}

func TestHash_SignedZeroIsOneValue(t *testing.T) {
	a := fixture()
	a.DebtOutstanding = 0
	b := fixture()
	negZero := 0.0
	negZero = -negZero
	b.DebtOutstanding = negZero

	assert.Equal(t, Hash(a), Hash(b))
}

func TestHash_StringBoundaries(t *testing.T) {
	a := fixture()
	a.CostLines = []domain.CostLine{{Name: "ab", MonthlyAmount: 1}, {Name: "c", MonthlyAmount: 1}}
	b := fixture()
	b.CostLines = []domain.CostLine{{Name: "a", MonthlyAmount: 1}, {Name: "bc", MonthlyAmount: 1}}

	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestHash_NoCollisionsAcrossGrid(t *testing.T) {
	seen := make(map[uint64]bool)
	for cash := 0; cash < 40; cash++ {
		for burn := 0; burn < 40; burn++ {
			for churn := 0; churn < 10; churn++ {
				b := domain.Baseline{
					CashOnHand:      float64(cash) * 50_000,
					MonthlyBurn:     float64(burn) * 5_000,
					ARR:             1_000_000,
					MonthlyChurnPct: float64(churn) * 0.5,
				}
				h := Hash(b)
				assert.False(t, seen[h], "collision at cash=%d burn=%d churn=%d", cash, burn, churn)
				seen[h] = true
			}
		}
	}
}

func TestStream_IndependentPerIteration(t *testing.T) {
	const s = 0xC0FFEE
	seen := make(map[uint64]bool)
	for i := 0; i < 10_000; i++ {
		hi, lo := Stream(s, i)
		assert.NotEqual(t, hi, lo)
		assert.False(t, seen[hi], "iteration %d reuses a stream", i)
		seen[hi] = true
	}

	hi1, lo1 := Stream(s, 417)
	hi2, lo2 := Stream(s, 417)
	assert.Equal(t, hi1, hi2)
	assert.Equal(t, lo1, lo2)

	other, _ := Stream(s+1, 417)
	assert.NotEqual(t, hi1, other)
}

func TestSplitMix64_Avalanche(t *testing.T) {
	a := SplitMix64(1)
	b := SplitMix64(2)
	diff := a ^ b
	bits := 0
	for diff != 0 {
		bits += int(diff & 1)
		diff >>= 1
	}
	assert.Greater(t, bits, 16, "neighbouring inputs flip many output bits")
}
