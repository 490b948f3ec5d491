package allocation

import (
	"sort"

	"github.com/epeers/commitvault/internal/models"
	"github.com/epeers/commitvault/internal/safemath"
)

// tierWeight is the percentage of an allocation aimed at one risk tier
type tierWeight struct {
	risk    models.RiskLevel
	percent uint32
}

var strategyWeights = map[models.Strategy][]tierWeight{
	models.StrategySafe: {
		{models.RiskLow, 100},
	},
	models.StrategyBalanced: {
		{models.RiskLow, 40},
		{models.RiskMedium, 40},
		{models.RiskHigh, 20},
	},
	models.StrategyAggressive: {
		{models.RiskMedium, 30},
		{models.RiskHigh, 70},
	},
}

// Weights returns the tier split used by strategy
func Weights(strategy models.Strategy) map[models.RiskLevel]uint32 {
	out := make(map[models.RiskLevel]uint32)
	for _, w := range strategyWeights[strategy] {
		out[w.risk] = w.percent
	}
	return out
}

// eligible returns the active pools whose tier the strategy uses, by id
func eligible(pools []models.Pool, strategy models.Strategy) []*models.Pool {
	tiers := Weights(strategy)
	var out []*models.Pool
	for i := range pools {
		p := &pools[i]
		if !p.Active {
			continue
		}
		if _, ok := tiers[p.RiskLevel]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// plan splits amount over pools and adds the placed amounts to each
// pool's liquidity. Each tier's share is divided evenly across the tier's
// pools and capped by free capacity; whatever is left then fills the free
// capacity of the eligible pools in id order. The returned entries are
// ordered by pool id and total at most amount.
func plan(amount int64, pools []*models.Pool, strategy models.Strategy) ([]models.AllocationEntry, int64, error) {
	placed := make(map[uint32]int64)
	var filled int64

	put := func(p *models.Pool, want int64) error {
		n := min(want, p.FreeCapacity())
		if n <= 0 {
			return nil
		}
		var err error
		if p.TotalLiquidity, err = safemath.Add(p.TotalLiquidity, n); err != nil {
			return err
		}
		placed[p.ID] += n
		filled += n
		return nil
	}

	for _, w := range strategyWeights[strategy] {
		var tier []*models.Pool
		for _, p := range pools {
			if p.RiskLevel == w.risk {
				tier = append(tier, p)
			}
		}
		if len(tier) == 0 {
			continue
		}
		share, err := safemath.Percent(amount, w.percent)
		if err != nil {
			return nil, 0, err
		}
		each, err := safemath.Div(share, int64(len(tier)))
		if err != nil {
			return nil, 0, err
		}
		for _, p := range tier {
			if err := put(p, each); err != nil {
				return nil, 0, err
			}
		}
	}

	for _, p := range pools {
		rest := amount - filled
		if rest <= 0 {
			break
		}
		if err := put(p, rest); err != nil {
			return nil, 0, err
		}
	}

	entries := make([]models.AllocationEntry, 0, len(placed))
	for _, p := range pools {
		if n := placed[p.ID]; n > 0 {
			entries = append(entries, models.AllocationEntry{PoolID: p.ID, Amount: n})
		}
	}
	return entries, filled, nil
}
