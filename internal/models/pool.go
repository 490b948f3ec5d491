package models

// RiskLevel is the tier of a yield pool.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// Strategy selects how capital is split across risk tiers.
type Strategy string

const (
	StrategySafe       Strategy = "safe"
	StrategyBalanced   Strategy = "balanced"
	StrategyAggressive Strategy = "aggressive"
)

func (s Strategy) Valid() bool {
	return s == StrategySafe || s == StrategyBalanced || s == StrategyAggressive
}

// Pool is a risk-tiered capacity bucket.
type Pool struct {
	ID             uint32    `json:"id"`
	RiskLevel      RiskLevel `json:"risk_level"`
	APYBps         uint32    `json:"apy_bps"`
	MaxCapacity    int64     `json:"max_capacity"`
	TotalLiquidity int64     `json:"total_liquidity"`
	Active         bool      `json:"active"`
	CreatedAt      int64     `json:"created_at"`
	UpdatedAt      int64     `json:"updated_at"`
}

// FreeCapacity is the room left in the pool, never negative.
func (p Pool) FreeCapacity() int64 {
	if p.TotalLiquidity >= p.MaxCapacity {
		return 0
	}
	return p.MaxCapacity - p.TotalLiquidity
}

// AllocationEntry is the amount placed in one pool.
type AllocationEntry struct {
	PoolID uint32 `json:"pool_id"`
	Amount int64  `json:"amount"`
}

// Allocation is a commitment's placement across pools.
type Allocation struct {
	CommitmentID   string            `json:"commitment_id"`
	Owner          string            `json:"owner"`
	Strategy       Strategy          `json:"strategy"`
	Requested      int64             `json:"requested"`
	TotalAllocated int64             `json:"total_allocated"`
	Entries        []AllocationEntry `json:"entries"`
	UpdatedAt      int64             `json:"updated_at"`
}
