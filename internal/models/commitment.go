package models

// CommitmentType selects the risk profile of a commitment.
type CommitmentType string

const (
	CommitmentTypeSafe       CommitmentType = "safe"
	CommitmentTypeBalanced   CommitmentType = "balanced"
	CommitmentTypeAggressive CommitmentType = "aggressive"
)

// Valid reports whether t is one of the allowed types.
func (t CommitmentType) Valid() bool {
	switch t {
	case CommitmentTypeSafe, CommitmentTypeBalanced, CommitmentTypeAggressive:
		return true
	}
	return false
}

// CommitmentStatus is the stored lifecycle state. Violated is derived, never stored.
type CommitmentStatus string

const (
	StatusActive    CommitmentStatus = "active"
	StatusSettled   CommitmentStatus = "settled"
	StatusEarlyExit CommitmentStatus = "early_exit"
	// StatusViolated is never persisted by this service; it is accepted when read
	// from older records so compliance checks can reject it.
	StatusViolated CommitmentStatus = "violated"
)

// Terminal reports whether no further transition is possible.
func (s CommitmentStatus) Terminal() bool {
	return s == StatusSettled || s == StatusEarlyExit
}

// CommitmentRules are the negotiated terms of a commitment.
type CommitmentRules struct {
	DurationDays            uint32         `json:"duration_days"`
	MaxLossPercent          uint32         `json:"max_loss_percent"`
	CommitmentType          CommitmentType `json:"commitment_type"`
	EarlyExitPenaltyPercent uint32         `json:"early_exit_penalty_percent"`
	MinFeeThreshold         int64          `json:"min_fee_threshold"`
}

// Commitment is a locked-value agreement. Amounts are minor units; times are unix seconds.
type Commitment struct {
	ID              string           `json:"id"`
	Owner           string           `json:"owner"`
	Asset           string           `json:"asset"`
	RegistryTokenID uint64           `json:"registry_token_id"`
	Rules           CommitmentRules  `json:"rules"`
	Principal       int64            `json:"principal"`
	CurrentValue    int64            `json:"current_value"`
	CreatedAt       int64            `json:"created_at"`
	ExpiresAt       int64            `json:"expires_at"`
	Status          CommitmentStatus `json:"status"`
}

// ViolationDetails explains the violation predicate for one commitment.
type ViolationDetails struct {
	CommitmentID     string `json:"commitment_id"`
	HasViolations    bool   `json:"has_violations"`
	LossViolated     bool   `json:"loss_violated"`
	DurationViolated bool   `json:"duration_violated"`
	LossPercent      int64  `json:"loss_percent"`
	TimeRemaining    int64  `json:"time_remaining"`
}

// LedgerStats are the ledger-wide counters.
type LedgerStats struct {
	TotalCommitments uint64 `json:"total_commitments"`
	TotalValueLocked int64  `json:"total_value_locked"`
}

// Settlement is the outcome of settle or early exit.
type Settlement struct {
	CommitmentID   string           `json:"commitment_id"`
	Status         CommitmentStatus `json:"status"`
	ReleasedAmount int64            `json:"released_amount"`
	PenaltyAmount  int64            `json:"penalty_amount"`
	Timestamp      int64            `json:"timestamp"`
}
