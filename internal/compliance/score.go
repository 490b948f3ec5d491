package compliance

import (
	"math"

	"github.com/epeers/commitvault/internal/models"
	"github.com/epeers/commitvault/internal/safemath"
)

const (
	baseScore          = 100
	violationPenalty   = 20
	maxFeeBonus        = 100
	onTrackBonus       = 10
	healthyScoreFloor  = 80
	defaultSeverityHit = 20
)

// Score computes the compliance score of c from its attestation log at now.
//
// Start at 100, take 20 per non-compliant or violation attestation and one
// point per percent of drawdown beyond max_loss_percent, add up to 100 in
// proportion to attested fees over min_fee_threshold, add 10 while the
// commitment is within its term, then clamp to [0,100]. Arithmetic overflow
// saturates, so the result is always in range.
func Score(c *models.Commitment, log []models.Attestation, now int64) uint32 {
	score := int64(baseScore)

	var violations int64
	for _, a := range log {
		if a.CountsAsViolation() {
			violations++
		}
	}
	score = saturatingSub(score, saturatingMul(violations, violationPenalty))

	if c.Principal > 0 {
		drawdown, err := safemath.DrawdownPercent(c.Principal, c.CurrentValue)
		if err != nil {
			drawdown = 100
		}
		if over := drawdown - int64(c.Rules.MaxLossPercent); over > 0 {
			score = saturatingSub(score, over)
		}
	}

	if fees := AttestedFees(log); c.Rules.MinFeeThreshold > 0 && fees > 0 {
		bonus := int64(maxFeeBonus)
		if pct, err := safemath.PercentFrom(fees, c.Rules.MinFeeThreshold); err == nil && pct < bonus {
			bonus = pct
		}
		score = saturatingAdd(score, bonus)
	}

	if onTrack(c, now) {
		score = saturatingAdd(score, onTrackBonus)
	}

	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return uint32(score)
}

// AttestedFees sums the fee payloads in log, saturating on overflow.
func AttestedFees(log []models.Attestation) int64 {
	var total int64
	for _, a := range log {
		if a.Type != models.AttestationFeeGeneration || a.Payload.Fee == nil {
			continue
		}
		total = saturatingAdd(total, a.Payload.Fee.FeeAmount)
	}
	return total
}

// onTrack reports whether elapsed time is within [0,100]% of the term
func onTrack(c *models.Commitment, now int64) bool {
	if c.ExpiresAt <= c.CreatedAt {
		return false
	}
	total := c.ExpiresAt - c.CreatedAt
	elapsed := now - c.CreatedAt
	if elapsed < 0 {
		elapsed = 0
	}
	progress, err := safemath.PercentFrom(elapsed, total)
	if err != nil {
		return false
	}
	return progress <= 100
}

// severityWeight is the volatility exposure added by a violation
func severityWeight(s models.Severity) int64 {
	switch s {
	case models.SeverityHigh:
		return 30
	case models.SeverityMedium:
		return 20
	case models.SeverityLow:
		return 10
	}
	return defaultSeverityHit
}

func saturatingAdd(a, b int64) int64 {
	v, err := safemath.Add(a, b)
	if err != nil {
		if b > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return v
}

func saturatingSub(a, b int64) int64 {
	v, err := safemath.Sub(a, b)
	if err != nil {
		if b > 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return v
}

func saturatingMul(a, b int64) int64 {
	v, err := safemath.Mul(a, b)
	if err != nil {
		if (a < 0) != (b < 0) {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return v
}
