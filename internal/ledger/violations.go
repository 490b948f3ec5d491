package ledger

import (
	"context"

	"github.com/epeers/commitvault/internal/models"
	"github.com/epeers/commitvault/internal/safemath"
	"github.com/epeers/commitvault/internal/util"
)

// Evaluate derives the violation predicate of c at now.
//
// Loss is violated when the floored drawdown is strictly above
// max_loss_percent; duration is violated from expires_at onward, the same
// boundary Settle uses. A zero principal skips the loss check. Commitments
// that already left the active state report no violations.
func Evaluate(c *models.Commitment, now int64) models.ViolationDetails {
	d := models.ViolationDetails{
		CommitmentID:  c.ID,
		TimeRemaining: util.TimeRemaining(now, c.ExpiresAt),
	}
	// an overflowing drawdown counts as a total loss
	loss, err := safemath.DrawdownPercent(c.Principal, c.CurrentValue)
	if err != nil {
		loss = 100
	}
	d.LossPercent = loss

	if c.Status != models.StatusActive {
		return d
	}
	if c.Principal > 0 {
		d.LossViolated = loss > int64(c.Rules.MaxLossPercent)
	}
	d.DurationViolated = now >= c.ExpiresAt
	d.HasViolations = d.LossViolated || d.DurationViolated
	return d
}

// CheckViolations reports whether the loss limit or the duration is violated
func (l *Ledger) CheckViolations(ctx context.Context, id string) (bool, error) {
	d, err := l.GetViolationDetails(ctx, id)
	if err != nil {
		return false, err
	}
	return d.HasViolations, nil
}

// GetViolationDetails returns the components of the violation predicate
func (l *Ledger) GetViolationDetails(ctx context.Context, id string) (models.ViolationDetails, error) {
	c, err := l.GetCommitment(ctx, id)
	if err != nil {
		return models.ViolationDetails{}, err
	}
	return Evaluate(c, l.now()), nil
}
