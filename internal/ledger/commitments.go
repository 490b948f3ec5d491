package ledger

import (
	"context"
	"time"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/guard"
	"github.com/epeers/commitvault/internal/models"
	"github.com/epeers/commitvault/internal/repository"
	"github.com/epeers/commitvault/internal/safemath"
	"github.com/epeers/commitvault/internal/util"
	log "github.com/sirupsen/logrus"
)

// ValidateRules checks rules in a fixed order and returns the first failure
func ValidateRules(rules models.CommitmentRules) error {
	if rules.DurationDays == 0 {
		return errs.With(errs.ErrInvalidDuration, "rules.duration_days")
	}
	if rules.MaxLossPercent > 100 {
		return errs.With(errs.ErrInvalidPercent, "rules.max_loss_percent")
	}
	if !rules.CommitmentType.Valid() {
		return errs.With(errs.ErrInvalidType, "rules.commitment_type")
	}
	if rules.EarlyExitPenaltyPercent > 100 {
		return errs.With(errs.ErrInvalidPercent, "rules.early_exit_penalty_percent")
	}
	if rules.MinFeeThreshold < 0 {
		return errs.With(errs.ErrOutOfRange, "rules.min_fee_threshold")
	}
	return nil
}

// CreateCommitment locks amount from owner under rules and records the
// commitment. Nothing is persisted when any step fails.
func (l *Ledger) CreateCommitment(ctx context.Context, owner string, amount int64, asset string, rules models.CommitmentRules) (*models.Commitment, error) {
	c, err := l.createCommitment(ctx, owner, amount, asset, rules)
	if err != nil {
		return nil, l.fail(ctx, FnCreate, owner, "", err)
	}
	return c, nil
}

func (l *Ledger) createCommitment(ctx context.Context, owner string, amount int64, asset string, rules models.CommitmentRules) (*models.Commitment, error) {
	if err := l.access.RequireInitialized(); err != nil {
		return nil, err
	}
	if owner == "" {
		return nil, errs.With(errs.ErrUnauthorized, "ledger.create: owner")
	}
	if l.EmergencyMode() {
		return nil, errs.With(errs.ErrEmergencyMode, "ledger.create")
	}
	if err := l.limiter.Check(owner, FnCreate); err != nil {
		return nil, err
	}

	ctx, release, err := l.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if amount <= 0 {
		return nil, errs.With(errs.ErrInvalidAmount, "ledger.create")
	}
	if asset == "" {
		return nil, errs.With(errs.ErrEmptyField, "ledger.create: asset")
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	now := l.now()
	expiresAt, err := safemath.Add(now, util.DaysToSeconds(rules.DurationDays))
	if err != nil {
		return nil, err
	}
	stats, err := l.store.GetLedgerStats(ctx)
	if err != nil {
		return nil, storeErr("ledger.create", err)
	}
	if _, err := safemath.Add(stats.TotalValueLocked, amount); err != nil {
		return nil, err
	}

	c := &models.Commitment{
		ID:           l.newID(),
		Owner:        owner,
		Asset:        asset,
		Rules:        rules,
		Principal:    amount,
		CurrentValue: amount,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
		Status:       models.StatusActive,
	}

	if err := l.vault.Lock(ctx, owner, asset, amount); err != nil {
		return nil, errs.Wrap(errs.ErrTransferFailed, "ledger.create: lock", err)
	}
	tokenID, err := l.registry.Mint(ctx, owner, c.ID, rules, amount, asset)
	if err != nil {
		l.compensateLock(ctx, c)
		return nil, errs.Wrap(errs.ErrRegistryFailed, "ledger.create: mint", err)
	}
	c.RegistryTokenID = tokenID

	err = l.store.WithTx(ctx, func(tx repository.Tx) error {
		stats, err := tx.GetLedgerStats(ctx)
		if err != nil {
			return err
		}
		if stats.TotalValueLocked, err = safemath.Add(stats.TotalValueLocked, amount); err != nil {
			return err
		}
		stats.TotalCommitments++
		if err := tx.PutCommitment(ctx, c); err != nil {
			return err
		}
		return tx.PutLedgerStats(ctx, stats)
	})
	if err != nil {
		if rerr := l.registry.Settle(ctx, tokenID); rerr != nil {
			log.WithError(rerr).Errorf("ledger: failed to unwind token %d", tokenID)
		}
		l.compensateLock(ctx, c)
		return nil, storeErr("ledger.create", err)
	}

	l.events.Publish(ctx, events.Event{
		Name:         events.CommitmentCreated,
		CommitmentID: c.ID,
		Actor:        owner,
		Data: map[string]any{
			"amount":     amount,
			"asset":      asset,
			"token_id":   tokenID,
			"expires_at": expiresAt,
		},
		Timestamp: now,
	})
	log.Infof("commitment %s created for %s: %d %s", c.ID, owner, amount, asset)
	return c, nil
}

func (l *Ledger) compensateLock(ctx context.Context, c *models.Commitment) {
	if err := l.vault.Release(ctx, c.Owner, c.Asset, c.Principal); err != nil {
		log.WithError(err).Errorf("ledger: failed to return locked funds for %s", c.ID)
	}
}

// GetCommitment retrieves a commitment by id
func (l *Ledger) GetCommitment(ctx context.Context, id string) (*models.Commitment, error) {
	c, err := l.store.GetCommitment(ctx, id)
	if err != nil {
		return nil, storeErr("ledger.get_commitment", err)
	}
	return c, nil
}

// ListOwnerCommitments returns an owner's commitments in creation order
func (l *Ledger) ListOwnerCommitments(ctx context.Context, owner string) ([]models.Commitment, error) {
	defer util.TrackTime("ListOwnerCommitments", time.Now())
	list, err := l.store.ListCommitmentsByOwner(ctx, owner)
	if err != nil {
		return nil, storeErr("ledger.list_owner_commitments", err)
	}
	return list, nil
}

// ListActiveCommitments returns every active commitment
func (l *Ledger) ListActiveCommitments(ctx context.Context) ([]models.Commitment, error) {
	defer util.TrackTime("ListActiveCommitments", time.Now())
	list, err := l.store.ListActiveCommitments(ctx)
	if err != nil {
		return nil, storeErr("ledger.list_active_commitments", err)
	}
	return list, nil
}

// Stats returns the global commitment counters
func (l *Ledger) Stats(ctx context.Context) (models.LedgerStats, error) {
	s, err := l.store.GetLedgerStats(ctx)
	if err != nil {
		return s, storeErr("ledger.stats", err)
	}
	return s, nil
}

// UpdateValue records a new current value for an active commitment. The
// caller must be the owner, the admin, or hold the value_updater capability.
func (l *Ledger) UpdateValue(ctx context.Context, caller, id string, newValue int64) (*models.Commitment, error) {
	c, err := l.updateValue(ctx, caller, id, newValue)
	if err != nil {
		return nil, l.fail(ctx, FnUpdateValue, caller, id, err)
	}
	return c, nil
}

func (l *Ledger) updateValue(ctx context.Context, caller, id string, newValue int64) (*models.Commitment, error) {
	if err := l.access.RequireInitialized(); err != nil {
		return nil, err
	}
	if caller == "" {
		return nil, errs.With(errs.ErrUnauthorized, "ledger.update_value")
	}
	if err := l.limiter.Check(caller, FnUpdateValue); err != nil {
		return nil, err
	}

	ctx, release, err := l.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if newValue < 0 {
		return nil, errs.With(errs.ErrInvalidAmount, "ledger.update_value")
	}
	c, err := l.store.GetCommitment(ctx, id)
	if err != nil {
		return nil, storeErr("ledger.update_value", err)
	}
	if caller != c.Owner {
		if err := l.access.RequireAdminOr(caller, guard.CapValueUpdater); err != nil {
			return nil, err
		}
	}
	if c.Status != models.StatusActive {
		return nil, errs.With(errs.ErrWrongState, "ledger.update_value: "+string(c.Status))
	}

	stats, err := l.store.GetLedgerStats(ctx)
	if err != nil {
		return nil, storeErr("ledger.update_value", err)
	}
	if _, err := adjustTVL(stats.TotalValueLocked, c.CurrentValue, newValue); err != nil {
		return nil, err
	}

	old := c.CurrentValue
	c.CurrentValue = newValue
	err = l.store.WithTx(ctx, func(tx repository.Tx) error {
		stats, err := tx.GetLedgerStats(ctx)
		if err != nil {
			return err
		}
		if stats.TotalValueLocked, err = adjustTVL(stats.TotalValueLocked, old, newValue); err != nil {
			return err
		}
		if err := tx.PutCommitment(ctx, c); err != nil {
			return err
		}
		return tx.PutLedgerStats(ctx, stats)
	})
	if err != nil {
		return nil, storeErr("ledger.update_value", err)
	}

	now := l.now()
	l.events.Publish(ctx, events.Event{
		Name:         events.CommitmentValueUpdated,
		CommitmentID: id,
		Actor:        caller,
		Data:         map[string]any{"old_value": old, "new_value": newValue},
		Timestamp:    now,
	})
	if d := Evaluate(c, now); d.LossViolated {
		l.events.Publish(ctx, events.Event{
			Name:         events.CommitmentViolated,
			CommitmentID: id,
			Data:         map[string]any{"loss_percent": d.LossPercent, "max_loss_percent": c.Rules.MaxLossPercent},
			Timestamp:    now,
		})
	}
	return c, nil
}

// adjustTVL replaces old with next inside the total value locked
func adjustTVL(tvl, old, next int64) (int64, error) {
	v, err := safemath.Sub(tvl, old)
	if err != nil {
		return 0, err
	}
	v, err = safemath.Add(v, next)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errs.With(errs.ErrArithmeticOverflow, "ledger.total_value_locked")
	}
	return v, nil
}
