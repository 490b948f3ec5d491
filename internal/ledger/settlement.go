package ledger

import (
	"context"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/models"
	"github.com/epeers/commitvault/internal/repository"
	"github.com/epeers/commitvault/internal/safemath"
	log "github.com/sirupsen/logrus"
)

// Settle releases the current value of an expired commitment to its owner.
// Any authenticated caller may trigger settlement; funds always go to the
// owner. Expiry is inclusive: a commitment settles at exactly expires_at.
func (l *Ledger) Settle(ctx context.Context, caller, id string) (*models.Settlement, error) {
	s, err := l.settle(ctx, caller, id)
	if err != nil {
		return nil, l.fail(ctx, FnSettle, caller, id, err)
	}
	return s, nil
}

func (l *Ledger) settle(ctx context.Context, caller, id string) (*models.Settlement, error) {
	if err := l.access.RequireInitialized(); err != nil {
		return nil, err
	}
	if caller == "" {
		return nil, errs.With(errs.ErrUnauthorized, "ledger.settle")
	}
	if err := l.limiter.Check(caller, FnSettle); err != nil {
		return nil, err
	}

	ctx, release, err := l.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := l.store.GetCommitment(ctx, id)
	if err != nil {
		return nil, storeErr("ledger.settle", err)
	}
	if c.Status != models.StatusActive {
		return nil, errs.With(errs.ErrWrongState, "ledger.settle: "+string(c.Status))
	}
	now := l.now()
	if now < c.ExpiresAt {
		return nil, errs.With(errs.ErrWrongState, "ledger.settle: not expired")
	}

	out := &models.Settlement{
		CommitmentID:   id,
		Status:         models.StatusSettled,
		ReleasedAmount: c.CurrentValue,
		Timestamp:      now,
	}
	if err := l.close(ctx, c, models.StatusSettled, c.CurrentValue); err != nil {
		return nil, err
	}

	l.events.Publish(ctx, events.Event{
		Name:         events.CommitmentSettled,
		CommitmentID: id,
		Actor:        caller,
		Data:         map[string]any{"released": out.ReleasedAmount, "owner": c.Owner},
		Timestamp:    now,
	})
	log.Infof("commitment %s settled: released %d to %s", id, out.ReleasedAmount, c.Owner)
	return out, nil
}

// EarlyExit closes an unexpired commitment at the owner's request,
// withholding the early-exit penalty from the released value.
func (l *Ledger) EarlyExit(ctx context.Context, caller, id string) (*models.Settlement, error) {
	s, err := l.earlyExit(ctx, caller, id)
	if err != nil {
		return nil, l.fail(ctx, FnEarlyExit, caller, id, err)
	}
	return s, nil
}

func (l *Ledger) earlyExit(ctx context.Context, caller, id string) (*models.Settlement, error) {
	if err := l.access.RequireInitialized(); err != nil {
		return nil, err
	}
	if caller == "" {
		return nil, errs.With(errs.ErrUnauthorized, "ledger.early_exit")
	}
	if err := l.limiter.Check(caller, FnEarlyExit); err != nil {
		return nil, err
	}

	ctx, release, err := l.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := l.store.GetCommitment(ctx, id)
	if err != nil {
		return nil, storeErr("ledger.early_exit", err)
	}
	if err := l.access.RequireOwner(caller, c.Owner); err != nil {
		return nil, err
	}
	if c.Status != models.StatusActive {
		return nil, errs.With(errs.ErrWrongState, "ledger.early_exit: "+string(c.Status))
	}
	now := l.now()
	if now >= c.ExpiresAt {
		return nil, errs.With(errs.ErrWrongState, "ledger.early_exit: expired")
	}

	penalty, err := safemath.PenaltyAmount(c.CurrentValue, c.Rules.EarlyExitPenaltyPercent)
	if err != nil {
		return nil, err
	}
	released, err := safemath.Sub(c.CurrentValue, penalty)
	if err != nil {
		return nil, err
	}

	out := &models.Settlement{
		CommitmentID:   id,
		Status:         models.StatusEarlyExit,
		ReleasedAmount: released,
		PenaltyAmount:  penalty,
		Timestamp:      now,
	}
	if err := l.close(ctx, c, models.StatusEarlyExit, released); err != nil {
		return nil, err
	}

	l.events.Publish(ctx, events.Event{
		Name:         events.CommitmentEarlyExit,
		CommitmentID: id,
		Actor:        caller,
		Data:         map[string]any{"released": released, "penalty": penalty},
		Timestamp:    now,
	})
	log.Infof("commitment %s exited early: released %d, penalty %d", id, released, penalty)
	return out, nil
}

// close moves c to a terminal status, releasing `released` to the owner.
// The terminal status and the reduced total are committed before any funds
// move, so a retry after a failed write finds nothing released. A failed
// release or registry settlement reopens the commitment.
func (l *Ledger) close(ctx context.Context, c *models.Commitment, status models.CommitmentStatus, released int64) error {
	locked := c.CurrentValue
	closed := *c
	closed.Status = status
	err := l.store.WithTx(ctx, func(tx repository.Tx) error {
		stats, err := tx.GetLedgerStats(ctx)
		if err != nil {
			return err
		}
		if stats.TotalValueLocked, err = adjustTVL(stats.TotalValueLocked, locked, 0); err != nil {
			return err
		}
		if err := tx.PutCommitment(ctx, &closed); err != nil {
			return err
		}
		return tx.PutLedgerStats(ctx, stats)
	})
	if err != nil {
		return storeErr("ledger.close", err)
	}

	if err := l.vault.Release(ctx, c.Owner, c.Asset, released); err != nil {
		l.reopen(ctx, c)
		return errs.Wrap(errs.ErrTransferFailed, "ledger.close: release", err)
	}
	if err := l.registry.Settle(ctx, c.RegistryTokenID); err != nil {
		if released > 0 {
			if lerr := l.vault.Lock(ctx, c.Owner, c.Asset, released); lerr != nil {
				log.WithError(lerr).Errorf("ledger: failed to return released funds of %s to escrow", c.ID)
			}
		}
		l.reopen(ctx, c)
		return errs.Wrap(errs.ErrRegistryFailed, "ledger.close: settle token", err)
	}

	c.Status = status
	return nil
}

// reopen restores an active commitment whose close could not complete
func (l *Ledger) reopen(ctx context.Context, c *models.Commitment) {
	err := l.store.WithTx(ctx, func(tx repository.Tx) error {
		stats, err := tx.GetLedgerStats(ctx)
		if err != nil {
			return err
		}
		if stats.TotalValueLocked, err = adjustTVL(stats.TotalValueLocked, 0, c.CurrentValue); err != nil {
			return err
		}
		if err := tx.PutCommitment(ctx, c); err != nil {
			return err
		}
		return tx.PutLedgerStats(ctx, stats)
	})
	if err != nil {
		log.WithError(err).Errorf("ledger: commitment %s closed without its release", c.ID)
	}
}
