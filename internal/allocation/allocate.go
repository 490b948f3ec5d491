package allocation

import (
	"context"
	"errors"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/models"
	"github.com/epeers/commitvault/internal/repository"
	"github.com/epeers/commitvault/internal/safemath"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Allocate places up to amount of a commitment's principal across pools
// according to strategy. The fill is best effort: compare TotalAllocated
// with the request.
func (e *Engine) Allocate(ctx context.Context, caller, commitmentID string, amount int64, strategy models.Strategy) (*models.Allocation, error) {
	a, err := e.allocate(ctx, caller, commitmentID, amount, strategy)
	if err != nil {
		return nil, e.events.Fail(ctx, e.now(), "allocation."+FnAllocate, caller, commitmentID, err)
	}
	return a, nil
}

func (e *Engine) allocate(ctx context.Context, caller, commitmentID string, amount int64, strategy models.Strategy) (*models.Allocation, error) {
	if err := e.access.RequireInitialized(); err != nil {
		return nil, err
	}
	if caller == "" {
		return nil, errs.With(errs.ErrUnauthorized, "allocation.allocate")
	}
	if err := e.limiter.Check(caller, FnAllocate); err != nil {
		return nil, err
	}

	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if amount <= 0 {
		return nil, errs.With(errs.ErrInvalidAmount, "allocation.allocate")
	}
	if !strategy.Valid() {
		return nil, errs.With(errs.ErrInvalidType, "allocation.allocate: strategy")
	}

	c, err := e.ledger.GetCommitment(ctx, commitmentID)
	if err != nil {
		var typed *errs.Error
		if errors.As(err, &typed) {
			return nil, err
		}
		return nil, errs.Wrap(errs.ErrCrossComponent, "allocation.allocate", err)
	}
	if err := e.access.RequireOwner(caller, c.Owner); err != nil {
		return nil, err
	}
	if c.Status != models.StatusActive {
		return nil, errs.With(errs.ErrNotActive, "allocation.allocate: "+string(c.Status))
	}
	if amount > c.Principal {
		return nil, errs.With(errs.ErrInsufficientValue, "allocation.allocate: amount exceeds principal")
	}

	now := e.now()
	out := &models.Allocation{
		CommitmentID: commitmentID,
		Owner:        c.Owner,
		Strategy:     strategy,
		Requested:    amount,
		UpdatedAt:    now,
	}
	err = e.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetAllocation(ctx, commitmentID); err == nil {
			return errs.With(errs.ErrAlreadyProcessed, "allocation.allocate: already allocated")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		all, err := tx.ListPools(ctx)
		if err != nil {
			return err
		}
		pools := eligible(all, strategy)
		if len(pools) == 0 {
			return errs.With(errs.ErrNoSuitablePools, "allocation.allocate: "+string(strategy))
		}
		entries, total, err := plan(amount, pools, strategy)
		if err != nil {
			return err
		}
		if total == 0 {
			return errs.With(errs.ErrNoSuitablePools, "allocation.allocate: no free capacity")
		}
		if err := putPools(ctx, tx, pools, entries, now); err != nil {
			return err
		}
		out.Entries = entries
		out.TotalAllocated = total
		return tx.PutAllocation(ctx, out)
	})
	if err != nil {
		return nil, storeErr("allocation.allocate", err)
	}

	if out.TotalAllocated < amount {
		log.Warnf("allocation for %s filled %d of %d", commitmentID, out.TotalAllocated, amount)
	}
	e.events.Publish(ctx, events.Event{
		Name:         events.Allocated,
		CommitmentID: commitmentID,
		Actor:        caller,
		Data: map[string]any{
			"strategy":        string(strategy),
			"requested":       amount,
			"total_allocated": out.TotalAllocated,
			"pools":           len(out.Entries),
		},
		Timestamp: now,
	})
	return out, nil
}

// Rebalance returns a commitment's liquidity to its pools and places the
// same total again against current pool state, overwriting the record.
func (e *Engine) Rebalance(ctx context.Context, caller, commitmentID string) (*models.Allocation, error) {
	a, err := e.rebalance(ctx, caller, commitmentID)
	if err != nil {
		return nil, e.events.Fail(ctx, e.now(), "allocation."+FnRebalance, caller, commitmentID, err)
	}
	return a, nil
}

func (e *Engine) rebalance(ctx context.Context, caller, commitmentID string) (*models.Allocation, error) {
	if err := e.access.RequireInitialized(); err != nil {
		return nil, err
	}
	if caller == "" {
		return nil, errs.With(errs.ErrUnauthorized, "allocation.rebalance")
	}
	if err := e.limiter.Check(caller, FnRebalance); err != nil {
		return nil, err
	}

	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := e.store.GetAllocation(ctx, commitmentID)
	if err != nil {
		return nil, storeErr("allocation.rebalance", err)
	}
	if err := e.access.RequireOwner(caller, current.Owner); err != nil {
		return nil, err
	}

	now := e.now()
	var out *models.Allocation
	err = e.store.WithTx(ctx, func(tx repository.Tx) error {
		a, err := tx.GetAllocation(ctx, commitmentID)
		if err != nil {
			return err
		}
		all, err := tx.ListPools(ctx)
		if err != nil {
			return err
		}
		byID := make(map[uint32]*models.Pool, len(all))
		for i := range all {
			byID[all[i].ID] = &all[i]
		}

		var target int64
		for _, entry := range a.Entries {
			p, ok := byID[entry.PoolID]
			if !ok {
				return errs.With(errs.ErrNotFound, "allocation.rebalance: pool")
			}
			if p.TotalLiquidity, err = safemath.Sub(p.TotalLiquidity, entry.Amount); err != nil {
				return err
			}
			if p.TotalLiquidity < 0 {
				return errs.With(errs.ErrArithmeticOverflow, "allocation.rebalance: pool liquidity")
			}
			if target, err = safemath.Add(target, entry.Amount); err != nil {
				return err
			}
		}

		pools := eligible(all, a.Strategy)
		entries, total, err := plan(target, pools, a.Strategy)
		if err != nil {
			return err
		}

		// write every pool that gave back or received liquidity
		touched := make(map[uint32]bool)
		for _, entry := range a.Entries {
			touched[entry.PoolID] = true
		}
		for _, entry := range entries {
			touched[entry.PoolID] = true
		}
		for i := range all {
			if !touched[all[i].ID] {
				continue
			}
			all[i].UpdatedAt = now
			if err := tx.PutPool(ctx, &all[i]); err != nil {
				return err
			}
		}

		a.Entries = entries
		a.TotalAllocated = total
		a.UpdatedAt = now
		out = a
		return tx.PutAllocation(ctx, a)
	})
	if err != nil {
		return nil, storeErr("allocation.rebalance", err)
	}

	e.events.Publish(ctx, events.Event{
		Name:         events.Rebalanced,
		CommitmentID: commitmentID,
		Actor:        caller,
		Data:         map[string]any{"total_allocated": out.TotalAllocated, "pools": len(out.Entries)},
		Timestamp:    now,
	})
	return out, nil
}

// putPools writes back the pools that received an entry
func putPools(ctx context.Context, tx repository.Tx, pools []*models.Pool, entries []models.AllocationEntry, now int64) error {
	used := make(map[uint32]bool, len(entries))
	for _, entry := range entries {
		used[entry.PoolID] = true
	}
	for _, p := range pools {
		if !used[p.ID] {
			continue
		}
		p.UpdatedAt = now
		if err := tx.PutPool(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

var bpsPerUnit = decimal.NewFromInt(10_000)

// EstimateYield returns the annual yield implied by each entry's pool APY
func (e *Engine) EstimateYield(ctx context.Context, commitmentID string) (decimal.Decimal, error) {
	a, err := e.GetAllocation(ctx, commitmentID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, entry := range a.Entries {
		p, err := e.GetPool(ctx, entry.PoolID)
		if err != nil {
			return decimal.Zero, err
		}
		apy := decimal.NewFromInt(int64(p.APYBps)).Div(bpsPerUnit)
		total = total.Add(decimal.NewFromInt(entry.Amount).Mul(apy))
	}
	return total.Round(7), nil
}
