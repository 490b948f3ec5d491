package allocation

import (
	"context"
	"errors"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/guard"
	"github.com/epeers/commitvault/internal/ledger"
	"github.com/epeers/commitvault/internal/models"
	"github.com/epeers/commitvault/internal/repository"
	"github.com/epeers/commitvault/internal/util"
)

// Rate-limited function names.
const (
	FnRegisterPool = "register_pool"
	FnUpdatePool   = "update_pool"
	FnAllocate     = "allocate"
	FnRebalance    = "rebalance"
)

// MaxAPYBps caps a pool's advertised yield at 1000%.
const MaxAPYBps = 100_000

// Engine places committed capital into risk-tiered pools. Commitments are
// read only through ledger.Reader.
type Engine struct {
	store   repository.Store
	ledger  ledger.Reader
	access  *guard.AccessControl
	limiter *guard.RateLimiter
	guard   *guard.Reentrancy
	clock   util.Clock
	events  *events.Publisher
}

// New creates an Engine. It must be initialised before use.
func New(store repository.Store, reader ledger.Reader, limiter *guard.RateLimiter, clock util.Clock, pub *events.Publisher) *Engine {
	if clock == nil {
		clock = util.SystemClock{}
	}
	if limiter == nil {
		limiter = guard.NewRateLimiter(clock)
	}
	return &Engine{
		store:   store,
		ledger:  reader,
		access:  guard.NewAccessControl(),
		limiter: limiter,
		guard:   guard.NewReentrancy("allocation"),
		clock:   clock,
		events:  pub,
	}
}

// Initialize sets the engine admin. It can only be called once.
func (e *Engine) Initialize(admin string) error {
	return e.access.Initialize(admin)
}

// Access exposes the engine's capability store
func (e *Engine) Access() *guard.AccessControl {
	return e.access
}

// admin runs the checks shared by pool management calls
func (e *Engine) admin(caller, fn string) error {
	if err := e.access.RequireInitialized(); err != nil {
		return err
	}
	if err := e.access.RequireAdminOr(caller, guard.CapPoolManager); err != nil {
		return err
	}
	return e.limiter.Check(caller, fn)
}

// RegisterPool adds a pool. Pool ids are chosen by the caller and unique.
func (e *Engine) RegisterPool(ctx context.Context, caller string, id uint32, risk models.RiskLevel, apyBps uint32, maxCapacity int64) (*models.Pool, error) {
	p, err := e.registerPool(ctx, caller, id, risk, apyBps, maxCapacity)
	if err != nil {
		return nil, e.fail(ctx, FnRegisterPool, caller, err)
	}
	return p, nil
}

func (e *Engine) registerPool(ctx context.Context, caller string, id uint32, risk models.RiskLevel, apyBps uint32, maxCapacity int64) (*models.Pool, error) {
	if err := e.admin(caller, FnRegisterPool); err != nil {
		return nil, err
	}
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if !risk.Valid() {
		return nil, errs.With(errs.ErrInvalidType, "allocation.register_pool: risk_level")
	}
	if maxCapacity <= 0 {
		return nil, errs.With(errs.ErrInvalidCapacity, "allocation.register_pool")
	}
	if apyBps > MaxAPYBps {
		return nil, errs.With(errs.ErrInvalidAPY, "allocation.register_pool")
	}

	now := e.now()
	p := &models.Pool{
		ID:          id,
		RiskLevel:   risk,
		APYBps:      apyBps,
		MaxCapacity: maxCapacity,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = e.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetPool(ctx, id); err == nil {
			return errs.With(errs.ErrAlreadyProcessed, "allocation.register_pool: pool exists")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return tx.PutPool(ctx, p)
	})
	if err != nil {
		return nil, storeErr("allocation.register_pool", err)
	}

	e.events.Publish(ctx, events.Event{
		Name:      events.PoolRegistered,
		Actor:     caller,
		Data:      map[string]any{"pool_id": id, "risk_level": string(risk), "apy_bps": apyBps, "max_capacity": maxCapacity},
		Timestamp: now,
	})
	return p, nil
}

// SetPoolStatus activates or deactivates a pool. Inactive pools keep their
// liquidity but receive no new allocations.
func (e *Engine) SetPoolStatus(ctx context.Context, caller string, id uint32, active bool) (*models.Pool, error) {
	return e.updatePool(ctx, caller, id, func(p *models.Pool) error {
		p.Active = active
		return nil
	})
}

// SetPoolCapacity changes a pool's capacity. It may not drop below the
// liquidity already placed in the pool.
func (e *Engine) SetPoolCapacity(ctx context.Context, caller string, id uint32, capacity int64) (*models.Pool, error) {
	return e.updatePool(ctx, caller, id, func(p *models.Pool) error {
		if capacity <= 0 || capacity < p.TotalLiquidity {
			return errs.With(errs.ErrInvalidCapacity, "allocation.set_pool_capacity")
		}
		p.MaxCapacity = capacity
		return nil
	})
}

func (e *Engine) updatePool(ctx context.Context, caller string, id uint32, apply func(*models.Pool) error) (*models.Pool, error) {
	p, err := func() (*models.Pool, error) {
		if err := e.admin(caller, FnUpdatePool); err != nil {
			return nil, err
		}
		ctx, release, err := e.guard.Enter(ctx)
		if err != nil {
			return nil, err
		}
		defer release()

		var out *models.Pool
		err = e.store.WithTx(ctx, func(tx repository.Tx) error {
			p, err := tx.GetPool(ctx, id)
			if err != nil {
				return err
			}
			if err := apply(p); err != nil {
				return err
			}
			p.UpdatedAt = e.now()
			out = p
			return tx.PutPool(ctx, p)
		})
		if err != nil {
			return nil, storeErr("allocation.update_pool", err)
		}
		return out, nil
	}()
	if err != nil {
		return nil, e.fail(ctx, FnUpdatePool, caller, err)
	}

	e.events.Publish(ctx, events.Event{
		Name:      events.PoolUpdated,
		Actor:     caller,
		Data:      map[string]any{"pool_id": id, "active": p.Active, "max_capacity": p.MaxCapacity},
		Timestamp: p.UpdatedAt,
	})
	return p, nil
}

// GetPool retrieves a pool by id
func (e *Engine) GetPool(ctx context.Context, id uint32) (*models.Pool, error) {
	p, err := e.store.GetPool(ctx, id)
	if err != nil {
		return nil, storeErr("allocation.get_pool", err)
	}
	return p, nil
}

// GetAllPools returns every pool ordered by id
func (e *Engine) GetAllPools(ctx context.Context) ([]models.Pool, error) {
	pools, err := e.store.ListPools(ctx)
	if err != nil {
		return nil, storeErr("allocation.get_all_pools", err)
	}
	return pools, nil
}

// GetAllocation returns the current allocation record of a commitment
func (e *Engine) GetAllocation(ctx context.Context, commitmentID string) (*models.Allocation, error) {
	a, err := e.store.GetAllocation(ctx, commitmentID)
	if err != nil {
		return nil, storeErr("allocation.get_allocation", err)
	}
	return a, nil
}

func (e *Engine) now() int64 {
	return e.clock.Now().Unix()
}

func (e *Engine) fail(ctx context.Context, op, actor string, err error) error {
	return e.events.Fail(ctx, e.now(), "allocation."+op, actor, "", err)
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return errs.With(errs.ErrNotFound, op)
	}
	var typed *errs.Error
	if errors.As(err, &typed) {
		return err
	}
	return errs.Wrap(errs.ErrStorage, op, err)
}
