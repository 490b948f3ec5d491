package compliance

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
	FnAttest         = "attest"
	FnBatchAttest    = "batch_attest"
	FnRecordFees     = "record_fees"
	FnRecordDrawdown = "record_drawdown"
)

// MaxBatchSize bounds BatchAttest.
const MaxBatchSize = 50

// Engine records attestations and maintains per-commitment health state.
// It reads commitments only through ledger.Reader.
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
		guard:   guard.NewReentrancy("compliance"),
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

// AddRecorder authorises who to submit attestations
func (e *Engine) AddRecorder(ctx context.Context, caller, who string) error {
	if who == "" {
		return e.fail(ctx, "add_recorder", caller, "", errs.With(errs.ErrEmptyField, "compliance.add_recorder"))
	}
	if err := e.access.Grant(caller, who, guard.CapRecorder); err != nil {
		return e.fail(ctx, "add_recorder", caller, "", err)
	}
	e.events.Publish(ctx, events.Event{
		Name:      events.RecorderChanged,
		Actor:     caller,
		Data:      map[string]any{"recorder": who, "authorized": true},
		Timestamp: e.now(),
	})
	return nil
}

// RemoveRecorder revokes who's recorder capability
func (e *Engine) RemoveRecorder(ctx context.Context, caller, who string) error {
	if err := e.access.Revoke(caller, who, guard.CapRecorder); err != nil {
		return e.fail(ctx, "remove_recorder", caller, "", err)
	}
	e.events.Publish(ctx, events.Event{
		Name:      events.RecorderChanged,
		Actor:     caller,
		Data:      map[string]any{"recorder": who, "authorized": false},
		Timestamp: e.now(),
	})
	return nil
}

// IsRecorder reports whether who may submit attestations
func (e *Engine) IsRecorder(who string) bool {
	return e.access.Has(who, guard.CapRecorder)
}

// admit runs the checks shared by every recording entry point
func (e *Engine) admit(caller, fn string) error {
	if err := e.access.RequireInitialized(); err != nil {
		return err
	}
	if caller == "" {
		return errs.With(errs.ErrUnauthorized, "compliance."+fn)
	}
	if err := e.access.RequireAdminOr(caller, guard.CapRecorder); err != nil {
		return err
	}
	return e.limiter.Check(caller, fn)
}

func (e *Engine) commitment(ctx context.Context, id string) (*models.Commitment, error) {
	c, err := e.ledger.GetCommitment(ctx, id)
	if err != nil {
		var typed *errs.Error
		if errors.As(err, &typed) {
			return nil, err
		}
		return nil, errs.Wrap(errs.ErrCrossComponent, "compliance.get_commitment", err)
	}
	return c, nil
}

func (e *Engine) now() int64 {
	return e.clock.Now().Unix()
}

func (e *Engine) fail(ctx context.Context, op, actor, id string, err error) error {
	return e.events.Fail(ctx, e.now(), "compliance."+op, actor, id, err)
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
