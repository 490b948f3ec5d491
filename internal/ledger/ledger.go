package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/guard"
	"github.com/epeers/commitvault/internal/repository"
	"github.com/epeers/commitvault/internal/util"
	"github.com/google/uuid"
)

// Rate-limited function names.
const (
	FnCreate      = "create_commitment"
	FnUpdateValue = "update_value"
	FnSettle      = "settle"
	FnEarlyExit   = "early_exit"
)

// Ledger owns commitments and their lifecycle
type Ledger struct {
	store    repository.Store
	vault    AssetVault
	registry OwnershipRegistry
	access   *guard.AccessControl
	limiter  *guard.RateLimiter
	guard    *guard.Reentrancy
	clock    util.Clock
	events   *events.Publisher
	newID    func() string

	mu        sync.RWMutex
	emergency bool
}

// New creates a Ledger. It must be initialised before use.
func New(store repository.Store, vault AssetVault, registry OwnershipRegistry, limiter *guard.RateLimiter, clock util.Clock, pub *events.Publisher) *Ledger {
	if clock == nil {
		clock = util.SystemClock{}
	}
	if limiter == nil {
		limiter = guard.NewRateLimiter(clock)
	}
	return &Ledger{
		store:    store,
		vault:    vault,
		registry: registry,
		access:   guard.NewAccessControl(),
		limiter:  limiter,
		guard:    guard.NewReentrancy("ledger"),
		clock:    clock,
		events:   pub,
		newID:    uuid.NewString,
	}
}

// Initialize sets the ledger admin. It can only be called once.
func (l *Ledger) Initialize(admin string) error {
	return l.access.Initialize(admin)
}

// Access exposes the ledger's capability store
func (l *Ledger) Access() *guard.AccessControl {
	return l.access
}

// SetEmergencyMode toggles the switch that blocks new commitments
func (l *Ledger) SetEmergencyMode(ctx context.Context, caller string, on bool) error {
	if err := l.access.RequireAdmin(caller); err != nil {
		return l.fail(ctx, "set_emergency_mode", caller, "", err)
	}
	l.mu.Lock()
	l.emergency = on
	l.mu.Unlock()

	l.events.Publish(ctx, events.Event{
		Name:      events.EmergencyModeChanged,
		Actor:     caller,
		Data:      map[string]any{"enabled": on},
		Timestamp: l.now(),
	})
	return nil
}

// EmergencyMode reports whether new commitments are blocked
func (l *Ledger) EmergencyMode() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.emergency
}

func (l *Ledger) now() int64 {
	return l.clock.Now().Unix()
}

func (l *Ledger) fail(ctx context.Context, op, actor, id string, err error) error {
	return l.events.Fail(ctx, l.now(), "ledger."+op, actor, id, err)
}

// storeErr maps repository errors into the errs taxonomy
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return errs.With(errs.ErrNotFound, op)
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.Wrap(errs.ErrStorage, op, err)
}
