package guard

import (
	"context"
	"sync"

	"github.com/epeers/commitvault/internal/errs"
)

type reentrancyKey struct{ g *Reentrancy }

// Reentrancy serialises the mutating entry points of one component.
//
// Enter marks the returned context as holding the guard. A synchronous
// callback that re-enters the component with that context fails with
// ErrReentrancy instead of deadlocking, while unrelated callers block
// until the holder releases. The release func is idempotent and must be
// deferred by the caller:
//
//	ctx, release, err := g.Enter(ctx)
//	if err != nil {
//		return err
//	}
//	defer release()
type Reentrancy struct {
	name string
	mu   sync.Mutex
}

// NewReentrancy returns a guard labelled for error context.
func NewReentrancy(name string) *Reentrancy {
	return &Reentrancy{name: name}
}

// Enter acquires the guard for one call.
func (g *Reentrancy) Enter(ctx context.Context) (context.Context, func(), error) {
	if g.Held(ctx) {
		return ctx, func() {}, errs.With(errs.ErrReentrancy, g.name)
	}
	g.mu.Lock()
	var once sync.Once
	release := func() { once.Do(g.mu.Unlock) }
	return context.WithValue(ctx, reentrancyKey{g}, struct{}{}), release, nil
}

// Held reports whether ctx was derived from a context that holds this guard.
func (g *Reentrancy) Held(ctx context.Context) bool {
	return ctx.Value(reentrancyKey{g}) != nil
}

// Busy reports whether any caller currently holds the guard.
func (g *Reentrancy) Busy() bool {
	if g.mu.TryLock() {
		g.mu.Unlock()
		return false
	}
	return true
}
