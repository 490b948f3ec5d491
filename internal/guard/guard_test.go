package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/util"
)

func TestAccessControlInitializeOnce(t *testing.T) {
	ac := NewAccessControl()
	if err := ac.RequireAdmin("admin"); !errors.Is(err, errs.ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := ac.Initialize("admin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ac.Initialize("mallory"); !errors.Is(err, errs.ErrAlreadyInitialized) {
		t.Errorf("expected already initialized, got %v", err)
	}
	if admin, _ := ac.Admin(); admin != "admin" {
		t.Errorf("re-initialisation must not replace the admin, got %q", admin)
	}
}

func TestAccessControlCapabilities(t *testing.T) {
	ac := NewAccessControl()
	_ = ac.Initialize("admin")

	if err := ac.Grant("mallory", "bob", CapRecorder); !errors.Is(err, errs.ErrNotAdmin) {
		t.Errorf("non-admin grant should fail NotAdmin, got %v", err)
	}
	if err := ac.Grant("admin", "bob", CapRecorder|CapValueUpdater); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if !ac.Has("bob", CapRecorder) || !ac.Has("bob", CapValueUpdater) {
		t.Errorf("bob should hold both capabilities")
	}
	if err := ac.RequireAdminOr("carol", CapRecorder); !errors.Is(err, errs.ErrUnauthorized) {
		t.Errorf("carol should be unauthorized, got %v", err)
	}
	if err := ac.RequireAdminOr("admin", CapRecorder); err != nil {
		t.Errorf("admin holds every capability: %v", err)
	}

	if err := ac.Revoke("admin", "bob", CapRecorder); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if ac.Has("bob", CapRecorder) {
		t.Errorf("recorder should be revoked")
	}
	if got := ac.Holders(CapValueUpdater); len(got) != 1 || got[0] != "bob" {
		t.Errorf("unexpected holders %v", got)
	}
}

func TestRequireOwnerOrAdmin(t *testing.T) {
	ac := NewAccessControl()
	_ = ac.Initialize("admin")
	if err := ac.RequireOwnerOrAdmin("alice", "alice"); err != nil {
		t.Errorf("owner should pass: %v", err)
	}
	if err := ac.RequireOwnerOrAdmin("admin", "alice"); err != nil {
		t.Errorf("admin should pass: %v", err)
	}
	if err := ac.RequireOwnerOrAdmin("bob", "alice"); !errors.Is(err, errs.ErrNotOwner) {
		t.Errorf("expected NotOwner, got %v", err)
	}
	if err := ac.RequireOwnerOrAdmin("", "alice"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Errorf("expected Unauthorized for anonymous caller, got %v", err)
	}
}

func TestReentrancyDetectsNestedEntry(t *testing.T) {
	g := NewReentrancy("test")
	ctx, release, err := g.Enter(context.Background())
	if err != nil {
		t.Fatalf("first enter failed: %v", err)
	}
	if !g.Busy() {
		t.Errorf("guard should be busy while held")
	}
	if _, _, err := g.Enter(ctx); !errors.Is(err, errs.ErrReentrancy) {
		t.Errorf("nested enter should fail ReentrancyDetected, got %v", err)
	}
	release()
	release()
	if g.Busy() {
		t.Errorf("guard should be clear after release")
	}
}

func TestReentrancyReleasedOnErrorPath(t *testing.T) {
	g := NewReentrancy("test")
	failing := func(ctx context.Context) error {
		_, release, err := g.Enter(ctx)
		if err != nil {
			return err
		}
		defer release()
		return errs.ErrInvalidAmount
	}
	if err := failing(context.Background()); !errors.Is(err, errs.ErrInvalidAmount) {
		t.Fatalf("unexpected error %v", err)
	}
	if g.Busy() {
		t.Errorf("guard must be released on the error path")
	}
}

func TestReentrancySerialisesIndependentCallers(t *testing.T) {
	g := NewReentrancy("test")
	var mu sync.Mutex
	inside, maxInside := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := g.Enter(context.Background())
			if err != nil {
				t.Errorf("independent caller rejected: %v", err)
				return
			}
			defer release()
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Errorf("expected serialised execution, saw %d concurrent holders", maxInside)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	clock := util.NewManualClock(100)
	rl := NewRateLimiter(clock)
	if err := rl.SetLimit("attest", 0, 1); !errors.Is(err, errs.ErrOutOfRange) {
		t.Errorf("zero window must be rejected, got %v", err)
	}
	if err := rl.SetLimit("attest", 60*time.Second, 2); err != nil {
		t.Fatal(err)
	}

	if err := rl.Check("bob", "attest"); err != nil {
		t.Fatal(err)
	}
	if err := rl.Check("bob", "attest"); err != nil {
		t.Fatal(err)
	}
	if err := rl.Check("bob", "attest"); !errors.Is(err, errs.ErrRateLimited) {
		t.Errorf("third call should be limited, got %v", err)
	}
	if err := rl.Check("carol", "attest"); err != nil {
		t.Errorf("limits are per caller: %v", err)
	}
	if err := rl.Check("bob", "other"); err != nil {
		t.Errorf("unconfigured functions are unrestricted: %v", err)
	}

	clock.Set(160)
	if err := rl.Check("bob", "attest"); err != nil {
		t.Errorf("window should reset at start+window: %v", err)
	}
}

func TestRateLimiterExempt(t *testing.T) {
	rl := NewRateLimiter(util.NewManualClock(0))
	_ = rl.SetLimit("allocate", time.Minute, 1)
	rl.SetExempt("ops", true)
	for i := 0; i < 3; i++ {
		if err := rl.Check("ops", "allocate"); err != nil {
			t.Fatalf("exempt caller limited: %v", err)
		}
	}
	rl.SetExempt("ops", false)
	if err := rl.Check("ops", "allocate"); err != nil {
		t.Fatalf("first call after exemption removal should pass: %v", err)
	}
	if err := rl.Check("ops", "allocate"); !errors.Is(err, errs.ErrRateLimited) {
		t.Errorf("expected limit, got %v", err)
	}
}
