package custody

import (
	"context"
	"errors"
	"testing"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/models"
)

func TestVaultLockAndRelease(t *testing.T) {
	ctx := context.Background()
	v := NewVault()

	if err := v.Deposit(ctx, "alice", "XLM", 1000); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := v.Lock(ctx, "alice", "XLM", 1500); !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Errorf("expected insufficient balance, got %v", err)
	}
	if err := v.Lock(ctx, "alice", "XLM", 800); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if v.Balance("alice", "XLM") != 200 || v.Escrowed("XLM") != 800 {
		t.Errorf("balance=%d escrow=%d", v.Balance("alice", "XLM"), v.Escrowed("XLM"))
	}

	if err := v.Release(ctx, "alice", "XLM", 900); !errors.Is(err, errs.ErrTransferFailed) {
		t.Errorf("releasing more than escrow should fail, got %v", err)
	}
	if err := v.Release(ctx, "alice", "XLM", 760); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if v.Balance("alice", "XLM") != 960 || v.Escrowed("XLM") != 40 {
		t.Errorf("balance=%d escrow=%d", v.Balance("alice", "XLM"), v.Escrowed("XLM"))
	}
	if err := v.Release(ctx, "bob", "XLM", 0); err != nil {
		t.Errorf("zero release should be a no-op, got %v", err)
	}
}

func TestRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	id, err := r.Mint(ctx, "alice", "c1", models.CommitmentRules{DurationDays: 1}, 100, "XLM")
	if err != nil || id != 1 {
		t.Fatalf("mint = %d, %v", id, err)
	}
	if active, _ := r.IsActive(ctx, id); !active {
		t.Errorf("new token should be active")
	}
	if err := r.Transfer(ctx, "bob", "carol", id); !errors.Is(err, errs.ErrNotOwner) {
		t.Errorf("expected not owner, got %v", err)
	}
	if err := r.Transfer(ctx, "alice", "bob", id); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if err := r.Settle(ctx, id); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if err := r.Settle(ctx, id); !errors.Is(err, errs.ErrAlreadyProcessed) {
		t.Errorf("second settle should fail, got %v", err)
	}
	tok, _ := r.Token(id)
	if tok.Owner != "bob" || tok.Active {
		t.Errorf("unexpected token %+v", tok)
	}
	if _, err := r.IsActive(ctx, 99); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
