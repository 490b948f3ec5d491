package custody

import (
	"context"
	"sync"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/safemath"
	log "github.com/sirupsen/logrus"
)

type balanceKey struct {
	owner string
	asset string
}

// Vault is an in-process asset vault. Owners deposit free balance, the
// ledger locks it into escrow and releases escrow back to a recipient.
type Vault struct {
	mu       sync.Mutex
	balances map[balanceKey]int64
	escrow   map[string]int64
}

// NewVault creates an empty Vault
func NewVault() *Vault {
	return &Vault{
		balances: make(map[balanceKey]int64),
		escrow:   make(map[string]int64),
	}
}

// Deposit credits free balance to owner
func (v *Vault) Deposit(_ context.Context, owner, asset string, amount int64) error {
	if amount <= 0 {
		return errs.With(errs.ErrInvalidAmount, "vault.deposit")
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	k := balanceKey{owner, asset}
	next, err := safemath.Add(v.balances[k], amount)
	if err != nil {
		return err
	}
	v.balances[k] = next
	return nil
}

// Balance returns owner's free balance of asset
func (v *Vault) Balance(owner, asset string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[balanceKey{owner, asset}]
}

// Escrowed returns the total amount of asset currently locked
func (v *Vault) Escrowed(asset string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.escrow[asset]
}

// Lock moves amount from owner's free balance into escrow
func (v *Vault) Lock(_ context.Context, owner, asset string, amount int64) error {
	if amount <= 0 {
		return errs.With(errs.ErrInvalidAmount, "vault.lock")
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	k := balanceKey{owner, asset}
	if v.balances[k] < amount {
		return errs.With(errs.ErrInsufficientBalance, "vault.lock")
	}
	locked, err := safemath.Add(v.escrow[asset], amount)
	if err != nil {
		return err
	}
	v.balances[k] -= amount
	v.escrow[asset] = locked
	log.Debugf("vault: locked %d %s for %s", amount, asset, owner)
	return nil
}

// Release moves amount out of escrow into to's free balance. A zero
// release is a no-op.
func (v *Vault) Release(_ context.Context, to, asset string, amount int64) error {
	if amount < 0 {
		return errs.With(errs.ErrInvalidAmount, "vault.release")
	}
	if amount == 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.escrow[asset] < amount {
		return errs.With(errs.ErrTransferFailed, "vault.release: escrow short")
	}
	k := balanceKey{to, asset}
	credited, err := safemath.Add(v.balances[k], amount)
	if err != nil {
		return err
	}
	v.escrow[asset] -= amount
	v.balances[k] = credited
	log.Debugf("vault: released %d %s to %s", amount, asset, to)
	return nil
}
