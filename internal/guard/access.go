package guard

import (
	"sort"
	"sync"

	"github.com/epeers/commitvault/internal/errs"
)

// Capability is a bit flag granted to a principal.
type Capability uint32

const (
	// CapRecorder may submit attestations and fee/drawdown records.
	CapRecorder Capability = 1 << iota
	// CapValueUpdater may push valuations into the ledger.
	CapValueUpdater
	// CapPoolManager may register and tune allocation pools.
	CapPoolManager
)

var capabilityNames = map[Capability]string{
	CapRecorder:     "recorder",
	CapValueUpdater: "value_updater",
	CapPoolManager:  "pool_manager",
}

func (c Capability) String() string {
	if n, ok := capabilityNames[c]; ok {
		return n
	}
	return "unknown"
}

// ParseCapability maps a configuration name to its flag.
func ParseCapability(name string) (Capability, bool) {
	for c, n := range capabilityNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// AccessControl is a per-component principal -> capability store with a single admin.
// It is initialised once; a second Initialize fails.
type AccessControl struct {
	mu          sync.RWMutex
	initialized bool
	admin       string
	grants      map[string]Capability
}

// NewAccessControl returns an uninitialised store.
func NewAccessControl() *AccessControl {
	return &AccessControl{grants: make(map[string]Capability)}
}

// Initialize sets the admin. It may only succeed once.
func (a *AccessControl) Initialize(admin string) error {
	if admin == "" {
		return errs.With(errs.ErrEmptyField, "access.initialize: admin")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return errs.With(errs.ErrAlreadyInitialized, "access.initialize")
	}
	a.admin = admin
	a.initialized = true
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (a *AccessControl) Initialized() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.initialized
}

// RequireInitialized fails with NotInitialized until Initialize succeeds.
func (a *AccessControl) RequireInitialized() error {
	if !a.Initialized() {
		return errs.With(errs.ErrNotInitialized, "access")
	}
	return nil
}

// Admin returns the admin principal.
func (a *AccessControl) Admin() (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.initialized {
		return "", errs.With(errs.ErrNotInitialized, "access.admin")
	}
	return a.admin, nil
}

// IsAdmin reports whether who is the admin.
func (a *AccessControl) IsAdmin(who string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.initialized && who != "" && who == a.admin
}

// Has reports whether who holds capability c. The admin holds every capability.
func (a *AccessControl) Has(who string, c Capability) bool {
	if who == "" {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.initialized {
		return false
	}
	if who == a.admin {
		return true
	}
	return a.grants[who]&c != 0
}

// RequireAdmin admits only the admin.
func (a *AccessControl) RequireAdmin(caller string) error {
	if err := a.RequireInitialized(); err != nil {
		return err
	}
	if caller == "" {
		return errs.With(errs.ErrUnauthorized, "access.require_admin")
	}
	if !a.IsAdmin(caller) {
		return errs.With(errs.ErrNotAdmin, "access.require_admin")
	}
	return nil
}

// RequireAdminOr admits the admin or any holder of c.
func (a *AccessControl) RequireAdminOr(caller string, c Capability) error {
	if err := a.RequireInitialized(); err != nil {
		return err
	}
	if !a.Has(caller, c) {
		return errs.With(errs.ErrUnauthorized, "access.require_"+c.String())
	}
	return nil
}

// RequireOwner admits only owner.
func (a *AccessControl) RequireOwner(caller, owner string) error {
	if caller == "" {
		return errs.With(errs.ErrUnauthorized, "access.require_owner")
	}
	if caller != owner {
		return errs.With(errs.ErrNotOwner, "access.require_owner")
	}
	return nil
}

// RequireOwnerOrAdmin admits the owner or the admin.
func (a *AccessControl) RequireOwnerOrAdmin(caller, owner string) error {
	if caller != "" && caller == owner {
		return nil
	}
	if a.IsAdmin(caller) {
		return nil
	}
	if caller == "" {
		return errs.With(errs.ErrUnauthorized, "access.require_owner_or_admin")
	}
	return errs.With(errs.ErrNotOwner, "access.require_owner_or_admin")
}

// Grant gives who capability c. Admin only.
func (a *AccessControl) Grant(caller, who string, c Capability) error {
	if err := a.RequireAdmin(caller); err != nil {
		return err
	}
	if who == "" {
		return errs.With(errs.ErrEmptyField, "access.grant")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.grants[who] |= c
	return nil
}

// Revoke removes capability c from who. Admin only.
func (a *AccessControl) Revoke(caller, who string, c Capability) error {
	if err := a.RequireAdmin(caller); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	remaining := a.grants[who] &^ c
	if remaining == 0 {
		delete(a.grants, who)
	} else {
		a.grants[who] = remaining
	}
	return nil
}

// TransferAdmin hands the admin role to newAdmin. Admin only.
func (a *AccessControl) TransferAdmin(caller, newAdmin string) error {
	if err := a.RequireAdmin(caller); err != nil {
		return err
	}
	if newAdmin == "" {
		return errs.With(errs.ErrEmptyField, "access.transfer_admin")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.admin = newAdmin
	return nil
}

// Holders lists the principals granted c, sorted. The admin is not listed.
func (a *AccessControl) Holders(c Capability) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []string
	for who, caps := range a.grants {
		if caps&c != 0 {
			out = append(out, who)
		}
	}
	sort.Strings(out)
	return out
}
