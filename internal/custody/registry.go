package custody

import (
	"context"
	"sync"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/models"
)

// Token is an ownership record minted for a commitment
type Token struct {
	ID           uint64                 `json:"id"`
	Owner        string                 `json:"owner"`
	CommitmentID string                 `json:"commitment_id"`
	Asset        string                 `json:"asset"`
	Amount       int64                  `json:"amount"`
	Rules        models.CommitmentRules `json:"rules"`
	Active       bool                   `json:"active"`
}

// Registry is an in-process ownership registry
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	tokens map[uint64]*Token
}

// NewRegistry creates an empty Registry. Token IDs start at 1.
func NewRegistry() *Registry {
	return &Registry{nextID: 1, tokens: make(map[uint64]*Token)}
}

// Mint records a new active token for a commitment
func (r *Registry) Mint(_ context.Context, owner, commitmentID string, rules models.CommitmentRules, amount int64, asset string) (uint64, error) {
	if owner == "" || commitmentID == "" {
		return 0, errs.With(errs.ErrEmptyField, "registry.mint")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.tokens[id] = &Token{
		ID:           id,
		Owner:        owner,
		CommitmentID: commitmentID,
		Asset:        asset,
		Amount:       amount,
		Rules:        rules,
		Active:       true,
	}
	return id, nil
}

// Settle marks a token inactive
func (r *Registry) Settle(_ context.Context, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenID]
	if !ok {
		return errs.With(errs.ErrNotFound, "registry.settle")
	}
	if !t.Active {
		return errs.With(errs.ErrAlreadyProcessed, "registry.settle")
	}
	t.Active = false
	return nil
}

// Transfer changes a token's owner
func (r *Registry) Transfer(_ context.Context, from, to string, tokenID uint64) error {
	if to == "" {
		return errs.With(errs.ErrEmptyField, "registry.transfer")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenID]
	if !ok {
		return errs.With(errs.ErrNotFound, "registry.transfer")
	}
	if t.Owner != from {
		return errs.With(errs.ErrNotOwner, "registry.transfer")
	}
	t.Owner = to
	return nil
}

// IsActive reports whether a token is still active
func (r *Registry) IsActive(_ context.Context, tokenID uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenID]
	if !ok {
		return false, errs.With(errs.ErrNotFound, "registry.is_active")
	}
	return t.Active, nil
}

// Token returns a copy of a token
func (r *Registry) Token(tokenID uint64) (Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenID]
	if !ok {
		return Token{}, false
	}
	return *t, true
}
