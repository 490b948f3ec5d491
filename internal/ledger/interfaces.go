package ledger

import (
	"context"

	"github.com/epeers/commitvault/internal/models"
)

// Reader is the read-only view of the ledger handed to other components.
// Holders keep only commitment ids and query through this interface.
type Reader interface {
	GetCommitment(ctx context.Context, id string) (*models.Commitment, error)
	CheckViolations(ctx context.Context, id string) (bool, error)
}

// AssetVault moves custody of committed assets.
type AssetVault interface {
	Lock(ctx context.Context, owner, asset string, amount int64) error
	Release(ctx context.Context, to, asset string, amount int64) error
}

// OwnershipRegistry binds a transferable token to each commitment.
type OwnershipRegistry interface {
	Mint(ctx context.Context, owner, commitmentID string, rules models.CommitmentRules, amount int64, asset string) (uint64, error)
	Settle(ctx context.Context, tokenID uint64) error
	Transfer(ctx context.Context, from, to string, tokenID uint64) error
	IsActive(ctx context.Context, tokenID uint64) (bool, error)
}
