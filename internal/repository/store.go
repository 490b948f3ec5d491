package repository

import (
	"context"
	"errors"

	"github.com/epeers/commitvault/internal/models"
)

var ErrNotFound = errors.New("record not found")

// Reader exposes the read side of the store.
type Reader interface {
	GetCommitment(ctx context.Context, id string) (*models.Commitment, error)
	ListCommitmentsByOwner(ctx context.Context, owner string) ([]models.Commitment, error)
	ListActiveCommitments(ctx context.Context) ([]models.Commitment, error)
	GetLedgerStats(ctx context.Context) (models.LedgerStats, error)

	ListAttestations(ctx context.Context, commitmentID string) ([]models.Attestation, error)
	CountAttestations(ctx context.Context, commitmentID string) (uint64, error)
	GetHealth(ctx context.Context, commitmentID string) (*models.HealthState, error)
	GetComplianceStats(ctx context.Context) (models.ComplianceStats, error)
	GetRecorderCount(ctx context.Context, who string) (uint64, error)

	GetPool(ctx context.Context, id uint32) (*models.Pool, error)
	ListPools(ctx context.Context) ([]models.Pool, error)
	GetAllocation(ctx context.Context, commitmentID string) (*models.Allocation, error)
}

// Writer holds the mutations. It is only reachable inside WithTx.
type Writer interface {
	PutCommitment(ctx context.Context, c *models.Commitment) error
	PutLedgerStats(ctx context.Context, s models.LedgerStats) error

	// AppendAttestation assigns a.Sequence and appends a to the commitment's log.
	AppendAttestation(ctx context.Context, a *models.Attestation) error
	PutHealth(ctx context.Context, h *models.HealthState) error
	PutComplianceStats(ctx context.Context, s models.ComplianceStats) error
	IncrementRecorder(ctx context.Context, who string, n uint64) error

	PutPool(ctx context.Context, p *models.Pool) error
	PutAllocation(ctx context.Context, a *models.Allocation) error
}

// Tx is a unit of work. Reads inside a Tx observe its own writes.
type Tx interface {
	Reader
	Writer
}

// Store is the persistence layer shared by the ledger, compliance and
// allocation engines. WithTx commits every write made by fn, or none of
// them when fn returns an error.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close()
}
