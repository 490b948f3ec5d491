package repository

import (
	"context"
	"fmt"

	"github.com/epeers/commitvault/internal/models"
	"github.com/jackc/pgx/v5"
)

const commitmentColumns = `id, owner, asset, registry_token_id, duration_days, max_loss_percent,
	commitment_type, early_exit_penalty_percent, min_fee_threshold,
	principal, current_value, created_at, expires_at, status`

func scanCommitment(row pgx.Row) (*models.Commitment, error) {
	c := &models.Commitment{}
	var tokenID int64
	var duration, maxLoss, penalty int32
	err := row.Scan(
		&c.ID, &c.Owner, &c.Asset, &tokenID, &duration, &maxLoss,
		&c.Rules.CommitmentType, &penalty, &c.Rules.MinFeeThreshold,
		&c.Principal, &c.CurrentValue, &c.CreatedAt, &c.ExpiresAt, &c.Status,
	)
	if err != nil {
		return nil, err
	}
	c.RegistryTokenID = uint64(tokenID)
	c.Rules.DurationDays = uint32(duration)
	c.Rules.MaxLossPercent = uint32(maxLoss)
	c.Rules.EarlyExitPenaltyPercent = uint32(penalty)
	return c, nil
}

func (q *pgQueries) queryCommitments(ctx context.Context, query string, args ...any) ([]models.Commitment, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commitments: %w", err)
	}
	defer rows.Close()

	out := []models.Commitment{}
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commitment: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetCommitment retrieves a commitment by ID
func (q *pgQueries) GetCommitment(ctx context.Context, id string) (*models.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitment WHERE id = $1`
	c, err := scanCommitment(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get commitment: %w", err)
	}
	return c, nil
}

// ListCommitmentsByOwner returns an owner's commitments in creation order
func (q *pgQueries) ListCommitmentsByOwner(ctx context.Context, owner string) ([]models.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitment WHERE owner = $1 ORDER BY seq`
	return q.queryCommitments(ctx, query, owner)
}

// ListActiveCommitments returns every active commitment in creation order
func (q *pgQueries) ListActiveCommitments(ctx context.Context) ([]models.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitment WHERE status = $1 ORDER BY seq`
	return q.queryCommitments(ctx, query, models.StatusActive)
}

// PutCommitment inserts or replaces a commitment
func (q *pgQueries) PutCommitment(ctx context.Context, c *models.Commitment) error {
	query := `
		INSERT INTO commitment (` + commitmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			current_value = EXCLUDED.current_value,
			status = EXCLUDED.status
	`
	_, err := q.db.Exec(ctx, query,
		c.ID, c.Owner, c.Asset, int64(c.RegistryTokenID),
		int32(c.Rules.DurationDays), int32(c.Rules.MaxLossPercent),
		c.Rules.CommitmentType, int32(c.Rules.EarlyExitPenaltyPercent), c.Rules.MinFeeThreshold,
		c.Principal, c.CurrentValue, c.CreatedAt, c.ExpiresAt, c.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to put commitment: %w", err)
	}
	return nil
}

// GetLedgerStats returns the ledger counters, zero when never written
func (q *pgQueries) GetLedgerStats(ctx context.Context) (models.LedgerStats, error) {
	var stats models.LedgerStats
	var total int64
	err := q.db.QueryRow(ctx,
		`SELECT total_commitments, total_value_locked FROM ledger_stats WHERE id = 1`,
	).Scan(&total, &stats.TotalValueLocked)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return models.LedgerStats{}, nil
		}
		return stats, fmt.Errorf("failed to get ledger stats: %w", err)
	}
	stats.TotalCommitments = uint64(total)
	return stats, nil
}

// PutLedgerStats writes the ledger counters
func (q *pgQueries) PutLedgerStats(ctx context.Context, s models.LedgerStats) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO ledger_stats (id, total_commitments, total_value_locked)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			total_commitments = EXCLUDED.total_commitments,
			total_value_locked = EXCLUDED.total_value_locked
	`, int64(s.TotalCommitments), s.TotalValueLocked)
	if err != nil {
		return fmt.Errorf("failed to put ledger stats: %w", err)
	}
	return nil
}
