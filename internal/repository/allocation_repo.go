package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/epeers/commitvault/internal/models"
	"github.com/jackc/pgx/v5"
)

func scanPool(row pgx.Row) (*models.Pool, error) {
	p := &models.Pool{}
	var id, apy int32
	err := row.Scan(&id, &p.RiskLevel, &apy, &p.MaxCapacity, &p.TotalLiquidity, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = uint32(id)
	p.APYBps = uint32(apy)
	return p, nil
}

// GetPool retrieves a pool by ID
func (q *pgQueries) GetPool(ctx context.Context, id uint32) (*models.Pool, error) {
	p, err := scanPool(q.db.QueryRow(ctx, `
		SELECT id, risk_level, apy_bps, max_capacity, total_liquidity, active, created_at, updated_at
		FROM pool WHERE id = $1
	`, int32(id)))
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}
	return p, nil
}

// ListPools returns every registered pool ordered by ID
func (q *pgQueries) ListPools(ctx context.Context) ([]models.Pool, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, risk_level, apy_bps, max_capacity, total_liquidity, active, created_at, updated_at
		FROM pool ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}
	defer rows.Close()

	out := []models.Pool{}
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pool: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// PutPool inserts or replaces a pool
func (q *pgQueries) PutPool(ctx context.Context, p *models.Pool) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO pool (id, risk_level, apy_bps, max_capacity, total_liquidity, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			risk_level = EXCLUDED.risk_level,
			apy_bps = EXCLUDED.apy_bps,
			max_capacity = EXCLUDED.max_capacity,
			total_liquidity = EXCLUDED.total_liquidity,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`, int32(p.ID), p.RiskLevel, int32(p.APYBps), p.MaxCapacity, p.TotalLiquidity, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put pool: %w", err)
	}
	return nil
}

// GetAllocation retrieves the allocation record of a commitment
func (q *pgQueries) GetAllocation(ctx context.Context, commitmentID string) (*models.Allocation, error) {
	a := &models.Allocation{}
	var entries []byte
	err := q.db.QueryRow(ctx, `
		SELECT commitment_id, owner, strategy, requested, total_allocated, entries, updated_at
		FROM allocation WHERE commitment_id = $1
	`, commitmentID).Scan(&a.CommitmentID, &a.Owner, &a.Strategy, &a.Requested, &a.TotalAllocated, &entries, &a.UpdatedAt)
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get allocation: %w", err)
	}
	if err := json.Unmarshal(entries, &a.Entries); err != nil {
		return nil, fmt.Errorf("failed to decode allocation entries: %w", err)
	}
	return a, nil
}

// PutAllocation inserts or overwrites the allocation record of a commitment
func (q *pgQueries) PutAllocation(ctx context.Context, a *models.Allocation) error {
	entries, err := json.Marshal(a.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode allocation entries: %w", err)
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO allocation (commitment_id, owner, strategy, requested, total_allocated, entries, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (commitment_id) DO UPDATE SET
			strategy = EXCLUDED.strategy,
			requested = EXCLUDED.requested,
			total_allocated = EXCLUDED.total_allocated,
			entries = EXCLUDED.entries,
			updated_at = EXCLUDED.updated_at
	`, a.CommitmentID, a.Owner, a.Strategy, a.Requested, a.TotalAllocated, entries, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put allocation: %w", err)
	}
	return nil
}
