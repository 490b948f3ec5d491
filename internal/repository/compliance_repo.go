package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/epeers/commitvault/internal/models"
)

// ListAttestations returns a commitment's attestation log in insertion order
func (q *pgQueries) ListAttestations(ctx context.Context, commitmentID string) ([]models.Attestation, error) {
	rows, err := q.db.Query(ctx, `
		SELECT commitment_id, sequence, ts, type, payload, is_compliant, submitted_by
		FROM attestation
		WHERE commitment_id = $1
		ORDER BY sequence
	`, commitmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attestations: %w", err)
	}
	defer rows.Close()

	out := []models.Attestation{}
	for rows.Next() {
		var a models.Attestation
		var seq int64
		var payload []byte
		if err := rows.Scan(&a.CommitmentID, &seq, &a.Timestamp, &a.Type, &payload, &a.IsCompliant, &a.SubmittedBy); err != nil {
			return nil, fmt.Errorf("failed to scan attestation: %w", err)
		}
		if err := json.Unmarshal(payload, &a.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode attestation payload: %w", err)
		}
		a.Sequence = uint64(seq)
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAttestations returns the length of a commitment's attestation log
func (q *pgQueries) CountAttestations(ctx context.Context, commitmentID string) (uint64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM attestation WHERE commitment_id = $1`, commitmentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count attestations: %w", err)
	}
	return uint64(n), nil
}

// AppendAttestation assigns the next sequence number and inserts the attestation
func (q *pgQueries) AppendAttestation(ctx context.Context, a *models.Attestation) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode attestation payload: %w", err)
	}
	var seq int64
	err = q.db.QueryRow(ctx, `
		INSERT INTO attestation (commitment_id, sequence, ts, type, payload, is_compliant, submitted_by)
		SELECT $1, COALESCE(MAX(sequence), 0) + 1, $2, $3, $4, $5, $6
		FROM attestation WHERE commitment_id = $1
		RETURNING sequence
	`, a.CommitmentID, a.Timestamp, a.Type, payload, a.IsCompliant, a.SubmittedBy).Scan(&seq)
	if err != nil {
		return fmt.Errorf("failed to append attestation: %w", err)
	}
	a.Sequence = uint64(seq)
	return nil
}

// GetHealth retrieves the health state of a commitment
func (q *pgQueries) GetHealth(ctx context.Context, commitmentID string) (*models.HealthState, error) {
	h := &models.HealthState{}
	var score int32
	err := q.db.QueryRow(ctx, `
		SELECT commitment_id, fees_generated, volatility_exposure, drawdown_percent, last_attestation, compliance_score
		FROM health_state
		WHERE commitment_id = $1
	`, commitmentID).Scan(&h.CommitmentID, &h.FeesGenerated, &h.VolatilityExposure, &h.DrawdownPercent, &h.LastAttestation, &score)
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get health state: %w", err)
	}
	h.ComplianceScore = uint32(score)
	return h, nil
}

// PutHealth inserts or replaces a health state
func (q *pgQueries) PutHealth(ctx context.Context, h *models.HealthState) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO health_state (commitment_id, fees_generated, volatility_exposure, drawdown_percent, last_attestation, compliance_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (commitment_id) DO UPDATE SET
			fees_generated = EXCLUDED.fees_generated,
			volatility_exposure = EXCLUDED.volatility_exposure,
			drawdown_percent = EXCLUDED.drawdown_percent,
			last_attestation = EXCLUDED.last_attestation,
			compliance_score = EXCLUDED.compliance_score
	`, h.CommitmentID, h.FeesGenerated, h.VolatilityExposure, h.DrawdownPercent, h.LastAttestation, int32(h.ComplianceScore))
	if err != nil {
		return fmt.Errorf("failed to put health state: %w", err)
	}
	return nil
}

// GetComplianceStats returns the protocol-wide counters
func (q *pgQueries) GetComplianceStats(ctx context.Context) (models.ComplianceStats, error) {
	var s models.ComplianceStats
	var attestations, violations int64
	err := q.db.QueryRow(ctx,
		`SELECT total_attestations, total_violations, total_fees FROM compliance_stats WHERE id = 1`,
	).Scan(&attestations, &violations, &s.TotalFees)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return models.ComplianceStats{}, nil
		}
		return s, fmt.Errorf("failed to get compliance stats: %w", err)
	}
	s.TotalAttestations = uint64(attestations)
	s.TotalViolations = uint64(violations)
	return s, nil
}

// PutComplianceStats writes the protocol-wide counters
func (q *pgQueries) PutComplianceStats(ctx context.Context, s models.ComplianceStats) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO compliance_stats (id, total_attestations, total_violations, total_fees)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			total_attestations = EXCLUDED.total_attestations,
			total_violations = EXCLUDED.total_violations,
			total_fees = EXCLUDED.total_fees
	`, int64(s.TotalAttestations), int64(s.TotalViolations), s.TotalFees)
	if err != nil {
		return fmt.Errorf("failed to put compliance stats: %w", err)
	}
	return nil
}

// GetRecorderCount returns how many attestations a recorder has submitted
func (q *pgQueries) GetRecorderCount(ctx context.Context, who string) (uint64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT attestations FROM recorder_stats WHERE who = $1`, who).Scan(&n)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get recorder stats: %w", err)
	}
	return uint64(n), nil
}

// IncrementRecorder adds n to a recorder's attestation count
func (q *pgQueries) IncrementRecorder(ctx context.Context, who string, n uint64) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO recorder_stats (who, attestations) VALUES ($1, $2)
		ON CONFLICT (who) DO UPDATE SET attestations = recorder_stats.attestations + EXCLUDED.attestations
	`, who, int64(n))
	if err != nil {
		return fmt.Errorf("failed to increment recorder stats: %w", err)
	}
	return nil
}
