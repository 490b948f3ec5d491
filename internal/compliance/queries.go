package compliance

import (
	"context"
	"errors"
	"time"

	"github.com/epeers/commitvault/internal/models"
	"github.com/epeers/commitvault/internal/repository"
	"github.com/epeers/commitvault/internal/safemath"
	"github.com/epeers/commitvault/internal/util"
)

// GetAttestations returns a commitment's attestation log in insertion order
func (e *Engine) GetAttestations(ctx context.Context, commitmentID string) ([]models.Attestation, error) {
	defer util.TrackTime("GetAttestations", time.Now())
	list, err := e.store.ListAttestations(ctx, commitmentID)
	if err != nil {
		return nil, storeErr("compliance.get_attestations", err)
	}
	return list, nil
}

// GetAttestationCount returns the number of attestations for a commitment
func (e *Engine) GetAttestationCount(ctx context.Context, commitmentID string) (uint64, error) {
	n, err := e.store.CountAttestations(ctx, commitmentID)
	if err != nil {
		return 0, storeErr("compliance.get_attestation_count", err)
	}
	return n, nil
}

// health returns the stored health state, or an empty one with an unknown
// (zero) score when nothing was recorded yet
func (e *Engine) health(ctx context.Context, commitmentID string) (*models.HealthState, error) {
	h, err := e.store.GetHealth(ctx, commitmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.HealthState{CommitmentID: commitmentID}, nil
	}
	if err != nil {
		return nil, storeErr("compliance.health", err)
	}
	return h, nil
}

// GetHealthMetrics combines the stored health state with a fresh
// commitment read
func (e *Engine) GetHealthMetrics(ctx context.Context, commitmentID string) (*models.HealthMetrics, error) {
	c, err := e.commitment(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	h, err := e.health(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	drawdown, err := safemath.DrawdownPercent(c.Principal, c.CurrentValue)
	if err != nil {
		return nil, err
	}
	return &models.HealthMetrics{
		CommitmentID:       commitmentID,
		InitialValue:       c.Principal,
		CurrentValue:       c.CurrentValue,
		DrawdownPercent:    drawdown,
		FeesGenerated:      h.FeesGenerated,
		VolatilityExposure: h.VolatilityExposure,
		LastAttestation:    h.LastAttestation,
		ComplianceScore:    h.ComplianceScore,
	}, nil
}

// CalculateComplianceScore scores a commitment from its current log
// without persisting anything
func (e *Engine) CalculateComplianceScore(ctx context.Context, commitmentID string) (uint32, error) {
	c, err := e.commitment(ctx, commitmentID)
	if err != nil {
		return 0, err
	}
	history, err := e.store.ListAttestations(ctx, commitmentID)
	if err != nil {
		return 0, storeErr("compliance.calculate_score", err)
	}
	return Score(c, history, e.now()), nil
}

// ComplianceReport breaks VerifyCompliance into its terms
type ComplianceReport struct {
	CommitmentID  string `json:"commitment_id"`
	Compliant     bool   `json:"compliant"`
	LossOK        bool   `json:"loss_ok"`
	DurationOK    bool   `json:"duration_ok"`
	FeeOK         bool   `json:"fee_ok"`
	HealthOK      bool   `json:"health_ok"`
	HasViolations bool   `json:"has_violations"`
	Score         uint32 `json:"score"`
}

// VerifyCompliance reports whether the commitment meets every rule
func (e *Engine) VerifyCompliance(ctx context.Context, commitmentID string) (bool, error) {
	r, err := e.ComplianceReport(ctx, commitmentID)
	if err != nil {
		return false, err
	}
	return r.Compliant, nil
}

// ComplianceReport evaluates the terms of VerifyCompliance. A zero stored
// score means no health state yet and does not fail the health term.
func (e *Engine) ComplianceReport(ctx context.Context, commitmentID string) (*ComplianceReport, error) {
	c, err := e.commitment(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	h, err := e.health(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	violated, err := e.ledger.CheckViolations(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	drawdown, err := safemath.DrawdownPercent(c.Principal, c.CurrentValue)
	if err != nil {
		return nil, err
	}

	now := e.now()
	r := &ComplianceReport{
		CommitmentID:  commitmentID,
		LossOK:        drawdown <= int64(c.Rules.MaxLossPercent),
		DurationOK:    c.Rules.DurationDays == 0 || now <= c.ExpiresAt,
		FeeOK:         c.Rules.MinFeeThreshold <= 0 || h.FeesGenerated >= c.Rules.MinFeeThreshold,
		HealthOK:      h.ComplianceScore == 0 || h.ComplianceScore >= healthyScoreFloor,
		HasViolations: violated,
		Score:         h.ComplianceScore,
	}
	r.Compliant = r.LossOK && r.DurationOK && r.FeeOK && r.HealthOK && !r.HasViolations && c.Status != models.StatusViolated
	return r, nil
}

// ProtocolStats returns the protocol-wide attestation counters
func (e *Engine) ProtocolStats(ctx context.Context) (models.ComplianceStats, error) {
	s, err := e.store.GetComplianceStats(ctx)
	if err != nil {
		return s, storeErr("compliance.protocol_stats", err)
	}
	return s, nil
}

// RecorderStats returns how many attestations who has submitted
func (e *Engine) RecorderStats(ctx context.Context, who string) (uint64, error) {
	n, err := e.store.GetRecorderCount(ctx, who)
	if err != nil {
		return 0, storeErr("compliance.recorder_stats", err)
	}
	return n, nil
}
