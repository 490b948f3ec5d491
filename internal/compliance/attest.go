package compliance

import (
	"context"
	"errors"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/models"
	"github.com/epeers/commitvault/internal/repository"
	"github.com/epeers/commitvault/internal/safemath"
	log "github.com/sirupsen/logrus"
)

// pending is one attestation waiting to be committed
type pending struct {
	commitment *models.Commitment
	att        models.Attestation
}

// ValidatePayload checks that payload carries exactly the member matching
// t and that its values are in range. A zero version is read as current.
func ValidatePayload(t models.AttestationType, p *models.AttestationPayload) error {
	if !t.Valid() {
		return errs.With(errs.ErrInvalidType, "attestation.type")
	}
	if p.Version == 0 {
		p.Version = models.PayloadVersion
	}
	if p.Version != models.PayloadVersion {
		return errs.With(errs.ErrInvalidPayload, "attestation.version")
	}

	set := 0
	for _, present := range []bool{p.HealthCheck != nil, p.Violation != nil, p.Fee != nil, p.Drawdown != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return errs.With(errs.ErrInvalidPayload, "attestation.payload: more than one member")
	}

	switch t {
	case models.AttestationHealthCheck:
		if p.HealthCheck == nil {
			if set != 0 {
				return errs.With(errs.ErrInvalidPayload, "attestation.payload: health_check")
			}
			p.HealthCheck = &models.HealthCheckPayload{}
		}
		if p.HealthCheck.ObservedValue < 0 {
			return errs.With(errs.ErrInvalidAmount, "attestation.health_check.observed_value")
		}
	case models.AttestationViolation:
		if p.Violation == nil {
			return errs.With(errs.ErrInvalidPayload, "attestation.payload: violation")
		}
		switch p.Violation.Severity {
		case "":
			v := *p.Violation
			v.Severity = models.SeverityMedium
			p.Violation = &v
		case models.SeverityLow, models.SeverityMedium, models.SeverityHigh:
		default:
			return errs.With(errs.ErrInvalidType, "attestation.violation.severity")
		}
	case models.AttestationFeeGeneration:
		if p.Fee == nil {
			return errs.With(errs.ErrInvalidPayload, "attestation.payload: fee")
		}
		if p.Fee.FeeAmount < 0 {
			return errs.With(errs.ErrInvalidAmount, "attestation.fee.fee_amount")
		}
	case models.AttestationDrawdown:
		if p.Drawdown == nil {
			return errs.With(errs.ErrInvalidPayload, "attestation.payload: drawdown")
		}
		d := p.Drawdown
		if d.DrawdownPercent < 0 || d.DrawdownPercent > 100 || d.MaxLossPercent < 0 || d.MaxLossPercent > 100 {
			return errs.With(errs.ErrInvalidPercent, "attestation.drawdown")
		}
		if d.CurrentValue < 0 {
			return errs.With(errs.ErrInvalidAmount, "attestation.drawdown.current_value")
		}
	}
	return nil
}

// applyHealth folds one attestation into the health state and counters
func applyHealth(h *models.HealthState, stats *models.ComplianceStats, a models.Attestation) error {
	var err error
	h.LastAttestation = a.Timestamp

	switch a.Type {
	case models.AttestationFeeGeneration:
		if h.FeesGenerated, err = safemath.Add(h.FeesGenerated, a.Payload.Fee.FeeAmount); err != nil {
			return err
		}
		if stats.TotalFees, err = safemath.Add(stats.TotalFees, a.Payload.Fee.FeeAmount); err != nil {
			return err
		}
	case models.AttestationDrawdown:
		h.DrawdownPercent = a.Payload.Drawdown.DrawdownPercent
	case models.AttestationViolation:
		if h.VolatilityExposure, err = safemath.Add(h.VolatilityExposure, severityWeight(a.Payload.Violation.Severity)); err != nil {
			return err
		}
	}

	stats.TotalAttestations++
	if a.CountsAsViolation() {
		stats.TotalViolations++
	}
	return nil
}

// commit appends every pending attestation, updates health state and
// counters, and re-scores each touched commitment in one transaction.
func (e *Engine) commit(ctx context.Context, submittedBy string, items []pending) ([]models.Attestation, map[string]*models.HealthState, error) {
	now := e.now()
	out := make([]models.Attestation, 0, len(items))
	healths := make(map[string]*models.HealthState)

	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		out = out[:0]
		clear(healths)
		commitments := make(map[string]*models.Commitment)
		var order []string

		stats, err := tx.GetComplianceStats(ctx)
		if err != nil {
			return err
		}

		for _, it := range items {
			id := it.commitment.ID
			h, ok := healths[id]
			if !ok {
				h, err = tx.GetHealth(ctx, id)
				if errors.Is(err, repository.ErrNotFound) {
					h = &models.HealthState{CommitmentID: id}
				} else if err != nil {
					return err
				}
				healths[id] = h
				commitments[id] = it.commitment
				order = append(order, id)
			}

			a := it.att
			a.CommitmentID = id
			a.Timestamp = max(now, h.LastAttestation)
			a.SubmittedBy = submittedBy
			if err := applyHealth(h, &stats, a); err != nil {
				return err
			}
			if err := tx.AppendAttestation(ctx, &a); err != nil {
				return err
			}
			out = append(out, a)
		}

		for _, id := range order {
			history, err := tx.ListAttestations(ctx, id)
			if err != nil {
				return err
			}
			h := healths[id]
			h.ComplianceScore = Score(commitments[id], history, now)
			if err := tx.PutHealth(ctx, h); err != nil {
				return err
			}
		}

		if err := tx.PutComplianceStats(ctx, stats); err != nil {
			return err
		}
		return tx.IncrementRecorder(ctx, submittedBy, uint64(len(items)))
	})
	if err != nil {
		return nil, nil, storeErr("compliance.commit", err)
	}

	for _, a := range out {
		e.events.Publish(ctx, events.Event{
			Name:         events.AttestationRecorded,
			CommitmentID: a.CommitmentID,
			Actor:        submittedBy,
			Data: map[string]any{
				"sequence":     a.Sequence,
				"type":         string(a.Type),
				"is_compliant": a.IsCompliant,
			},
			Timestamp: now,
		})
	}
	for id, h := range healths {
		e.events.Publish(ctx, events.Event{
			Name:         events.ScoreUpdated,
			CommitmentID: id,
			Data:         map[string]any{"score": h.ComplianceScore},
			Timestamp:    now,
		})
	}
	return out, healths, nil
}

// Attest records one attestation for a commitment
func (e *Engine) Attest(ctx context.Context, submittedBy, commitmentID string, t models.AttestationType, payload models.AttestationPayload, isCompliant bool) (*models.Attestation, error) {
	a, err := e.attest(ctx, submittedBy, commitmentID, t, payload, isCompliant)
	if err != nil {
		return nil, e.fail(ctx, FnAttest, submittedBy, commitmentID, err)
	}
	return a, nil
}

func (e *Engine) attest(ctx context.Context, submittedBy, commitmentID string, t models.AttestationType, payload models.AttestationPayload, isCompliant bool) (*models.Attestation, error) {
	if err := e.admit(submittedBy, FnAttest); err != nil {
		return nil, err
	}
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	it, err := e.prepare(ctx, commitmentID, t, payload, isCompliant)
	if err != nil {
		return nil, err
	}
	out, _, err := e.commit(ctx, submittedBy, []pending{it})
	if err != nil {
		return nil, err
	}
	if out[0].Type == models.AttestationViolation {
		e.publishViolation(ctx, out[0])
	}
	return &out[0], nil
}

// prepare validates one attestation request against a fresh commitment read
func (e *Engine) prepare(ctx context.Context, commitmentID string, t models.AttestationType, payload models.AttestationPayload, isCompliant bool) (pending, error) {
	if commitmentID == "" {
		return pending{}, errs.With(errs.ErrEmptyField, "attestation.commitment_id")
	}
	if err := ValidatePayload(t, &payload); err != nil {
		return pending{}, err
	}
	c, err := e.commitment(ctx, commitmentID)
	if err != nil {
		return pending{}, err
	}
	return pending{
		commitment: c,
		att: models.Attestation{
			Type:        t,
			Payload:     payload,
			IsCompliant: isCompliant,
		},
	}, nil
}

func (e *Engine) publishViolation(ctx context.Context, a models.Attestation) {
	data := map[string]any{"sequence": a.Sequence}
	if v := a.Payload.Violation; v != nil {
		data["violation_type"] = v.ViolationType
		data["severity"] = string(v.Severity)
	}
	e.events.Publish(ctx, events.Event{
		Name:         events.ViolationDetected,
		CommitmentID: a.CommitmentID,
		Actor:        a.SubmittedBy,
		Data:         data,
		Timestamp:    a.Timestamp,
	})
}

// RecordFees adds amount to the commitment's generated fees
func (e *Engine) RecordFees(ctx context.Context, caller, commitmentID string, amount int64) (*models.HealthState, error) {
	h, err := e.recordFees(ctx, caller, commitmentID, amount)
	if err != nil {
		return nil, e.fail(ctx, FnRecordFees, caller, commitmentID, err)
	}
	return h, nil
}

func (e *Engine) recordFees(ctx context.Context, caller, commitmentID string, amount int64) (*models.HealthState, error) {
	if err := e.admit(caller, FnRecordFees); err != nil {
		return nil, err
	}
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if amount < 0 {
		return nil, errs.With(errs.ErrInvalidAmount, "compliance.record_fees")
	}
	c, err := e.commitment(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	if prev, err := e.store.GetHealth(ctx, commitmentID); err == nil {
		if _, err := safemath.Add(prev.FeesGenerated, amount); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr("compliance.record_fees", err)
	}

	it := pending{
		commitment: c,
		att: models.Attestation{
			Type:        models.AttestationFeeGeneration,
			Payload:     models.AttestationPayload{Version: models.PayloadVersion, Fee: &models.FeePayload{FeeAmount: amount}},
			IsCompliant: true,
		},
	}
	_, healths, err := e.commit(ctx, caller, []pending{it})
	if err != nil {
		return nil, err
	}
	h := healths[commitmentID]

	e.events.Publish(ctx, events.Event{
		Name:         events.FeeRecorded,
		CommitmentID: commitmentID,
		Actor:        caller,
		Data:         map[string]any{"amount": amount, "fees_generated": h.FeesGenerated},
		Timestamp:    h.LastAttestation,
	})
	return h, nil
}

// RecordDrawdown attests the drawdown implied by currentValue. A drawdown
// beyond the commitment's max loss also appends a violation attestation.
func (e *Engine) RecordDrawdown(ctx context.Context, caller, commitmentID string, currentValue int64) (*models.HealthState, error) {
	h, err := e.recordDrawdown(ctx, caller, commitmentID, currentValue)
	if err != nil {
		return nil, e.fail(ctx, FnRecordDrawdown, caller, commitmentID, err)
	}
	return h, nil
}

func (e *Engine) recordDrawdown(ctx context.Context, caller, commitmentID string, currentValue int64) (*models.HealthState, error) {
	if err := e.admit(caller, FnRecordDrawdown); err != nil {
		return nil, err
	}
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if currentValue < 0 {
		return nil, errs.With(errs.ErrInvalidAmount, "compliance.record_drawdown")
	}
	c, err := e.commitment(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	drawdown, err := safemath.DrawdownPercent(c.Principal, currentValue)
	if err != nil {
		return nil, err
	}
	maxLoss := int64(c.Rules.MaxLossPercent)
	violated := drawdown > maxLoss

	var items []pending
	if violated {
		items = append(items, pending{
			commitment: c,
			att: models.Attestation{
				Type: models.AttestationViolation,
				Payload: models.AttestationPayload{
					Version:   models.PayloadVersion,
					Violation: &models.ViolationPayload{ViolationType: "max_loss_exceeded", Severity: models.SeverityHigh},
				},
				IsCompliant: false,
			},
		})
	}
	items = append(items, pending{
		commitment: c,
		att: models.Attestation{
			Type: models.AttestationDrawdown,
			Payload: models.AttestationPayload{
				Version: models.PayloadVersion,
				Drawdown: &models.DrawdownPayload{
					DrawdownPercent: drawdown,
					MaxLossPercent:  maxLoss,
					CurrentValue:    currentValue,
				},
			},
			IsCompliant: !violated,
		},
	})

	out, healths, err := e.commit(ctx, caller, items)
	if err != nil {
		return nil, err
	}
	if violated {
		e.publishViolation(ctx, out[0])
		log.Warnf("commitment %s drawdown %d%% exceeds max loss %d%%", commitmentID, drawdown, maxLoss)
	}
	h := healths[commitmentID]

	e.events.Publish(ctx, events.Event{
		Name:         events.DrawdownRecorded,
		CommitmentID: commitmentID,
		Actor:        caller,
		Data:         map[string]any{"drawdown_percent": drawdown, "is_compliant": !violated},
		Timestamp:    h.LastAttestation,
	})
	return h, nil
}
