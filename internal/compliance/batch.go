package compliance

import (
	"context"
	"fmt"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/models"
)

// BatchMode selects how BatchAttest treats per-item failures
type BatchMode string

const (
	// BatchAtomic commits every item or none of them
	BatchAtomic BatchMode = "atomic"
	// BatchBestEffort commits the valid items and reports the rest
	BatchBestEffort BatchMode = "best_effort"
)

func (m BatchMode) Valid() bool {
	return m == BatchAtomic || m == BatchBestEffort
}

// BatchItem is one attestation request inside a batch
type BatchItem struct {
	CommitmentID string                    `json:"commitment_id"`
	Type         models.AttestationType    `json:"type"`
	Payload      models.AttestationPayload `json:"payload"`
	IsCompliant  bool                      `json:"is_compliant"`
}

// BatchError reports why the item at Index was rejected
type BatchError struct {
	Index   int    `json:"index"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BatchResult summarises a BatchAttest call
type BatchResult struct {
	Mode         BatchMode            `json:"mode"`
	Succeeded    int                  `json:"succeeded"`
	Failed       int                  `json:"failed"`
	Attestations []models.Attestation `json:"attestations"`
	Errors       []BatchError         `json:"errors,omitempty"`
}

// BatchAttest records several attestations under one admission check and
// one transaction. In atomic mode any invalid item aborts the whole batch.
func (e *Engine) BatchAttest(ctx context.Context, submittedBy string, items []BatchItem, mode BatchMode) (*BatchResult, error) {
	res, err := e.batchAttest(ctx, submittedBy, items, mode)
	if err != nil {
		return res, e.fail(ctx, FnBatchAttest, submittedBy, "", err)
	}
	return res, nil
}

func (e *Engine) batchAttest(ctx context.Context, submittedBy string, items []BatchItem, mode BatchMode) (*BatchResult, error) {
	if !mode.Valid() {
		return nil, errs.With(errs.ErrInvalidType, "compliance.batch_attest: mode")
	}
	if err := e.admit(submittedBy, FnBatchAttest); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errs.With(errs.ErrEmptyField, "compliance.batch_attest: items")
	}
	if len(items) > MaxBatchSize {
		return nil, errs.With(errs.ErrBatchTooLarge, fmt.Sprintf("compliance.batch_attest: %d > %d", len(items), MaxBatchSize))
	}

	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	res := &BatchResult{Mode: mode, Attestations: []models.Attestation{}}
	valid := make([]pending, 0, len(items))
	var firstErr error
	for i, item := range items {
		it, err := e.prepare(ctx, item.CommitmentID, item.Type, item.Payload, item.IsCompliant)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			res.Errors = append(res.Errors, BatchError{Index: i, Code: errs.Code(err), Message: err.Error()})
			continue
		}
		valid = append(valid, it)
	}

	if mode == BatchAtomic && len(res.Errors) > 0 {
		res.Failed = len(items)
		return res, firstErr
	}
	res.Failed = len(res.Errors)
	if len(valid) == 0 {
		return res, nil
	}

	out, _, err := e.commit(ctx, submittedBy, valid)
	if err != nil {
		res.Failed = len(items)
		return res, err
	}
	res.Attestations = out
	res.Succeeded = len(out)
	for _, a := range out {
		if a.Type == models.AttestationViolation {
			e.publishViolation(ctx, a)
		}
	}

	e.events.Publish(ctx, events.Event{
		Name:  events.BatchAttested,
		Actor: submittedBy,
		Data: map[string]any{
			"mode":      string(mode),
			"succeeded": res.Succeeded,
			"failed":    res.Failed,
		},
		Timestamp: e.now(),
	})
	return res, nil
}
