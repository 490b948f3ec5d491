package events

import (
	"context"
	"errors"

	"github.com/epeers/commitvault/internal/errs"
	log "github.com/sirupsen/logrus"
)

// Event names published by the engine.
const (
	CommitmentCreated      = "commitment.created"
	CommitmentValueUpdated = "commitment.value_updated"
	CommitmentViolated     = "commitment.violated"
	CommitmentSettled      = "commitment.settled"
	CommitmentEarlyExit    = "commitment.early_exit"
	EmergencyModeChanged   = "ledger.emergency_mode"
	AttestationRecorded    = "compliance.attestation_recorded"
	BatchAttested          = "compliance.batch_attested"
	FeeRecorded            = "compliance.fee_recorded"
	DrawdownRecorded       = "compliance.drawdown_recorded"
	ViolationDetected      = "compliance.violation_detected"
	ScoreUpdated           = "compliance.score_updated"
	RecorderChanged        = "compliance.recorder_changed"
	PoolRegistered         = "allocation.pool_registered"
	PoolUpdated            = "allocation.pool_updated"
	Allocated              = "allocation.allocated"
	Rebalanced             = "allocation.rebalanced"
	Failure                = "error"
)

// Event is an informational record for off-chain indexing.
type Event struct {
	Name         string         `json:"name"`
	CommitmentID string         `json:"commitment_id,omitempty"`
	Actor        string         `json:"actor,omitempty"`
	Code         int            `json:"code,omitempty"`
	Message      string         `json:"message,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Timestamp    int64          `json:"timestamp"`
}

// Sink persists or forwards events.
type Sink interface {
	Record(ctx context.Context, ev Event) error
	Close() error
}

// Lister is implemented by sinks that can replay events.
type Lister interface {
	ListByCommitment(ctx context.Context, commitmentID string, limit int) ([]Event, error)
}

// Publisher fans events out to sinks. Sink failures are logged and never
// fail the operation that produced the event.
type Publisher struct {
	sinks []Sink
}

// NewPublisher returns a publisher writing to every sink.
func NewPublisher(sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks}
}

// Publish records ev and adds it to any collector carried by ctx.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil {
		return
	}
	for _, s := range p.sinks {
		if err := s.Record(ctx, ev); err != nil {
			log.WithError(err).WithField("event", ev.Name).Warn("failed to record event")
		}
	}
	collect(ctx, ev)
}

// Fail publishes an error event describing err raised at where, then returns err.
func (p *Publisher) Fail(ctx context.Context, now int64, where, actor, commitmentID string, err error) error {
	if err == nil {
		return nil
	}
	code := errs.Code(err)
	msg := errs.MessageFor(code)
	var e *errs.Error
	if !errors.As(err, &e) {
		msg = err.Error()
	}
	p.Publish(ctx, Event{
		Name:         Failure,
		CommitmentID: commitmentID,
		Actor:        actor,
		Code:         code,
		Message:      msg,
		Data:         map[string]any{"context": where},
		Timestamp:    now,
	})
	return err
}

// Lister returns the first sink able to replay events, if any.
func (p *Publisher) Lister() (Lister, bool) {
	if p == nil {
		return nil, false
	}
	for _, s := range p.sinks {
		if l, ok := s.(Lister); ok {
			return l, true
		}
	}
	return nil, false
}

// Close closes every sink, returning the first error.
func (p *Publisher) Close() error {
	var first error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
