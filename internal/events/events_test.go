package events

import (
	"context"
	"errors"
	"testing"

	"github.com/epeers/commitvault/internal/errs"
)

type memorySink struct {
	events []Event
	fail   bool
}

func (m *memorySink) Record(_ context.Context, ev Event) error {
	if m.fail {
		return errors.New("sink down")
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memorySink) Close() error { return nil }

func TestPublisherFansOutAndCollects(t *testing.T) {
	a, b := &memorySink{}, &memorySink{fail: true}
	p := NewPublisher(a, b)

	ctx, c := NewCollectorContext(context.Background())
	p.Publish(ctx, Event{Name: CommitmentCreated, CommitmentID: "c1", Timestamp: 10})

	if len(a.events) != 1 {
		t.Fatalf("expected 1 event in sink, got %d", len(a.events))
	}
	names := c.Names()
	if len(names) != 1 || names[0] != CommitmentCreated {
		t.Errorf("collector saw %v", names)
	}
}

func TestFailPublishesErrorEvent(t *testing.T) {
	sink := &memorySink{}
	p := NewPublisher(sink)

	err := p.Fail(context.Background(), 42, "ledger.settle", "alice", "c1", errs.With(errs.ErrWrongState, "ledger.settle"))
	if !errors.Is(err, errs.ErrWrongState) {
		t.Fatalf("Fail must return the original error, got %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected an error event")
	}
	ev := sink.events[0]
	if ev.Name != Failure || ev.Code != 202 || ev.Timestamp != 42 {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Data["context"] != "ledger.settle" {
		t.Errorf("missing context: %+v", ev.Data)
	}
}

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	p.Publish(context.Background(), Event{Name: "x"})
	if _, ok := p.Lister(); ok {
		t.Errorf("nil publisher has no lister")
	}
}

func TestSQLiteSinkRoundTrip(t *testing.T) {
	sink, err := NewSQLiteSink(":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite sink: %v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	p := NewPublisher(sink)
	p.Publish(ctx, Event{Name: CommitmentCreated, CommitmentID: "c1", Actor: "alice", Data: map[string]any{"amount": 1000}, Timestamp: 1})
	p.Publish(ctx, Event{Name: CommitmentSettled, CommitmentID: "c1", Timestamp: 2})
	p.Publish(ctx, Event{Name: CommitmentCreated, CommitmentID: "c2", Timestamp: 3})

	lister, ok := p.Lister()
	if !ok {
		t.Fatal("sqlite sink should be a lister")
	}
	got, err := lister.ListByCommitment(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for c1, got %d", len(got))
	}
	if got[0].Name != CommitmentCreated || got[1].Name != CommitmentSettled {
		t.Errorf("events out of order: %+v", got)
	}
	if amt, ok := got[0].Data["amount"].(float64); !ok || amt != 1000 {
		t.Errorf("data not preserved: %+v", got[0].Data)
	}
}
