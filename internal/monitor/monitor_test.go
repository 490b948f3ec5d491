package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/epeers/commitvault/internal/compliance"
	"github.com/epeers/commitvault/internal/custody"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/guard"
	"github.com/epeers/commitvault/internal/ledger"
	"github.com/epeers/commitvault/internal/models"
	"github.com/epeers/commitvault/internal/pricefeed"
	"github.com/epeers/commitvault/internal/repository"
	"github.com/epeers/commitvault/internal/util"
	"github.com/shopspring/decimal"
)

const monitorID = "monitor"

type fixture struct {
	ledger     *ledger.Ledger
	compliance *compliance.Engine
	clock      *util.ManualClock
	feed       *pricefeed.StaticFeed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	clock := util.NewManualClock(1_700_000_000)
	pub := events.NewPublisher(events.NoopSink{})
	vault := custody.NewVault()

	l := ledger.New(store, vault, custody.NewRegistry(), nil, clock, pub)
	if err := l.Initialize("admin"); err != nil {
		t.Fatalf("Initialize ledger failed: %v", err)
	}
	if err := l.Access().Grant("admin", monitorID, guard.CapValueUpdater); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	c := compliance.New(store, l, nil, clock, pub)
	if err := c.Initialize("admin"); err != nil {
		t.Fatalf("Initialize compliance failed: %v", err)
	}
	if err := c.AddRecorder(ctx, "admin", monitorID); err != nil {
		t.Fatalf("AddRecorder failed: %v", err)
	}
	for _, asset := range []string{"XLM", "USDC"} {
		if err := vault.Deposit(ctx, "alice", asset, 10_000); err != nil {
			t.Fatalf("Deposit failed: %v", err)
		}
	}
	return &fixture{ledger: l, compliance: c, clock: clock, feed: pricefeed.NewStaticFeed(clock.Now)}
}

func (f *fixture) create(t *testing.T, asset string) *models.Commitment {
	t.Helper()
	c, err := f.ledger.CreateCommitment(context.Background(), "alice", 1000, asset, models.CommitmentRules{
		DurationDays:   30,
		MaxLossPercent: 10,
		CommitmentType: models.CommitmentTypeSafe,
	})
	if err != nil {
		t.Fatalf("CreateCommitment failed: %v", err)
	}
	return c
}

func TestSweepRevaluesAndAttests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	xlm := f.create(t, "XLM")
	usdc := f.create(t, "USDC")

	if err := f.feed.Set("XLM", decimal.RequireFromString("0.08")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s := NewSweeper(f.ledger, f.compliance, f.feed, f.clock, Config{
		Identity:        monitorID,
		ReferencePrices: map[string]decimal.Decimal{"XLM": decimal.RequireFromString("0.10")},
	})

	report, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report != (Report{Checked: 2, Revalued: 1, Violations: 1}) {
		t.Errorf("unexpected report %+v", report)
	}

	got, _ := f.ledger.GetCommitment(ctx, xlm.ID)
	if got.CurrentValue != 800 {
		t.Errorf("current value = %d, want 800", got.CurrentValue)
	}
	log, _ := f.compliance.GetAttestations(ctx, xlm.ID)
	if len(log) != 3 {
		t.Fatalf("expected violation, drawdown and health check, got %d", len(log))
	}
	last := log[2]
	if last.Type != models.AttestationHealthCheck || last.IsCompliant || !last.Payload.HealthCheck.Violated || last.SubmittedBy != monitorID {
		t.Errorf("unexpected health check %+v", last)
	}

	// an unpriced asset keeps its recorded value and stays compliant
	log, _ = f.compliance.GetAttestations(ctx, usdc.ID)
	if len(log) != 2 || !log[1].IsCompliant {
		t.Errorf("unexpected usdc log %+v", log)
	}
}

func TestSweepSkipsStalePrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, "XLM")

	_ = f.feed.Set("XLM", decimal.RequireFromString("0.05"))
	f.clock.Advance(2 * time.Hour)

	s := NewSweeper(f.ledger, f.compliance, f.feed, f.clock, Config{
		Identity:        monitorID,
		ReferencePrices: map[string]decimal.Decimal{"XLM": decimal.RequireFromString("0.10")},
	})
	report, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Revalued != 0 || report.Failures != 0 {
		t.Errorf("stale price should be ignored: %+v", report)
	}
	got, _ := f.ledger.GetCommitment(ctx, c.ID)
	if got.CurrentValue != 1000 {
		t.Errorf("value changed to %d", got.CurrentValue)
	}
}

type failingRecorder struct {
	Recorder
	failFor string
}

func (r failingRecorder) RecordDrawdown(ctx context.Context, caller, id string, v int64) (*models.HealthState, error) {
	if id == r.failFor {
		return nil, errors.New("recorder offline")
	}
	return r.Recorder.RecordDrawdown(ctx, caller, id, v)
}

func TestSweepContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, "XLM")
	second := f.create(t, "XLM")

	s := NewSweeper(f.ledger, failingRecorder{Recorder: f.compliance, failFor: first.ID}, nil, f.clock, Config{Identity: monitorID})
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Checked != 2 || report.Failures != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if n, _ := f.compliance.GetAttestationCount(context.Background(), second.ID); n != 2 {
		t.Errorf("second commitment got %d attestations, want 2", n)
	}
}

func TestRevalue(t *testing.T) {
	tests := []struct {
		principal int64
		price     string
		ref       string
		want      int64
		ok        bool
	}{
		{1000, "0.08", "0.10", 800, true},
		{1000, "0.15", "0.10", 1500, true},
		{1000, "0.0333", "0.10", 333, true},
		{1000, "1", "0", 0, false},
	}
	for _, tt := range tests {
		got, ok, err := Revalue(tt.principal, decimal.RequireFromString(tt.price), decimal.RequireFromString(tt.ref))
		if err != nil || got != tt.want || ok != tt.ok {
			t.Errorf("Revalue(%d, %s, %s) = %d, %v, %v", tt.principal, tt.price, tt.ref, got, ok, err)
		}
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	if _, err := NewScheduler(context.Background(), &Sweeper{}, "every tuesday"); err == nil {
		t.Errorf("expected error for invalid cron spec")
	}
	if _, err := NewScheduler(context.Background(), &Sweeper{}, DefaultSchedule); err != nil {
		t.Errorf("default schedule rejected: %v", err)
	}
}
