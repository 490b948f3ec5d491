package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/epeers/commitvault/internal/models"
	"github.com/google/uuid"
)

func sampleCommitment(owner string) *models.Commitment {
	return &models.Commitment{
		ID:    uuid.NewString(),
		Owner: owner,
		Asset: "XLM",
		Rules: models.CommitmentRules{
			DurationDays:            30,
			MaxLossPercent:          10,
			CommitmentType:          models.CommitmentTypeBalanced,
			EarlyExitPenaltyPercent: 5,
			MinFeeThreshold:         100,
		},
		Principal:    1000,
		CurrentValue: 1000,
		CreatedAt:    1_700_000_000,
		ExpiresAt:    1_700_000_000 + 30*86400,
		Status:       models.StatusActive,
	}
}

// exerciseStore runs the same behavioural checks against any Store
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()
	owner := "owner-" + uuid.NewString()

	c := sampleCommitment(owner)
	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.PutCommitment(ctx, c); err != nil {
			return err
		}
		stats, err := tx.GetLedgerStats(ctx)
		if err != nil {
			return err
		}
		stats.TotalCommitments++
		stats.TotalValueLocked += c.Principal
		return tx.PutLedgerStats(ctx, stats)
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	got, err := store.GetCommitment(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCommitment failed: %v", err)
	}
	if got.Principal != 1000 || got.Rules.MaxLossPercent != 10 || got.Status != models.StatusActive {
		t.Errorf("unexpected commitment %+v", got)
	}

	// a failing transaction leaves nothing behind
	rolledBack := sampleCommitment(owner)
	boom := errors.New("boom")
	before, _ := store.GetLedgerStats(ctx)
	err = store.WithTx(ctx, func(tx Tx) error {
		if err := tx.PutCommitment(ctx, rolledBack); err != nil {
			return err
		}
		if err := tx.PutLedgerStats(ctx, models.LedgerStats{TotalCommitments: 999}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := store.GetCommitment(ctx, rolledBack.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("rolled back commitment should not exist, got %v", err)
	}
	after, _ := store.GetLedgerStats(ctx)
	if after != before {
		t.Errorf("ledger stats changed by failed tx: %+v -> %+v", before, after)
	}

	// attestation sequence numbers start at 1 and increase
	err = store.WithTx(ctx, func(tx Tx) error {
		for i := 0; i < 3; i++ {
			a := &models.Attestation{
				CommitmentID: c.ID,
				Timestamp:    int64(100 + i),
				Type:         models.AttestationFeeGeneration,
				Payload:      models.AttestationPayload{Version: models.PayloadVersion, Fee: &models.FeePayload{FeeAmount: 10}},
				IsCompliant:  true,
				SubmittedBy:  "recorder",
			}
			if err := tx.AppendAttestation(ctx, a); err != nil {
				return err
			}
			if a.Sequence != uint64(i+1) {
				return fmt.Errorf("sequence %d, want %d", a.Sequence, i+1)
			}
		}
		return tx.IncrementRecorder(ctx, "recorder-"+owner, 3)
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	log, err := store.ListAttestations(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListAttestations failed: %v", err)
	}
	if len(log) != 3 || log[2].Payload.Fee == nil || log[2].Payload.Fee.FeeAmount != 10 {
		t.Errorf("unexpected attestation log %+v", log)
	}
	if n, _ := store.GetRecorderCount(ctx, "recorder-"+owner); n != 3 {
		t.Errorf("recorder count = %d, want 3", n)
	}

	list, err := store.ListCommitmentsByOwner(ctx, owner)
	if err != nil || len(list) != 1 {
		t.Errorf("ListCommitmentsByOwner = %d, %v", len(list), err)
	}

	alloc := &models.Allocation{
		CommitmentID:   c.ID,
		Owner:          owner,
		Strategy:       models.StrategySafe,
		Requested:      500,
		TotalAllocated: 500,
		Entries:        []models.AllocationEntry{{PoolID: 1, Amount: 500}},
		UpdatedAt:      100,
	}
	if err := store.WithTx(ctx, func(tx Tx) error { return tx.PutAllocation(ctx, alloc) }); err != nil {
		t.Fatalf("PutAllocation failed: %v", err)
	}
	alloc.Entries[0].Amount = 1
	gotAlloc, err := store.GetAllocation(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetAllocation failed: %v", err)
	}
	if gotAlloc.Entries[0].Amount != 500 {
		t.Errorf("allocation entries aliased caller slice: %+v", gotAlloc.Entries)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreRollbackOnPanic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	c := sampleCommitment("alice")

	func() {
		defer func() { _ = recover() }()
		_ = store.WithTx(ctx, func(tx Tx) error {
			_ = tx.PutCommitment(ctx, c)
			panic("mid-transaction")
		})
	}()

	if _, err := store.GetCommitment(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("panic should roll back, got %v", err)
	}
	// the lock must have been released
	if _, err := store.ListActiveCommitments(ctx); err != nil {
		t.Errorf("store unusable after panic: %v", err)
	}
}

func TestMemoryStoreAttestationsAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	a := &models.Attestation{
		CommitmentID: "c-1",
		Type:         models.AttestationFeeGeneration,
		Payload:      models.AttestationPayload{Version: models.PayloadVersion, Fee: &models.FeePayload{FeeAmount: 10}},
		Timestamp:    1_700_000_000,
	}
	if err := store.WithTx(ctx, func(tx Tx) error { return tx.AppendAttestation(ctx, a) }); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	a.Payload.Fee.FeeAmount = 500

	list, err := store.ListAttestations(ctx, "c-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAttestations: %v %v", list, err)
	}
	if list[0].Payload.Fee.FeeAmount != 10 {
		t.Fatalf("stored payload followed caller mutation: %d", list[0].Payload.Fee.FeeAmount)
	}
	list[0].Payload.Fee.FeeAmount = 1_000_000

	again, _ := store.ListAttestations(ctx, "c-1")
	if again[0].Payload.Fee.FeeAmount != 10 {
		t.Errorf("stored payload followed returned-slice mutation: %d", again[0].Payload.Fee.FeeAmount)
	}
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pgURL := os.Getenv("PG_URL")
	if pgURL == "" {
		t.Skip("PG_URL environment variable not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, pgURL)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	exerciseStore(t, store)
}
