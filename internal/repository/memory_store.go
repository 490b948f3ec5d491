package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/epeers/commitvault/internal/models"
)

// MemoryStore is an in-process Store. Transactions hold the write lock for
// their whole duration and undo their writes on failure.
type MemoryStore struct {
	mu sync.RWMutex
	memState
}

type memState struct {
	commitments     map[string]models.Commitment
	order           []string
	ledgerStats     models.LedgerStats
	attestations    map[string][]models.Attestation
	health          map[string]models.HealthState
	complianceStats models.ComplianceStats
	recorders       map[string]uint64
	pools           map[uint32]models.Pool
	allocations     map[string]models.Allocation
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{memState: memState{
		commitments:  make(map[string]models.Commitment),
		attestations: make(map[string][]models.Attestation),
		health:       make(map[string]models.HealthState),
		recorders:    make(map[string]uint64),
		pools:        make(map[uint32]models.Pool),
		allocations:  make(map[string]models.Allocation),
	}}
}

func (s *MemoryStore) Close() {}

// WithTx runs fn under the store's write lock.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{memState: &s.memState}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) GetCommitment(ctx context.Context, id string) (*models.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memState.GetCommitment(ctx, id)
}

func (s *MemoryStore) ListCommitmentsByOwner(ctx context.Context, owner string) ([]models.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memState.ListCommitmentsByOwner(ctx, owner)
}

func (s *MemoryStore) ListActiveCommitments(ctx context.Context) ([]models.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memState.ListActiveCommitments(ctx)
}

func (s *MemoryStore) GetLedgerStats(ctx context.Context) (models.LedgerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memState.GetLedgerStats(ctx)
}

func (s *MemoryStore) ListAttestations(ctx context.Context, commitmentID string) ([]models.Attestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memState.ListAttestations(ctx, commitmentID)
}

func (s *MemoryStore) CountAttestations(ctx context.Context, commitmentID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memState.CountAttestations(ctx, commitmentID)
}

func (s *MemoryStore) GetHealth(ctx context.Context, commitmentID string) (*models.HealthState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memState.GetHealth(ctx, commitmentID)
}

func (s *MemoryStore) GetComplianceStats(ctx context.Context) (models.ComplianceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memState.GetComplianceStats(ctx)
}

func (s *MemoryStore) GetRecorderCount(ctx context.Context, who string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memState.GetRecorderCount(ctx, who)
}

func (s *MemoryStore) GetPool(ctx context.Context, id uint32) (*models.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memState.GetPool(ctx, id)
}

func (s *MemoryStore) ListPools(ctx context.Context) ([]models.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memState.ListPools(ctx)
}

func (s *MemoryStore) GetAllocation(ctx context.Context, commitmentID string) (*models.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memState.GetAllocation(ctx, commitmentID)
}

// memState reads assume the caller holds the store lock.

func (m *memState) GetCommitment(_ context.Context, id string) (*models.Commitment, error) {
	c, ok := m.commitments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *memState) ListCommitmentsByOwner(_ context.Context, owner string) ([]models.Commitment, error) {
	out := []models.Commitment{}
	for _, id := range m.order {
		if c := m.commitments[id]; c.Owner == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memState) ListActiveCommitments(_ context.Context) ([]models.Commitment, error) {
	out := []models.Commitment{}
	for _, id := range m.order {
		if c := m.commitments[id]; c.Status == models.StatusActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memState) GetLedgerStats(context.Context) (models.LedgerStats, error) {
	return m.ledgerStats, nil
}

func (m *memState) ListAttestations(_ context.Context, commitmentID string) ([]models.Attestation, error) {
	log := m.attestations[commitmentID]
	out := make([]models.Attestation, len(log))
	for i := range log {
		out[i] = log[i].Clone()
	}
	return out, nil
}

func (m *memState) CountAttestations(_ context.Context, commitmentID string) (uint64, error) {
	return uint64(len(m.attestations[commitmentID])), nil
}

func (m *memState) GetHealth(_ context.Context, commitmentID string) (*models.HealthState, error) {
	h, ok := m.health[commitmentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &h, nil
}

func (m *memState) GetComplianceStats(context.Context) (models.ComplianceStats, error) {
	return m.complianceStats, nil
}

func (m *memState) GetRecorderCount(_ context.Context, who string) (uint64, error) {
	return m.recorders[who], nil
}

func (m *memState) GetPool(_ context.Context, id uint32) (*models.Pool, error) {
	p, ok := m.pools[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *memState) ListPools(context.Context) ([]models.Pool, error) {
	out := make([]models.Pool, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memState) GetAllocation(_ context.Context, commitmentID string) (*models.Allocation, error) {
	a, ok := m.allocations[commitmentID]
	if !ok {
		return nil, ErrNotFound
	}
	a.Entries = append([]models.AllocationEntry(nil), a.Entries...)
	return &a, nil
}

// memTx records an undo step for every write.
type memTx struct {
	*memState
	undo []func()
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) PutCommitment(_ context.Context, c *models.Commitment) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("failed to put commitment: missing id")
	}
	m := tx.memState
	id := c.ID
	prev, existed := m.commitments[id]
	m.commitments[id] = *c
	if existed {
		tx.undo = append(tx.undo, func() { m.commitments[id] = prev })
		return nil
	}
	m.order = append(m.order, id)
	tx.undo = append(tx.undo, func() {
		delete(m.commitments, id)
		m.order = m.order[:len(m.order)-1]
	})
	return nil
}

func (tx *memTx) PutLedgerStats(_ context.Context, s models.LedgerStats) error {
	m := tx.memState
	prev := m.ledgerStats
	m.ledgerStats = s
	tx.undo = append(tx.undo, func() { m.ledgerStats = prev })
	return nil
}

func (tx *memTx) AppendAttestation(_ context.Context, a *models.Attestation) error {
	m := tx.memState
	id := a.CommitmentID
	prevLen := len(m.attestations[id])
	a.Sequence = uint64(prevLen) + 1
	m.attestations[id] = append(m.attestations[id], a.Clone())
	tx.undo = append(tx.undo, func() {
		if prevLen == 0 {
			delete(m.attestations, id)
			return
		}
		m.attestations[id] = m.attestations[id][:prevLen]
	})
	return nil
}

func (tx *memTx) PutHealth(_ context.Context, h *models.HealthState) error {
	m := tx.memState
	id := h.CommitmentID
	prev, existed := m.health[id]
	m.health[id] = *h
	tx.undo = append(tx.undo, func() {
		if existed {
			m.health[id] = prev
		} else {
			delete(m.health, id)
		}
	})
	return nil
}

func (tx *memTx) PutComplianceStats(_ context.Context, s models.ComplianceStats) error {
	m := tx.memState
	prev := m.complianceStats
	m.complianceStats = s
	tx.undo = append(tx.undo, func() { m.complianceStats = prev })
	return nil
}

func (tx *memTx) IncrementRecorder(_ context.Context, who string, n uint64) error {
	m := tx.memState
	prev, existed := m.recorders[who]
	m.recorders[who] = prev + n
	tx.undo = append(tx.undo, func() {
		if existed {
			m.recorders[who] = prev
		} else {
			delete(m.recorders, who)
		}
	})
	return nil
}

func (tx *memTx) PutPool(_ context.Context, p *models.Pool) error {
	m := tx.memState
	id := p.ID
	prev, existed := m.pools[id]
	m.pools[id] = *p
	tx.undo = append(tx.undo, func() {
		if existed {
			m.pools[id] = prev
		} else {
			delete(m.pools, id)
		}
	})
	return nil
}

func (tx *memTx) PutAllocation(_ context.Context, a *models.Allocation) error {
	m := tx.memState
	id := a.CommitmentID
	prev, existed := m.allocations[id]
	cp := *a
	cp.Entries = append([]models.AllocationEntry(nil), a.Entries...)
	m.allocations[id] = cp
	tx.undo = append(tx.undo, func() {
		if existed {
			m.allocations[id] = prev
		} else {
			delete(m.allocations, id)
		}
	})
	return nil
}
