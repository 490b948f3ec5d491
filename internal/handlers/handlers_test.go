package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/epeers/commitvault/internal/allocation"
	"github.com/epeers/commitvault/internal/compliance"
	"github.com/epeers/commitvault/internal/custody"
	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/ledger"
	"github.com/epeers/commitvault/internal/models"
	"github.com/epeers/commitvault/internal/repository"
	"github.com/epeers/commitvault/internal/util"
	"github.com/gin-gonic/gin"
)

const adminID = "admin"

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	clock := util.NewManualClock(1_700_000_000)
	pub := events.NewPublisher(events.NoopSink{})
	vault := custody.NewVault()
	if err := vault.Deposit(context.Background(), "alice", "XLM", 10_000); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	l := ledger.New(store, vault, custody.NewRegistry(), nil, clock, pub)
	c := compliance.New(store, l, nil, clock, pub)
	a := allocation.New(store, l, nil, clock, pub)
	for name, initFn := range map[string]func(string) error{
		"ledger": l.Initialize, "compliance": c.Initialize, "allocation": a.Initialize,
	} {
		if err := initFn(adminID); err != nil {
			t.Fatalf("Initialize %s failed: %v", name, err)
		}
	}

	return NewRouter(Deps{Ledger: l, Compliance: c, Allocation: a})
}

func doRequest(router *gin.Engine, method, path, caller string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-Caller-ID", caller)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// createCommitment posts a commitment for alice and returns its ID
func createCommitment(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doRequest(router, "POST", "/v1/commitments", "alice", models.CreateCommitmentRequest{
		Amount: 1000,
		Asset:  "XLM",
		Rules: models.CommitmentRules{
			DurationDays:   30,
			MaxLossPercent: 10,
			CommitmentType: models.CommitmentTypeBalanced,
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Data   models.Commitment `json:"data"`
		Events []string          `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Data.ID == "" || response.Data.Principal != 1000 {
		t.Fatalf("unexpected commitment %+v", response.Data)
	}
	found := false
	for _, name := range response.Events {
		if name == events.CommitmentCreated {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in events, got %v", events.CommitmentCreated, response.Events)
	}
	return response.Data.ID
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var e models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("Failed to unmarshal error: %v (%s)", err, w.Body.String())
	}
	return e
}

func TestCommitmentLifecycle(t *testing.T) {
	router := setupTestRouter(t)
	id := createCommitment(t, router)

	w := doRequest(router, "GET", "/v1/commitments/"+id, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	w = doRequest(router, "PUT", "/v1/commitments/"+id+"/value", "alice", map[string]int64{"value": 850})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(router, "GET", "/v1/commitments/"+id+"/violations", "", nil)
	var v models.ViolationsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !v.HasViolations {
		t.Errorf("15%% loss against a 10%% limit should violate")
	}

	w = doRequest(router, "GET", "/v1/owners/alice/commitments", "", nil)
	var list []models.Commitment
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Errorf("expected one commitment for alice, got %s", w.Body.String())
	}

	w = doRequest(router, "GET", "/v1/stats", "", nil)
	var stats models.StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if stats.Ledger.TotalCommitments != 1 || stats.Ledger.TotalValueLocked != 850 {
		t.Errorf("unexpected stats %+v", stats.Ledger)
	}
}

func TestWritesRequireCaller(t *testing.T) {
	router := setupTestRouter(t)
	w := doRequest(router, "POST", "/v1/commitments", "", models.CreateCommitmentRequest{Amount: 1, Asset: "XLM"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	router := setupTestRouter(t)
	id := createCommitment(t, router)

	tests := []struct {
		name   string
		method string
		path   string
		caller string
		body   any
		status int
		code   int
	}{
		{"missing commitment", "GET", "/v1/commitments/nope", "", nil, http.StatusNotFound, errs.ErrNotFound.Code},
		{"negative value", "PUT", "/v1/commitments/" + id + "/value", "alice", map[string]int64{"value": -1}, http.StatusBadRequest, errs.ErrInvalidAmount.Code},
		{"settle before expiry", "POST", "/v1/commitments/" + id + "/settle", "alice", nil, http.StatusConflict, errs.ErrWrongState.Code},
		{"early exit by stranger", "POST", "/v1/commitments/" + id + "/early-exit", "mallory", nil, http.StatusForbidden, errs.ErrNotOwner.Code},
		{"attest without capability", "POST", "/v1/attestations", "mallory", models.AttestRequest{
			CommitmentID: id,
			Type:         models.AttestationFeeGeneration,
			Payload:      models.AttestationPayload{Version: models.PayloadVersion, Fee: &models.FeePayload{FeeAmount: 5}},
		}, http.StatusUnauthorized, errs.ErrUnauthorized.Code},
		{"emergency mode by non-admin", "PUT", "/v1/admin/emergency", "alice", map[string]bool{"enabled": true}, http.StatusForbidden, errs.ErrNotAdmin.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, tt.method, tt.path, tt.caller, tt.body)
			if w.Code != tt.status {
				t.Fatalf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if e := decodeError(t, w); e.Code != tt.code {
				t.Errorf("Expected code %d, got %d", tt.code, e.Code)
			}
		})
	}
}

func TestAttestAndScore(t *testing.T) {
	router := setupTestRouter(t)
	id := createCommitment(t, router)

	w := doRequest(router, "POST", "/v1/recorders", adminID, models.RecorderRequest{Recorder: "oracle"})
	if w.Code != http.StatusOK {
		t.Fatalf("AddRecorder: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(router, "POST", "/v1/attestations/batch", "oracle", models.BatchAttestRequest{
		Mode: string(compliance.BatchBestEffort),
		Items: []models.AttestRequest{
			{
				CommitmentID: id,
				Type:         models.AttestationFeeGeneration,
				Payload:      models.AttestationPayload{Version: models.PayloadVersion, Fee: &models.FeePayload{FeeAmount: 5}},
				IsCompliant:  true,
			},
			{CommitmentID: "missing", Type: models.AttestationHealthCheck, IsCompliant: true},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("BatchAttest: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var batch struct {
		Data compliance.BatchResult `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &batch); err != nil {
		t.Fatalf("Failed to unmarshal batch: %v", err)
	}
	if batch.Data.Succeeded != 1 || batch.Data.Failed != 1 {
		t.Errorf("unexpected batch result %+v", batch.Data)
	}

	w = doRequest(router, "GET", "/v1/commitments/"+id+"/attestations", "", nil)
	var list models.AttestationListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || list.Count != 1 {
		t.Errorf("expected one attestation, got %s", w.Body.String())
	}

	w = doRequest(router, "GET", "/v1/recorders/oracle", "", nil)
	var rec struct {
		Authorized   bool   `json:"authorized"`
		Attestations uint64 `json:"attestations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil || !rec.Authorized || rec.Attestations != 1 {
		t.Errorf("unexpected recorder stats %s", w.Body.String())
	}

	w = doRequest(router, "GET", "/v1/commitments/"+id+"/score", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Score: expected 200, got %d", w.Code)
	}
}

func TestPoolsAndAllocation(t *testing.T) {
	router := setupTestRouter(t)
	id := createCommitment(t, router)

	pools := []models.RegisterPoolRequest{
		{ID: 1, RiskLevel: models.RiskLow, APYBps: 500, MaxCapacity: 10_000},
		{ID: 2, RiskLevel: models.RiskMedium, APYBps: 1000, MaxCapacity: 10_000},
		{ID: 3, RiskLevel: models.RiskHigh, APYBps: 2000, MaxCapacity: 10_000},
	}
	for _, p := range pools {
		w := doRequest(router, "POST", "/v1/pools", adminID, p)
		if w.Code != http.StatusCreated {
			t.Fatalf("RegisterPool %d: expected 201, got %d: %s", p.ID, w.Code, w.Body.String())
		}
	}

	w := doRequest(router, "GET", "/v1/pools/abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid pool ID: expected 400, got %d", w.Code)
	}

	w = doRequest(router, "POST", "/v1/allocations", "alice", models.AllocateRequest{
		CommitmentID: id, Amount: 1000, Strategy: models.StrategyBalanced,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Allocate: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(router, "GET", "/v1/allocations/"+id, "", nil)
	var alloc models.Allocation
	if err := json.Unmarshal(w.Body.Bytes(), &alloc); err != nil {
		t.Fatalf("Failed to unmarshal allocation: %v", err)
	}
	if alloc.TotalAllocated != 1000 || len(alloc.Entries) != 3 {
		t.Errorf("unexpected allocation %+v", alloc)
	}

	// 400*5% + 400*10% + 200*20%
	w = doRequest(router, "GET", "/v1/allocations/"+id+"/yield", "", nil)
	var y models.YieldResponse
	if err := json.Unmarshal(w.Body.Bytes(), &y); err != nil {
		t.Fatalf("Failed to unmarshal yield: %v", err)
	}
	if y.AnnualYield != "100" {
		t.Errorf("Expected yield 100, got %s", y.AnnualYield)
	}

	w = doRequest(router, "POST", "/v1/allocations", "alice", models.AllocateRequest{
		CommitmentID: id, Amount: 1000, Strategy: models.StrategyBalanced,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("second allocation: expected 409, got %d", w.Code)
	}
}

func TestEventsWithoutRecorder(t *testing.T) {
	router := setupTestRouter(t)
	w := doRequest(router, "GET", "/v1/commitments/x/events", "", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("Expected status 501, got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[*errs.Error]int{
		errs.ErrInvalidAmount:       http.StatusBadRequest,
		errs.ErrUnauthorized:        http.StatusUnauthorized,
		errs.ErrNotOwner:            http.StatusForbidden,
		errs.ErrRateLimited:         http.StatusTooManyRequests,
		errs.ErrWrongState:          http.StatusConflict,
		errs.ErrNotFound:            http.StatusNotFound,
		errs.ErrInsufficientBalance: http.StatusUnprocessableEntity,
		errs.ErrStorage:             http.StatusInternalServerError,
	}
	for e, want := range tests {
		if got := statusFor(e.Code); got != want {
			t.Errorf("statusFor(%d) = %d, want %d", e.Code, got, want)
		}
	}
}
