package models

// CreateCommitmentRequest represents the request body for creating a commitment
type CreateCommitmentRequest struct {
	Amount int64           `json:"amount" binding:"required"`
	Asset  string          `json:"asset" binding:"required"`
	Rules  CommitmentRules `json:"rules"`
}

// UpdateValueRequest represents the request body for PUT /commitments/:id/value
type UpdateValueRequest struct {
	Value *int64 `json:"value" binding:"required"`
}

// AttestRequest represents the request body for POST /attestations
type AttestRequest struct {
	CommitmentID string             `json:"commitment_id" binding:"required"`
	Type         AttestationType    `json:"type" binding:"required"`
	Payload      AttestationPayload `json:"payload"`
	IsCompliant  bool               `json:"is_compliant"`
}

// BatchAttestRequest represents the request body for POST /attestations/batch
type BatchAttestRequest struct {
	Mode  string          `json:"mode"`
	Items []AttestRequest `json:"items" binding:"required"`
}

// RecordFeesRequest represents the request body for POST /commitments/:id/fees
type RecordFeesRequest struct {
	Amount *int64 `json:"amount" binding:"required"`
}

// RecordDrawdownRequest represents the request body for POST /commitments/:id/drawdown
type RecordDrawdownRequest struct {
	CurrentValue *int64 `json:"current_value" binding:"required"`
}

// RecorderRequest represents the request body for POST /recorders
type RecorderRequest struct {
	Recorder string `json:"recorder" binding:"required"`
}

// EmergencyModeRequest represents the request body for PUT /admin/emergency
type EmergencyModeRequest struct {
	Enabled bool `json:"enabled"`
}

// RegisterPoolRequest represents the request body for POST /pools
type RegisterPoolRequest struct {
	ID          uint32    `json:"id" binding:"required"`
	RiskLevel   RiskLevel `json:"risk_level" binding:"required"`
	APYBps      uint32    `json:"apy_bps"`
	MaxCapacity int64     `json:"max_capacity" binding:"required"`
}

// PoolStatusRequest represents the request body for PUT /pools/:id/status
type PoolStatusRequest struct {
	Active bool `json:"active"`
}

// PoolCapacityRequest represents the request body for PUT /pools/:id/capacity
type PoolCapacityRequest struct {
	MaxCapacity int64 `json:"max_capacity" binding:"required"`
}

// AllocateRequest represents the request body for POST /allocations
type AllocateRequest struct {
	CommitmentID string   `json:"commitment_id" binding:"required"`
	Amount       int64    `json:"amount" binding:"required"`
	Strategy     Strategy `json:"strategy" binding:"required"`
}

// ViolationsResponse is the body of GET /commitments/:id/violations
type ViolationsResponse struct {
	CommitmentID  string `json:"commitment_id"`
	HasViolations bool   `json:"has_violations"`
}

// ScoreResponse is the body of GET /commitments/:id/score
type ScoreResponse struct {
	CommitmentID string `json:"commitment_id"`
	Score        uint32 `json:"score"`
}

// AttestationListResponse is the body of GET /commitments/:id/attestations
type AttestationListResponse struct {
	CommitmentID string        `json:"commitment_id"`
	Count        int           `json:"count"`
	Attestations []Attestation `json:"attestations"`
}

// YieldResponse is the body of GET /allocations/:id/yield
type YieldResponse struct {
	CommitmentID string `json:"commitment_id"`
	AnnualYield  string `json:"annual_yield"`
}

// StatsResponse is the body of GET /stats
type StatsResponse struct {
	Ledger        LedgerStats     `json:"ledger"`
	Compliance    ComplianceStats `json:"compliance"`
	EmergencyMode bool            `json:"emergency_mode"`
}

// MutationResponse wraps the result of a state-changing call with the
// names of the events it published
type MutationResponse struct {
	Data   any      `json:"data"`
	Events []string `json:"events,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
