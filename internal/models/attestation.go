package models

// AttestationType classifies an attestation.
type AttestationType string

const (
	AttestationHealthCheck   AttestationType = "health_check"
	AttestationViolation     AttestationType = "violation"
	AttestationFeeGeneration AttestationType = "fee_generation"
	AttestationDrawdown      AttestationType = "drawdown"
)

// Valid reports whether t is a known attestation type.
func (t AttestationType) Valid() bool {
	switch t {
	case AttestationHealthCheck, AttestationViolation, AttestationFeeGeneration, AttestationDrawdown:
		return true
	}
	return false
}

// PayloadVersion is the current attestation payload schema version.
const PayloadVersion = 1

// Severity grades a violation.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// HealthCheckPayload is carried by health_check attestations.
type HealthCheckPayload struct {
	Note          string `json:"note,omitempty"`
	ObservedValue int64  `json:"observed_value"`
	Violated      bool   `json:"violated"`
}

// ViolationPayload is carried by violation attestations.
type ViolationPayload struct {
	ViolationType string   `json:"violation_type"`
	Severity      Severity `json:"severity"`
}

// FeePayload is carried by fee_generation attestations.
type FeePayload struct {
	FeeAmount int64 `json:"fee_amount"`
}

// DrawdownPayload is carried by drawdown attestations.
type DrawdownPayload struct {
	DrawdownPercent int64 `json:"drawdown_percent"`
	MaxLossPercent  int64 `json:"max_loss_percent"`
	CurrentValue    int64 `json:"current_value"`
}

// AttestationPayload is a versioned union; exactly the member matching the
// attestation type is set.
type AttestationPayload struct {
	Version     int                 `json:"version"`
	HealthCheck *HealthCheckPayload `json:"health_check,omitempty"`
	Violation   *ViolationPayload   `json:"violation,omitempty"`
	Fee         *FeePayload         `json:"fee,omitempty"`
	Drawdown    *DrawdownPayload    `json:"drawdown,omitempty"`
}

// Clone returns a copy that shares no pointers with p
func (p AttestationPayload) Clone() AttestationPayload {
	out := AttestationPayload{Version: p.Version}
	if p.HealthCheck != nil {
		v := *p.HealthCheck
		out.HealthCheck = &v
	}
	if p.Violation != nil {
		v := *p.Violation
		out.Violation = &v
	}
	if p.Fee != nil {
		v := *p.Fee
		out.Fee = &v
	}
	if p.Drawdown != nil {
		v := *p.Drawdown
		out.Drawdown = &v
	}
	return out
}

// Attestation is an immutable, append-only record about a commitment.
type Attestation struct {
	CommitmentID string             `json:"commitment_id"`
	Sequence     uint64             `json:"sequence"`
	Timestamp    int64              `json:"timestamp"`
	Type         AttestationType    `json:"type"`
	Payload      AttestationPayload `json:"payload"`
	IsCompliant  bool               `json:"is_compliant"`
	SubmittedBy  string             `json:"submitted_by"`
}

// Clone returns a copy with its own payload
func (a Attestation) Clone() Attestation {
	a.Payload = a.Payload.Clone()
	return a
}

// CountsAsViolation reports whether the attestation costs compliance score.
func (a Attestation) CountsAsViolation() bool {
	return !a.IsCompliant || a.Type == AttestationViolation
}

// HealthState is the per-commitment monitoring state.
// ComplianceScore 0 means "not yet calculated".
type HealthState struct {
	CommitmentID       string `json:"commitment_id"`
	FeesGenerated      int64  `json:"fees_generated"`
	VolatilityExposure int64  `json:"volatility_exposure"`
	DrawdownPercent    int64  `json:"drawdown_percent"`
	LastAttestation    int64  `json:"last_attestation"`
	ComplianceScore    uint32 `json:"compliance_score"`
}

// HealthMetrics joins HealthState with a fresh valuation.
type HealthMetrics struct {
	CommitmentID       string `json:"commitment_id"`
	InitialValue       int64  `json:"initial_value"`
	CurrentValue       int64  `json:"current_value"`
	DrawdownPercent    int64  `json:"drawdown_percent"`
	FeesGenerated      int64  `json:"fees_generated"`
	VolatilityExposure int64  `json:"volatility_exposure"`
	LastAttestation    int64  `json:"last_attestation"`
	ComplianceScore    uint32 `json:"compliance_score"`
}

// ComplianceStats are protocol-wide monitoring counters.
type ComplianceStats struct {
	TotalAttestations uint64 `json:"total_attestations"`
	TotalViolations   uint64 `json:"total_violations"`
	TotalFees         int64  `json:"total_fees"`
}
