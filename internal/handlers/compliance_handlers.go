package handlers

import (
	"net/http"

	"github.com/epeers/commitvault/internal/compliance"
	"github.com/epeers/commitvault/internal/models"
	"github.com/gin-gonic/gin"
)

// ComplianceHandler handles attestation and health endpoints
type ComplianceHandler struct {
	engine *compliance.Engine
}

// NewComplianceHandler creates a new ComplianceHandler
func NewComplianceHandler(engine *compliance.Engine) *ComplianceHandler {
	return &ComplianceHandler{engine: engine}
}

// Attest handles POST /attestations
// @Summary Submit an attestation
// @Description Records an attestation for a commitment. The caller must be a recorder or the admin.
// @Tags compliance
// @Accept json
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param request body models.AttestRequest true "Attestation"
// @Success 201 {object} models.MutationResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /attestations [post]
func (h *ComplianceHandler) Attest(c *gin.Context) {
	var req models.AttestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, col := collect(c)
	a, err := h.engine.Attest(ctx, callerID(c), req.CommitmentID, req.Type, req.Payload, req.IsCompliant)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusCreated, a, col)
}

// BatchAttest handles POST /attestations/batch
// @Summary Submit several attestations
// @Description In atomic mode any invalid item rejects the whole batch. In best_effort mode valid items are recorded and the rest reported.
// @Tags compliance
// @Accept json
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param request body models.BatchAttestRequest true "Batch"
// @Success 200 {object} models.MutationResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /attestations/batch [post]
func (h *ComplianceHandler) BatchAttest(c *gin.Context) {
	var req models.BatchAttestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	mode := compliance.BatchMode(req.Mode)
	if mode == "" {
		mode = compliance.BatchAtomic
	}
	items := make([]compliance.BatchItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = compliance.BatchItem{
			CommitmentID: it.CommitmentID,
			Type:         it.Type,
			Payload:      it.Payload,
			IsCompliant:  it.IsCompliant,
		}
	}

	ctx, col := collect(c)
	res, err := h.engine.BatchAttest(ctx, callerID(c), items, mode)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusOK, res, col)
}

// ListAttestations handles GET /commitments/:id/attestations
// @Summary List the attestations of a commitment
// @Tags compliance
// @Produce json
// @Param id path string true "Commitment ID"
// @Success 200 {object} models.AttestationListResponse
// @Router /commitments/{id}/attestations [get]
func (h *ComplianceHandler) ListAttestations(c *gin.Context) {
	id := c.Param("id")
	list, err := h.engine.GetAttestations(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AttestationListResponse{
		CommitmentID: id,
		Count:        len(list),
		Attestations: list,
	})
}

// Health handles GET /commitments/:id/health
// @Summary Get health metrics of a commitment
// @Tags compliance
// @Produce json
// @Param id path string true "Commitment ID"
// @Success 200 {object} models.HealthMetrics
// @Failure 404 {object} models.ErrorResponse
// @Router /commitments/{id}/health [get]
func (h *ComplianceHandler) Health(c *gin.Context) {
	m, err := h.engine.GetHealthMetrics(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Compliance handles GET /commitments/:id/compliance
// @Summary Evaluate whether a commitment is compliant
// @Tags compliance
// @Produce json
// @Param id path string true "Commitment ID"
// @Success 200 {object} compliance.ComplianceReport
// @Failure 404 {object} models.ErrorResponse
// @Router /commitments/{id}/compliance [get]
func (h *ComplianceHandler) Compliance(c *gin.Context) {
	r, err := h.engine.ComplianceReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// Score handles GET /commitments/:id/score
// @Summary Recompute the compliance score of a commitment
// @Tags compliance
// @Produce json
// @Param id path string true "Commitment ID"
// @Success 200 {object} models.ScoreResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /commitments/{id}/score [get]
func (h *ComplianceHandler) Score(c *gin.Context) {
	id := c.Param("id")
	score, err := h.engine.CalculateComplianceScore(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ScoreResponse{CommitmentID: id, Score: score})
}

// RecordFees handles POST /commitments/:id/fees
// @Summary Record generated fees
// @Tags compliance
// @Accept json
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param id path string true "Commitment ID"
// @Param request body models.RecordFeesRequest true "Fee amount"
// @Success 200 {object} models.MutationResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /commitments/{id}/fees [post]
func (h *ComplianceHandler) RecordFees(c *gin.Context) {
	var req models.RecordFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, col := collect(c)
	state, err := h.engine.RecordFees(ctx, callerID(c), c.Param("id"), *req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusOK, state, col)
}

// RecordDrawdown handles POST /commitments/:id/drawdown
// @Summary Record an observed value and its drawdown
// @Tags compliance
// @Accept json
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param id path string true "Commitment ID"
// @Param request body models.RecordDrawdownRequest true "Observed value"
// @Success 200 {object} models.MutationResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /commitments/{id}/drawdown [post]
func (h *ComplianceHandler) RecordDrawdown(c *gin.Context) {
	var req models.RecordDrawdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, col := collect(c)
	state, err := h.engine.RecordDrawdown(ctx, callerID(c), c.Param("id"), *req.CurrentValue)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusOK, state, col)
}

// AddRecorder handles POST /recorders
// @Summary Authorise a recorder
// @Tags admin
// @Accept json
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param request body models.RecorderRequest true "Recorder"
// @Success 200 {object} models.MutationResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /recorders [post]
func (h *ComplianceHandler) AddRecorder(c *gin.Context) {
	var req models.RecorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, col := collect(c)
	if err := h.engine.AddRecorder(ctx, callerID(c), req.Recorder); err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusOK, gin.H{"recorder": req.Recorder, "authorized": true}, col)
}

// RemoveRecorder handles DELETE /recorders/:recorder
// @Summary Revoke a recorder
// @Tags admin
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param recorder path string true "Recorder ID"
// @Success 200 {object} models.MutationResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /recorders/{recorder} [delete]
func (h *ComplianceHandler) RemoveRecorder(c *gin.Context) {
	who := c.Param("recorder")
	ctx, col := collect(c)
	if err := h.engine.RemoveRecorder(ctx, callerID(c), who); err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusOK, gin.H{"recorder": who, "authorized": false}, col)
}

// RecorderStats handles GET /recorders/:recorder
// @Summary Get a recorder's status and submission count
// @Tags compliance
// @Produce json
// @Param recorder path string true "Recorder ID"
// @Success 200 {object} map[string]interface{}
// @Router /recorders/{recorder} [get]
func (h *ComplianceHandler) RecorderStats(c *gin.Context) {
	who := c.Param("recorder")
	n, err := h.engine.RecorderStats(c.Request.Context(), who)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recorder":     who,
		"authorized":   h.engine.IsRecorder(who),
		"attestations": n,
	})
}
