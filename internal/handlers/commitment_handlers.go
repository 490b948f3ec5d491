package handlers

import (
	"net/http"
	"strconv"

	"github.com/epeers/commitvault/internal/compliance"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/ledger"
	"github.com/epeers/commitvault/internal/models"
	"github.com/gin-gonic/gin"
)

// CommitmentHandler handles commitment lifecycle endpoints
type CommitmentHandler struct {
	ledger     *ledger.Ledger
	compliance *compliance.Engine
	events     events.Lister
}

// NewCommitmentHandler creates a new CommitmentHandler. lister may be nil
// when no sink can replay events.
func NewCommitmentHandler(l *ledger.Ledger, c *compliance.Engine, lister events.Lister) *CommitmentHandler {
	return &CommitmentHandler{
		ledger:     l,
		compliance: c,
		events:     lister,
	}
}

// Create handles POST /commitments
// @Summary Create a commitment
// @Description Lock funds from the caller under the given rules
// @Tags commitments
// @Accept json
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param request body models.CreateCommitmentRequest true "Commitment parameters"
// @Success 201 {object} models.MutationResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /commitments [post]
func (h *CommitmentHandler) Create(c *gin.Context) {
	var req models.CreateCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, col := collect(c)
	commitment, err := h.ledger.CreateCommitment(ctx, callerID(c), req.Amount, req.Asset, req.Rules)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusCreated, commitment, col)
}

// Get handles GET /commitments/:id
// @Summary Get a commitment
// @Tags commitments
// @Produce json
// @Param id path string true "Commitment ID"
// @Success 200 {object} models.Commitment
// @Failure 404 {object} models.ErrorResponse
// @Router /commitments/{id} [get]
func (h *CommitmentHandler) Get(c *gin.Context) {
	commitment, err := h.ledger.GetCommitment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, commitment)
}

// UpdateValue handles PUT /commitments/:id/value
// @Summary Record a new current value
// @Tags commitments
// @Accept json
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param id path string true "Commitment ID"
// @Param request body models.UpdateValueRequest true "New value"
// @Success 200 {object} models.MutationResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /commitments/{id}/value [put]
func (h *CommitmentHandler) UpdateValue(c *gin.Context) {
	var req models.UpdateValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, col := collect(c)
	commitment, err := h.ledger.UpdateValue(ctx, callerID(c), c.Param("id"), *req.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusOK, commitment, col)
}

// CheckViolations handles GET /commitments/:id/violations
// @Summary Check whether a commitment violates its rules
// @Tags commitments
// @Produce json
// @Param id path string true "Commitment ID"
// @Success 200 {object} models.ViolationsResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /commitments/{id}/violations [get]
func (h *CommitmentHandler) CheckViolations(c *gin.Context) {
	id := c.Param("id")
	violated, err := h.ledger.CheckViolations(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ViolationsResponse{CommitmentID: id, HasViolations: violated})
}

// ViolationDetails handles GET /commitments/:id/violations/details
// @Summary Get the violation breakdown of a commitment
// @Tags commitments
// @Produce json
// @Param id path string true "Commitment ID"
// @Success 200 {object} models.ViolationDetails
// @Failure 404 {object} models.ErrorResponse
// @Router /commitments/{id}/violations/details [get]
func (h *CommitmentHandler) ViolationDetails(c *gin.Context) {
	details, err := h.ledger.GetViolationDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// Settle handles POST /commitments/:id/settle
// @Summary Settle an expired commitment
// @Tags commitments
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param id path string true "Commitment ID"
// @Success 200 {object} models.MutationResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /commitments/{id}/settle [post]
func (h *CommitmentHandler) Settle(c *gin.Context) {
	ctx, col := collect(c)
	settlement, err := h.ledger.Settle(ctx, callerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusOK, settlement, col)
}

// EarlyExit handles POST /commitments/:id/early-exit
// @Summary Exit a commitment before expiry, paying the penalty
// @Tags commitments
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param id path string true "Commitment ID"
// @Success 200 {object} models.MutationResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /commitments/{id}/early-exit [post]
func (h *CommitmentHandler) EarlyExit(c *gin.Context) {
	ctx, col := collect(c)
	settlement, err := h.ledger.EarlyExit(ctx, callerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusOK, settlement, col)
}

// ListByOwner handles GET /owners/:owner/commitments
// @Summary List an owner's commitments
// @Tags commitments
// @Produce json
// @Param owner path string true "Owner ID"
// @Success 200 {array} models.Commitment
// @Router /owners/{owner}/commitments [get]
func (h *CommitmentHandler) ListByOwner(c *gin.Context) {
	list, err := h.ledger.ListOwnerCommitments(c.Request.Context(), c.Param("owner"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Stats handles GET /stats
// @Summary Protocol-wide counters
// @Tags commitments
// @Produce json
// @Success 200 {object} models.StatsResponse
// @Router /stats [get]
func (h *CommitmentHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	ledgerStats, err := h.ledger.Stats(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	complianceStats, err := h.compliance.ProtocolStats(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StatsResponse{
		Ledger:        ledgerStats,
		Compliance:    complianceStats,
		EmergencyMode: h.ledger.EmergencyMode(),
	})
}

// Events handles GET /commitments/:id/events
// @Summary Replay the recorded events of a commitment
// @Tags commitments
// @Produce json
// @Param id path string true "Commitment ID"
// @Param limit query int false "Maximum number of events" default(100)
// @Success 200 {array} events.Event
// @Failure 501 {object} models.ErrorResponse
// @Router /commitments/{id}/events [get]
func (h *CommitmentHandler) Events(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusNotImplemented, models.ErrorResponse{
			Error:   "not_implemented",
			Message: "no event recorder configured",
		})
		return
	}
	limit := 100
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := h.events.ListByCommitment(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// SetEmergencyMode handles PUT /admin/emergency
// @Summary Toggle emergency mode
// @Description While enabled no new commitments can be created
// @Tags admin
// @Accept json
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param request body models.EmergencyModeRequest true "Emergency mode"
// @Success 200 {object} models.MutationResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/emergency [put]
func (h *CommitmentHandler) SetEmergencyMode(c *gin.Context) {
	var req models.EmergencyModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, col := collect(c)
	if err := h.ledger.SetEmergencyMode(ctx, callerID(c), req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusOK, gin.H{"emergency_mode": req.Enabled}, col)
}
