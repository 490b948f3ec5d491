package handlers

import (
	"net/http"

	"github.com/epeers/commitvault/internal/allocation"
	"github.com/epeers/commitvault/internal/models"
	"github.com/gin-gonic/gin"
)

// AllocationHandler handles pool registry and allocation endpoints
type AllocationHandler struct {
	engine *allocation.Engine
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(engine *allocation.Engine) *AllocationHandler {
	return &AllocationHandler{engine: engine}
}

// RegisterPool handles POST /pools
// @Summary Register a yield pool
// @Tags pools
// @Accept json
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param request body models.RegisterPoolRequest true "Pool"
// @Success 201 {object} models.MutationResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /pools [post]
func (h *AllocationHandler) RegisterPool(c *gin.Context) {
	var req models.RegisterPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, col := collect(c)
	p, err := h.engine.RegisterPool(ctx, callerID(c), req.ID, req.RiskLevel, req.APYBps, req.MaxCapacity)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusCreated, p, col)
}

// ListPools handles GET /pools
// @Summary List registered pools
// @Tags pools
// @Produce json
// @Success 200 {array} models.Pool
// @Router /pools [get]
func (h *AllocationHandler) ListPools(c *gin.Context) {
	pools, err := h.engine.GetAllPools(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pools)
}

// GetPool handles GET /pools/:id
// @Summary Get a pool
// @Tags pools
// @Produce json
// @Param id path int true "Pool ID"
// @Success 200 {object} models.Pool
// @Failure 404 {object} models.ErrorResponse
// @Router /pools/{id} [get]
func (h *AllocationHandler) GetPool(c *gin.Context) {
	id, ok := poolID(c)
	if !ok {
		return
	}
	p, err := h.engine.GetPool(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SetPoolStatus handles PUT /pools/:id/status
// @Summary Activate or deactivate a pool
// @Tags pools
// @Accept json
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param id path int true "Pool ID"
// @Param request body models.PoolStatusRequest true "Status"
// @Success 200 {object} models.MutationResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /pools/{id}/status [put]
func (h *AllocationHandler) SetPoolStatus(c *gin.Context) {
	id, ok := poolID(c)
	if !ok {
		return
	}
	var req models.PoolStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, col := collect(c)
	p, err := h.engine.SetPoolStatus(ctx, callerID(c), id, req.Active)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusOK, p, col)
}

// SetPoolCapacity handles PUT /pools/:id/capacity
// @Summary Change the capacity of a pool
// @Tags pools
// @Accept json
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param id path int true "Pool ID"
// @Param request body models.PoolCapacityRequest true "Capacity"
// @Success 200 {object} models.MutationResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /pools/{id}/capacity [put]
func (h *AllocationHandler) SetPoolCapacity(c *gin.Context) {
	id, ok := poolID(c)
	if !ok {
		return
	}
	var req models.PoolCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, col := collect(c)
	p, err := h.engine.SetPoolCapacity(ctx, callerID(c), id, req.MaxCapacity)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusOK, p, col)
}

// Allocate handles POST /allocations
// @Summary Allocate commitment capital across pools
// @Tags allocations
// @Accept json
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param request body models.AllocateRequest true "Allocation"
// @Success 201 {object} models.MutationResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /allocations [post]
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var req models.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, col := collect(c)
	a, err := h.engine.Allocate(ctx, callerID(c), req.CommitmentID, req.Amount, req.Strategy)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusCreated, a, col)
}

// Rebalance handles POST /allocations/:id/rebalance
// @Summary Re-plan an allocation against current pools
// @Tags allocations
// @Produce json
// @Param X-Caller-ID header string true "Caller identity"
// @Param id path string true "Commitment ID"
// @Success 200 {object} models.MutationResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /allocations/{id}/rebalance [post]
func (h *AllocationHandler) Rebalance(c *gin.Context) {
	ctx, col := collect(c)
	a, err := h.engine.Rebalance(ctx, callerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondMutation(c, http.StatusOK, a, col)
}

// GetAllocation handles GET /allocations/:id
// @Summary Get the allocation of a commitment
// @Tags allocations
// @Produce json
// @Param id path string true "Commitment ID"
// @Success 200 {object} models.Allocation
// @Failure 404 {object} models.ErrorResponse
// @Router /allocations/{id} [get]
func (h *AllocationHandler) GetAllocation(c *gin.Context) {
	a, err := h.engine.GetAllocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Yield handles GET /allocations/:id/yield
// @Summary Estimate the annual yield of an allocation
// @Tags allocations
// @Produce json
// @Param id path string true "Commitment ID"
// @Success 200 {object} models.YieldResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /allocations/{id}/yield [get]
func (h *AllocationHandler) Yield(c *gin.Context) {
	id := c.Param("id")
	y, err := h.engine.EstimateYield(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.YieldResponse{CommitmentID: id, AnnualYield: y.String()})
}
