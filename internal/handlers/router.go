package handlers

import (
	"net/http"

	"github.com/epeers/commitvault/internal/allocation"
	"github.com/epeers/commitvault/internal/compliance"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/ledger"
	"github.com/epeers/commitvault/internal/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps holds the components served over HTTP
type Deps struct {
	Ledger     *ledger.Ledger
	Compliance *compliance.Engine
	Allocation *allocation.Engine
	Events     events.Lister
}

// NewRouter builds the gin engine with every route registered
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(), middleware.Authenticate())

	commitments := NewCommitmentHandler(d.Ledger, d.Compliance, d.Events)
	complianceHandler := NewComplianceHandler(d.Compliance)
	allocations := NewAllocationHandler(d.Allocation)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/v1")

	// Reads
	v1.GET("/stats", commitments.Stats)
	v1.GET("/commitments/:id", commitments.Get)
	v1.GET("/commitments/:id/violations", commitments.CheckViolations)
	v1.GET("/commitments/:id/violations/details", commitments.ViolationDetails)
	v1.GET("/commitments/:id/events", commitments.Events)
	v1.GET("/commitments/:id/attestations", complianceHandler.ListAttestations)
	v1.GET("/commitments/:id/health", complianceHandler.Health)
	v1.GET("/commitments/:id/compliance", complianceHandler.Compliance)
	v1.GET("/commitments/:id/score", complianceHandler.Score)
	v1.GET("/owners/:owner/commitments", commitments.ListByOwner)
	v1.GET("/recorders/:recorder", complianceHandler.RecorderStats)
	v1.GET("/pools", allocations.ListPools)
	v1.GET("/pools/:id", allocations.GetPool)
	v1.GET("/allocations/:id", allocations.GetAllocation)
	v1.GET("/allocations/:id/yield", allocations.Yield)

	// Writes need a caller identity
	w := v1.Group("", middleware.RequireCaller())
	w.POST("/commitments", commitments.Create)
	w.PUT("/commitments/:id/value", commitments.UpdateValue)
	w.POST("/commitments/:id/settle", commitments.Settle)
	w.POST("/commitments/:id/early-exit", commitments.EarlyExit)
	w.POST("/commitments/:id/fees", complianceHandler.RecordFees)
	w.POST("/commitments/:id/drawdown", complianceHandler.RecordDrawdown)
	w.POST("/attestations", complianceHandler.Attest)
	w.POST("/attestations/batch", complianceHandler.BatchAttest)
	w.POST("/recorders", complianceHandler.AddRecorder)
	w.DELETE("/recorders/:recorder", complianceHandler.RemoveRecorder)
	w.PUT("/admin/emergency", commitments.SetEmergencyMode)
	w.POST("/pools", allocations.RegisterPool)
	w.PUT("/pools/:id/status", allocations.SetPoolStatus)
	w.PUT("/pools/:id/capacity", allocations.SetPoolCapacity)
	w.POST("/allocations", allocations.Allocate)
	w.POST("/allocations/:id/rebalance", allocations.Rebalance)

	return router
}
