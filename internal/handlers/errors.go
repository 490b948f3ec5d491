package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/events"
	"github.com/epeers/commitvault/internal/middleware"
	"github.com/epeers/commitvault/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// statusFor maps an error code to an HTTP status
func statusFor(code int) int {
	switch {
	case code == errs.ErrUnauthorized.Code:
		return http.StatusUnauthorized
	case code == errs.ErrRateLimited.Code:
		return http.StatusTooManyRequests
	case code == errs.ErrNotFound.Code:
		return http.StatusNotFound
	case code == errs.ErrReentrancy.Code:
		return http.StatusConflict
	}
	switch errs.CategoryOf(code) {
	case errs.CategoryValidation:
		return http.StatusBadRequest
	case errs.CategoryAuthorization:
		return http.StatusForbidden
	case errs.CategoryState:
		return http.StatusConflict
	case errs.CategoryResource:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError writes err as an ErrorResponse
func respondError(c *gin.Context, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		log.WithError(err).Error("unclassified error")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
			Code:    errs.ErrStorage.Code,
		})
		return
	}
	status := statusFor(e.Code)
	if status >= 500 {
		log.WithError(err).Error("request failed")
	}
	c.JSON(status, models.ErrorResponse{
		Error:   string(e.Category()),
		Message: err.Error(),
		Code:    e.Code,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "bad_request",
		Message: msg,
	})
}

// callerID returns the authenticated caller. Routes that need one are
// behind middleware.RequireCaller.
func callerID(c *gin.Context) string {
	id, _ := middleware.GetCallerID(c)
	return id
}

// collect returns a request context that records published events
func collect(c *gin.Context) (context.Context, *events.Collector) {
	return events.NewCollectorContext(c.Request.Context())
}

func respondMutation(c *gin.Context, status int, data any, col *events.Collector) {
	c.JSON(status, models.MutationResponse{Data: data, Events: col.Names()})
}

func poolID(c *gin.Context) (uint32, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		badRequest(c, "invalid pool ID")
		return 0, false
	}
	return uint32(id), true
}
