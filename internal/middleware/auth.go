package middleware

import (
	"net/http"
	"strings"

	"github.com/epeers/commitvault/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	CallerIDKey    = "caller_id"
	CallerIDHeader = "X-Caller-ID"
)

// Authenticate is a stubbed authentication middleware that takes the caller
// identity from the X-Caller-ID header. Signature checks happen upstream.
func Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID := strings.TrimSpace(c.GetHeader(CallerIDHeader))
		if callerID == "" {
			c.Next()
			return
		}

		c.Set(CallerIDKey, callerID)
		c.Next()
	}
}

// GetCallerID retrieves the caller ID from the context
func GetCallerID(c *gin.Context) (string, bool) {
	callerID, exists := c.Get(CallerIDKey)
	if !exists {
		return "", false
	}
	id, ok := callerID.(string)
	return id, ok && id != ""
}

// RequireCaller ensures a caller is authenticated
func RequireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := GetCallerID(c); !exists {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "unauthorized",
				Message: "authentication required: set " + CallerIDHeader,
				Code:    100,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
