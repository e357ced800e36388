package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/pkg/logger"
)

// ErrorResponse is the body of unexpected failures
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Recovery turns panics into a JSON 500 and logs them
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error(c.Request.Context()).
			Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Detail: "Internal server error."})
	})
}
