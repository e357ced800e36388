package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/types"
)

const (
	ContextUserID = "user_id"
	ContextClaims = "claims"
)

// TokenValidator is an interface for validating auth tokens
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*types.TokenClaims, error)
}

// AuthMiddleware rejects requests without a valid token
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return authenticate(validator, true)
}

// OptionalAuth identifies the caller when a token is sent. A token that is
// sent but invalid is still rejected.
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return authenticate(validator, false)
}

func authenticate(validator TokenValidator, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
				return
			}
			c.Next()
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid authorization header format."})
			return
		}

		claims, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token."})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// bearerToken accepts "Token <t>" and "Bearer <t>"
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", false
	}
	switch strings.ToLower(parts[0]) {
	case "token", "bearer":
		return parts[1], true
	}
	return "", false
}

// UserID returns the authenticated user id, or 0 for anonymous requests
func UserID(c *gin.Context) uint {
	id, _ := c.Get(ContextUserID)
	uid, _ := id.(uint)
	return uid
}

// Claims returns the validated token claims, or nil
func Claims(c *gin.Context) *types.TokenClaims {
	v, _ := c.Get(ContextClaims)
	claims, _ := v.(*types.TokenClaims)
	return claims
}
