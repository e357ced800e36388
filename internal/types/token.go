package types

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims represents the claims in a JWT token. RegisteredClaims.ID carries
// the token id used for logout revocation.
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// TokenResponse is returned by the login endpoint
type TokenResponse struct {
	AuthToken string `json:"auth_token"`
}

// LoginRequest represents the token login body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
