package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

const revokedTokenPrefix = "revoked_token:"

type AuthService struct {
	db        *gorm.DB
	jwtSecret string
	ttl       time.Duration
	// revoked is optional; without it logout only succeeds client-side
	revoked *redis.Client
}

func NewAuthService(db *gorm.DB, jwtSecret string, ttl time.Duration, revoked *redis.Client) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		db:        db,
		jwtSecret: jwtSecret,
		ttl:       ttl,
		revoked:   revoked,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}

	return s.GenerateToken(&user)
}

// GenerateToken issues a signed HS256 token for user
func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &types.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*types.TokenClaims, error) {
	claims := &types.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	if s.revoked != nil && claims.ID != "" {
		n, err := s.revoked.Exists(ctx, revokedTokenPrefix+claims.ID).Result()
		if err != nil {
			// fail open on redis errors
			logger.Warn(ctx).Err(err).Msg("token revocation lookup failed")
		} else if n > 0 {
			return nil, ErrInvalidToken
		}
	}

	return claims, nil
}

// Logout revokes the token until it would have expired anyway
func (s *AuthService) Logout(ctx context.Context, claims *types.TokenClaims) error {
	if s.revoked == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := s.ttl
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.Set(ctx, revokedTokenPrefix+claims.ID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// MaxPasswordBytes is the longest password bcrypt accepts
const MaxPasswordBytes = 72

// passwordTooLong reports a password bcrypt would reject. Multi-byte
// characters count by their encoded length.
func passwordTooLong(field, password string) error {
	if len(password) <= MaxPasswordBytes {
		return nil
	}
	return fieldError(field, fmt.Sprintf("Ensure this field has no more than %d bytes.", MaxPasswordBytes))
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
