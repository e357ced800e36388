package testhelpers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pageza/foodgram/backend/internal/types"
)

// MockTokenValidator is a testify mock of the auth middleware's validator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*types.TokenClaims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.TokenClaims), args.Error(1)
}

// Claims builds token claims for a user id
func Claims(userID uint, username string) *types.TokenClaims {
	return &types.TokenClaims{UserID: userID, Username: username}
}
