package service

import (
	"context"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// IAuthService defines the interface for authentication operations
type IAuthService interface {
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, claims *types.TokenClaims) error
	ValidateToken(ctx context.Context, token string) (*types.TokenClaims, error)
	GenerateToken(user *models.User) (string, error)
}

// IUserService defines user, avatar and subscription operations
type IUserService interface {
	Register(ctx context.Context, req *types.RegisterRequest) (*models.User, error)
	ListUsers(ctx context.Context, viewer uint, page, limit int) ([]types.UserResponse, int64, error)
	GetUser(ctx context.Context, viewer, id uint) (*types.UserResponse, error)
	SetPassword(ctx context.Context, userID uint, current, next string) error
	SetAvatar(ctx context.Context, userID uint, dataURI string) (string, error)
	DeleteAvatar(ctx context.Context, userID uint) error
	Subscribe(ctx context.Context, userID, authorID uint, recipesLimit int) (*types.SubscriptionResponse, error)
	Unsubscribe(ctx context.Context, userID, authorID uint) error
	Subscriptions(ctx context.Context, userID uint, page, limit, recipesLimit int) ([]types.SubscriptionResponse, int64, error)
}

// IRecipeService defines recipe operations
type IRecipeService interface {
	ListRecipes(ctx context.Context, viewer uint, f types.RecipeFilter) ([]types.RecipeResponse, int64, error)
	GetRecipe(ctx context.Context, viewer, id uint) (*types.RecipeResponse, error)
	CreateRecipe(ctx context.Context, authorID uint, req *types.RecipeWriteRequest) (*types.RecipeResponse, error)
	UpdateRecipe(ctx context.Context, actor, id uint, req *types.RecipeWriteRequest) (*types.RecipeResponse, error)
	DeleteRecipe(ctx context.Context, actor, id uint) error
	AddFavorite(ctx context.Context, userID, recipeID uint) (*types.RecipeShortResponse, error)
	RemoveFavorite(ctx context.Context, userID, recipeID uint) error
	AddToShoppingCart(ctx context.Context, userID, recipeID uint) (*types.RecipeShortResponse, error)
	RemoveFromShoppingCart(ctx context.Context, userID, recipeID uint) error
}

// ICatalogService defines read access to tags and ingredients
type ICatalogService interface {
	ListTags(ctx context.Context) ([]types.TagResponse, error)
	GetTag(ctx context.Context, id uint) (*types.TagResponse, error)
	ListIngredients(ctx context.Context, prefix string) ([]types.IngredientResponse, error)
	GetIngredient(ctx context.Context, id uint) (*types.IngredientResponse, error)
}

// IShortLinkService issues and resolves short links
type IShortLinkService interface {
	GetOrCreate(ctx context.Context, recipeID uint) (*models.ShortLink, error)
	Resolve(ctx context.Context, code string) (uint, error)
	URL(code string) string
}

// IShoppingListService renders the aggregated shopping list
type IShoppingListService interface {
	Render(ctx context.Context, userID uint) (string, error)
}

var (
	_ IAuthService         = (*AuthService)(nil)
	_ IUserService         = (*UserService)(nil)
	_ IRecipeService       = (*RecipeService)(nil)
	_ ICatalogService      = (*CatalogService)(nil)
	_ IShortLinkService    = (*ShortLinkService)(nil)
	_ IShoppingListService = (*ShoppingListService)(nil)
)
