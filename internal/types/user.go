package types

// RegisterRequest represents the request body for user registration
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Username  string `json:"username" binding:"required,max=150,username"`
	FirstName string `json:"first_name" binding:"required,max=150"`
	LastName  string `json:"last_name" binding:"required,max=150"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
}

// RegisterResponse omits the subscription flag and avatar
type RegisterResponse struct {
	Email     string `json:"email"`
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type SetPasswordRequest struct {
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
	CurrentPassword string `json:"current_password" binding:"required"`
}

type AvatarRequest struct {
	Avatar string `json:"avatar"`
}

type AvatarResponse struct {
	Avatar string `json:"avatar"`
}

// UserResponse is the public representation of a user relative to the caller
type UserResponse struct {
	Email        string  `json:"email"`
	ID           uint    `json:"id"`
	Username     string  `json:"username"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	IsSubscribed bool    `json:"is_subscribed"`
	Avatar       *string `json:"avatar"`
}

// SubscriptionResponse is an author the caller follows, with a recipe preview
type SubscriptionResponse struct {
	UserResponse
	Recipes      []RecipeShortResponse `json:"recipes"`
	RecipesCount int64                 `json:"recipes_count"`
}
