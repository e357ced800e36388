package types

// IngredientAmount is one ingredient reference in a recipe write request
type IngredientAmount struct {
	ID     uint `json:"id"`
	Amount int  `json:"amount"`
}

// RecipeWriteRequest is shared by create and update. Pointer and nil-slice
// fields distinguish "omitted" from "empty".
type RecipeWriteRequest struct {
	Name        *string            `json:"name"`
	Text        *string            `json:"text"`
	CookingTime *int               `json:"cooking_time"`
	Image       *string            `json:"image"`
	Tags        []uint             `json:"tags"`
	Ingredients []IngredientAmount `json:"ingredients"`
}

// RecipeFilter holds the list query parameters
type RecipeFilter struct {
	AuthorID         uint
	TagSlugs         []string
	IsFavorited      bool
	IsInShoppingCart bool
	Page             int
	Limit            int
}

type TagResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type IngredientResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
}

type RecipeIngredientResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// RecipeResponse is the full recipe representation relative to the caller
type RecipeResponse struct {
	ID               uint                       `json:"id"`
	Tags             []TagResponse              `json:"tags"`
	Author           UserResponse               `json:"author"`
	Ingredients      []RecipeIngredientResponse `json:"ingredients"`
	IsFavorited      bool                       `json:"is_favorited"`
	IsInShoppingCart bool                       `json:"is_in_shopping_cart"`
	Name             string                     `json:"name"`
	Image            string                     `json:"image"`
	Text             string                     `json:"text"`
	CookingTime      int                        `json:"cooking_time"`
}

// RecipeShortResponse is returned by favorite and cart toggles and subscription previews
type RecipeShortResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

type ShortLinkResponse struct {
	ShortLink string `json:"short-link"`
}

// Page is a page-number paginated list
type Page[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
