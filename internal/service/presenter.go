package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// presenter shapes models into responses relative to a viewer. A zero viewer
// is anonymous and sees every membership flag as false.
type presenter struct {
	db     *gorm.DB
	images *ImageService
}

func newPresenter(db *gorm.DB, images *ImageService) *presenter {
	return &presenter{db: db, images: images}
}

// memberSet returns which of ids appear in column for rows owned by viewer.
func (p *presenter) memberSet(ctx context.Context, model interface{}, column string, viewer uint, ids []uint) (map[uint]bool, error) {
	set := make(map[uint]bool, len(ids))
	if viewer == 0 || len(ids) == 0 {
		return set, nil
	}
	var found []uint
	err := p.db.WithContext(ctx).Model(model).
		Where("user_id = ? AND "+column+" IN ?", viewer, ids).
		Pluck(column, &found).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	for _, id := range found {
		set[id] = true
	}
	return set, nil
}

func (p *presenter) user(u *models.User, subscribed bool) types.UserResponse {
	resp := types.UserResponse{
		Email:        u.Email,
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
	}
	if u.Avatar != "" {
		url := p.images.URL(u.Avatar)
		resp.Avatar = &url
	}
	return resp
}

func (p *presenter) users(ctx context.Context, viewer uint, users []models.User) ([]types.UserResponse, error) {
	ids := make([]uint, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	subscribed, err := p.memberSet(ctx, &models.Follower{}, "author_id", viewer, ids)
	if err != nil {
		return nil, err
	}
	out := make([]types.UserResponse, len(users))
	for i := range users {
		out[i] = p.user(&users[i], subscribed[users[i].ID])
	}
	return out, nil
}

func (p *presenter) recipeShort(r *models.Recipe) types.RecipeShortResponse {
	return types.RecipeShortResponse{
		ID:          r.ID,
		Name:        r.Name,
		Image:       p.images.URL(r.Image),
		CookingTime: r.CookingTime,
	}
}

// recipes expects Author, Tags and Ingredients.Ingredient to be preloaded.
func (p *presenter) recipes(ctx context.Context, viewer uint, recipes []models.Recipe) ([]types.RecipeResponse, error) {
	ids := make([]uint, len(recipes))
	authors := make([]models.User, len(recipes))
	for i := range recipes {
		ids[i] = recipes[i].ID
		authors[i] = recipes[i].Author
	}

	favorited, err := p.memberSet(ctx, &models.FavoriteRecipe{}, "recipe_id", viewer, ids)
	if err != nil {
		return nil, err
	}
	inCart, err := p.memberSet(ctx, &models.ShoppingCart{}, "recipe_id", viewer, ids)
	if err != nil {
		return nil, err
	}
	authorResp, err := p.users(ctx, viewer, authors)
	if err != nil {
		return nil, err
	}

	out := make([]types.RecipeResponse, len(recipes))
	for i := range recipes {
		r := &recipes[i]
		tags := make([]types.TagResponse, len(r.Tags))
		for j, t := range r.Tags {
			tags[j] = tagResponse(&t)
		}
		ingredients := make([]types.RecipeIngredientResponse, len(r.Ingredients))
		for j, ri := range r.Ingredients {
			ingredients[j] = types.RecipeIngredientResponse{
				ID:              ri.Ingredient.ID,
				Name:            ri.Ingredient.Name,
				MeasurementUnit: ri.Ingredient.MeasurementUnit,
				Amount:          ri.Amount,
			}
		}
		out[i] = types.RecipeResponse{
			ID:               r.ID,
			Tags:             tags,
			Author:           authorResp[i],
			Ingredients:      ingredients,
			IsFavorited:      favorited[r.ID],
			IsInShoppingCart: inCart[r.ID],
			Name:             r.Name,
			Image:            p.images.URL(r.Image),
			Text:             r.Text,
			CookingTime:      r.CookingTime,
		}
	}
	return out, nil
}

func tagResponse(t *models.Tag) types.TagResponse {
	return types.TagResponse{ID: t.ID, Name: t.Name, Slug: t.Slug}
}

func ingredientResponse(i *models.Ingredient) types.IngredientResponse {
	return types.IngredientResponse{ID: i.ID, Name: i.Name, MeasurementUnit: i.MeasurementUnit}
}

// withRecipeDetails preloads everything the full representation needs.
func withRecipeDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name") }).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("recipe_ingredients.id") }).
		Preload("Ingredients.Ingredient")
}

// DefaultPageSize applies when a caller passes no positive limit
const DefaultPageSize = 6

func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
