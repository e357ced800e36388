package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

const recipeImagePrefix = "recipes/images"

type RecipeService struct {
	db      *gorm.DB
	images  *ImageService
	present *presenter
	links   *ShortLinkService
}

// NewRecipeService builds the recipe service. links may be nil; when set, its
// cache is evicted on recipe deletion.
func NewRecipeService(db *gorm.DB, images *ImageService, links *ShortLinkService) *RecipeService {
	return &RecipeService{
		db:      db,
		images:  images,
		present: newPresenter(db, images),
		links:   links,
	}
}

func (s *RecipeService) ListRecipes(ctx context.Context, viewer uint, f types.RecipeFilter) ([]types.RecipeResponse, int64, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	scope := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Recipe{})
		if f.AuthorID != 0 {
			q = q.Where("recipes.author_id = ?", f.AuthorID)
		}
		if len(f.TagSlugs) > 0 {
			tagged := s.db.Table("recipe_tags").
				Select("recipe_tags.recipe_id").
				Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
				Where("tags.slug IN ?", f.TagSlugs)
			q = q.Where("recipes.id IN (?)", tagged)
		}
		if viewer != 0 && f.IsFavorited {
			q = q.Where("recipes.id IN (?)", s.db.Model(&models.FavoriteRecipe{}).Select("recipe_id").Where("user_id = ?", viewer))
		}
		if viewer != 0 && f.IsInShoppingCart {
			q = q.Where("recipes.id IN (?)", s.db.Model(&models.ShoppingCart{}).Select("recipe_id").Where("user_id = ?", viewer))
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recipes: %w", err)
	}

	var recipes []models.Recipe
	err := withRecipeDetails(scope()).
		Order("recipes.pub_date DESC, recipes.id DESC").
		Offset(offset(f.Page, f.Limit)).
		Limit(f.Limit).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recipes: %w", err)
	}

	out, err := s.present.recipes(ctx, viewer, recipes)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *RecipeService) GetRecipe(ctx context.Context, viewer, id uint) (*types.RecipeResponse, error) {
	var recipe models.Recipe
	if err := withRecipeDetails(s.db.WithContext(ctx)).First(&recipe, id).Error; err != nil {
		return nil, notFoundOr(err, "recipe")
	}
	out, err := s.present.recipes(ctx, viewer, []models.Recipe{recipe})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *RecipeService) CreateRecipe(ctx context.Context, authorID uint, req *types.RecipeWriteRequest) (*types.RecipeResponse, error) {
	in, err := validateRecipeWrite(ctx, s.db, req, true)
	if err != nil {
		return nil, err
	}

	imageKey, err := s.images.SaveDataURI(ctx, "image", recipeImagePrefix, *req.Image)
	if err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		AuthorID:    authorID,
		Name:        *req.Name,
		Text:        *req.Text,
		CookingTime: *req.CookingTime,
		Image:       imageKey,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}
		return replaceAssociations(tx, recipe.ID, in)
	})
	if err != nil {
		s.discardImage(ctx, imageKey)
		return nil, err
	}

	return s.GetRecipe(ctx, authorID, recipe.ID)
}

// UpdateRecipe applies a full or partial update. Tags and ingredients are
// always required and replace the existing sets.
func (s *RecipeService) UpdateRecipe(ctx context.Context, actor, id uint, req *types.RecipeWriteRequest) (*types.RecipeResponse, error) {
	recipe, err := s.editableRecipe(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	in, err := validateRecipeWrite(ctx, s.db, req, false)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Text != nil {
		updates["text"] = *req.Text
	}
	if req.CookingTime != nil {
		updates["cooking_time"] = *req.CookingTime
	}

	var newImage string
	if req.Image != nil {
		newImage, err = s.images.SaveDataURI(ctx, "image", recipeImagePrefix, *req.Image)
		if err != nil {
			return nil, err
		}
		updates["image"] = newImage
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Recipe{ID: recipe.ID}).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update recipe: %w", err)
			}
		}
		return replaceAssociations(tx, recipe.ID, in)
	})
	if err != nil {
		s.discardImage(ctx, newImage)
		return nil, err
	}
	if newImage != "" {
		s.discardImage(ctx, recipe.Image)
	}

	return s.GetRecipe(ctx, actor, recipe.ID)
}

// DeleteRecipe removes the recipe and everything that references it in one transaction.
func (s *RecipeService) DeleteRecipe(ctx context.Context, actor, id uint) error {
	recipe, err := s.editableRecipe(ctx, actor, id)
	if err != nil {
		return err
	}

	// The code is read in the transaction so its cache entry can be evicted
	// after commit; a failed read aborts the delete.
	var codes []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ShortLink{}).Where("recipe_id = ?", id).Pluck("code", &codes).Error; err != nil {
			return fmt.Errorf("failed to load short link: %w", err)
		}
		for _, m := range []interface{}{&models.ShortLink{}, &models.FavoriteRecipe{}, &models.ShoppingCart{}, &models.RecipeIngredient{}} {
			if err := tx.Where("recipe_id = ?", id).Delete(m).Error; err != nil {
				return fmt.Errorf("failed to delete recipe dependents: %w", err)
			}
		}
		if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete recipe tags: %w", err)
		}
		if err := tx.Delete(&models.Recipe{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.discardImage(ctx, recipe.Image)
	if s.links != nil {
		for _, code := range codes {
			s.links.evict(ctx, code)
		}
	}
	return nil
}

func (s *RecipeService) AddFavorite(ctx context.Context, userID, recipeID uint) (*types.RecipeShortResponse, error) {
	return s.addRelation(ctx, &models.FavoriteRecipe{UserID: userID, RecipeID: recipeID}, userID, recipeID,
		"Recipe is already in favorites.")
}

func (s *RecipeService) RemoveFavorite(ctx context.Context, userID, recipeID uint) error {
	return s.removeRelation(ctx, &models.FavoriteRecipe{}, userID, recipeID, "Recipe is not in favorites.")
}

func (s *RecipeService) AddToShoppingCart(ctx context.Context, userID, recipeID uint) (*types.RecipeShortResponse, error) {
	return s.addRelation(ctx, &models.ShoppingCart{UserID: userID, RecipeID: recipeID}, userID, recipeID,
		"Recipe is already in the shopping cart.")
}

func (s *RecipeService) RemoveFromShoppingCart(ctx context.Context, userID, recipeID uint) error {
	return s.removeRelation(ctx, &models.ShoppingCart{}, userID, recipeID, "Recipe is not in the shopping cart.")
}

// addRelation inserts a (user, recipe) row. The pre-check gives the common
// case a clean error; the unique index settles concurrent adds.
func (s *RecipeService) addRelation(ctx context.Context, row interface{}, userID, recipeID uint, dupMsg string) (*types.RecipeShortResponse, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, recipeID).Error; err != nil {
		return nil, notFoundOr(err, "recipe")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(row).Where("user_id = ? AND recipe_id = ?", userID, recipeID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check relation: %w", err)
	}
	if count > 0 {
		return nil, conflict(dupMsg)
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, conflict(dupMsg)
		}
		return nil, fmt.Errorf("failed to add relation: %w", err)
	}

	short := s.present.recipeShort(&recipe)
	return &short, nil
}

func (s *RecipeService) removeRelation(ctx context.Context, model interface{}, userID, recipeID uint, missingMsg string) error {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.Recipe{}).Where("id = ?", recipeID).Count(&exists).Error; err != nil {
		return fmt.Errorf("failed to load recipe: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("recipe: %w", ErrNotFound)
	}

	res := s.db.WithContext(ctx).Where("user_id = ? AND recipe_id = ?", userID, recipeID).Delete(model)
	if res.Error != nil {
		return fmt.Errorf("failed to remove relation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notPresent(missingMsg)
	}
	return nil
}

// editableRecipe loads a recipe and checks the actor is its author or an admin.
func (s *RecipeService) editableRecipe(ctx context.Context, actor, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, id).Error; err != nil {
		return nil, notFoundOr(err, "recipe")
	}
	if recipe.AuthorID == actor {
		return &recipe, nil
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "is_admin").First(&user, actor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsAdmin {
		return nil, ErrForbidden
	}
	return &recipe, nil
}

func (s *RecipeService) discardImage(ctx context.Context, key string) {
	if err := s.images.Delete(ctx, key); err != nil {
		logger.Warn(ctx).Err(err).Str("key", key).Msg("failed to remove stored image")
	}
}

// replaceAssociations clears and repopulates the tag and ingredient sets of a recipe.
func replaceAssociations(tx *gorm.DB, recipeID uint, in *recipeInput) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeIngredient{}).Error; err != nil {
		return fmt.Errorf("failed to clear ingredients: %w", err)
	}
	rows := make([]models.RecipeIngredient, len(in.ingredients))
	for i, ri := range in.ingredients {
		rows[i] = models.RecipeIngredient{RecipeID: recipeID, IngredientID: ri.IngredientID, Amount: ri.Amount}
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert ingredients: %w", err)
	}

	if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id = ?", recipeID).Error; err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	links := make([]map[string]interface{}, len(in.tags))
	for i, t := range in.tags {
		links[i] = map[string]interface{}{"recipe_id": recipeID, "tag_id": t.ID}
	}
	if err := tx.Table("recipe_tags").Create(links).Error; err != nil {
		return fmt.Errorf("failed to insert tags: %w", err)
	}
	return nil
}
