package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

const (
	msgRequired   = "This field is required."
	msgBlank      = "This field may not be blank."
	maxRecipeName = 256
	// MaxSmallInt bounds cooking_time and amounts (postgres smallint range)
	MaxSmallInt = 32767
)

// recipeInput is a validated write request with its referenced rows resolved.
type recipeInput struct {
	req         *types.RecipeWriteRequest
	tags        []models.Tag
	ingredients []models.RecipeIngredient
}

// validateRecipeWrite checks a create (creating=true) or update request. It
// reads but never writes; all failures are returned together.
func validateRecipeWrite(ctx context.Context, db *gorm.DB, req *types.RecipeWriteRequest, creating bool) (*recipeInput, error) {
	verr := NewValidationError()

	if req.Name == nil {
		if creating {
			verr.Add("name", msgRequired)
		}
	} else if strings.TrimSpace(*req.Name) == "" {
		verr.Add("name", msgBlank)
	} else if utf8.RuneCountInString(*req.Name) > maxRecipeName {
		verr.Add("name", fmt.Sprintf("Ensure this field has no more than %d characters.", maxRecipeName))
	}

	if req.Text == nil {
		if creating {
			verr.Add("text", msgRequired)
		}
	} else if strings.TrimSpace(*req.Text) == "" {
		verr.Add("text", msgBlank)
	}

	if req.CookingTime == nil {
		if creating {
			verr.Add("cooking_time", msgRequired)
		}
	} else if *req.CookingTime < 1 {
		verr.Add("cooking_time", "Cooking time must be at least 1 minute.")
	} else if *req.CookingTime > MaxSmallInt {
		verr.Add("cooking_time", fmt.Sprintf("Ensure this value is less than or equal to %d.", MaxSmallInt))
	}

	if req.Image == nil {
		if creating {
			verr.Add("image", msgRequired)
		}
	} else if strings.TrimSpace(*req.Image) == "" {
		verr.Add("image", msgRequired)
	} else if _, _, err := decodeImage(*req.Image); err != nil {
		verr.Add("image", err.Error())
	}

	in := &recipeInput{req: req}

	tags, err := validateTags(ctx, db, req.Tags, verr)
	if err != nil {
		return nil, err
	}
	in.tags = tags

	ingredients, err := validateIngredients(ctx, db, req.Ingredients, verr)
	if err != nil {
		return nil, err
	}
	in.ingredients = ingredients

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return in, nil
}

func validateTags(ctx context.Context, db *gorm.DB, ids []uint, verr *ValidationError) ([]models.Tag, error) {
	if ids == nil {
		verr.Add("tags", msgRequired)
		return nil, nil
	}
	if len(ids) == 0 {
		verr.Add("tags", "Add at least one tag.")
		return nil, nil
	}

	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			verr.Add("tags", "Tags must not repeat.")
			return nil, nil
		}
		seen[id] = true
	}

	var tags []models.Tag
	if err := db.WithContext(ctx).Where("id IN ?", ids).Order("name").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	if len(tags) != len(ids) {
		found := make(map[uint]bool, len(tags))
		for _, t := range tags {
			found[t.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				verr.Add("tags", fmt.Sprintf("Tag with id %d does not exist.", id))
			}
		}
		return nil, nil
	}
	return tags, nil
}

func validateIngredients(ctx context.Context, db *gorm.DB, items []types.IngredientAmount, verr *ValidationError) ([]models.RecipeIngredient, error) {
	if items == nil {
		verr.Add("ingredients", msgRequired)
		return nil, nil
	}
	if len(items) == 0 {
		verr.Add("ingredients", "Add at least one ingredient.")
		return nil, nil
	}

	ok := true
	seen := make(map[uint]bool, len(items))
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		if item.Amount < 1 {
			verr.Add("ingredients", "Amount must be at least 1.")
			ok = false
		} else if item.Amount > MaxSmallInt {
			verr.Add("ingredients", fmt.Sprintf("Amount must be at most %d.", MaxSmallInt))
			ok = false
		}
		if seen[item.ID] {
			verr.Add("ingredients", "Ingredients must not repeat.")
			ok = false
			continue
		}
		seen[item.ID] = true
		ids = append(ids, item.ID)
	}
	if !ok {
		return nil, nil
	}

	var existing []uint
	if err := db.WithContext(ctx).Model(&models.Ingredient{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load ingredients: %w", err)
	}
	found := make(map[uint]bool, len(existing))
	for _, id := range existing {
		found[id] = true
	}

	rows := make([]models.RecipeIngredient, 0, len(items))
	for _, item := range items {
		if !found[item.ID] {
			verr.Add("ingredients", fmt.Sprintf("Ingredient with id %d does not exist.", item.ID))
			ok = false
			continue
		}
		rows = append(rows, models.RecipeIngredient{IngredientID: item.ID, Amount: item.Amount})
	}
	if !ok {
		return nil, nil
	}
	return rows, nil
}
