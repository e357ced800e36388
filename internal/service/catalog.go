package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// ValidSlug reports whether s is a non-empty slug of letters, digits, '-' and '_'
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// CatalogService serves the admin-managed tag and ingredient dictionaries
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

func (s *CatalogService) ListTags(ctx context.Context) ([]types.TagResponse, error) {
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Order("name").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	out := make([]types.TagResponse, len(tags))
	for i := range tags {
		out[i] = tagResponse(&tags[i])
	}
	return out, nil
}

func (s *CatalogService) GetTag(ctx context.Context, id uint) (*types.TagResponse, error) {
	var tag models.Tag
	if err := s.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, notFoundOr(err, "tag")
	}
	resp := tagResponse(&tag)
	return &resp, nil
}

// ListIngredients filters by case-insensitive name prefix when prefix is set
func (s *CatalogService) ListIngredients(ctx context.Context, prefix string) ([]types.IngredientResponse, error) {
	q := s.db.WithContext(ctx).Order("name").Order("measurement_unit")
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '\\'", escapeLike(strings.ToLower(prefix))+"%")
	}
	var ingredients []models.Ingredient
	if err := q.Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	out := make([]types.IngredientResponse, len(ingredients))
	for i := range ingredients {
		out[i] = ingredientResponse(&ingredients[i])
	}
	return out, nil
}

func (s *CatalogService) GetIngredient(ctx context.Context, id uint) (*types.IngredientResponse, error) {
	var ingredient models.Ingredient
	if err := s.db.WithContext(ctx).First(&ingredient, id).Error; err != nil {
		return nil, notFoundOr(err, "ingredient")
	}
	resp := ingredientResponse(&ingredient)
	return &resp, nil
}

// ImportIngredients inserts rows not already present by (name, unit) and
// returns how many were added.
func (s *CatalogService) ImportIngredients(ctx context.Context, rows []models.Ingredient) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, 500)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to import ingredients: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ImportTags inserts tags not already present by name or slug
func (s *CatalogService) ImportTags(ctx context.Context, rows []models.Tag) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to import tags: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
