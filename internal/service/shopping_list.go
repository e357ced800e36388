package service

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const (
	ShoppingListHeader   = "Shopping list:"
	ShoppingListFilename = "shopping_cart.txt"
)

// ShoppingListLine is one (name, unit) group with its summed amount
type ShoppingListLine struct {
	Name   string
	Unit   string
	Amount int64
}

type ShoppingListService struct {
	db *gorm.DB
}

func NewShoppingListService(db *gorm.DB) *ShoppingListService {
	return &ShoppingListService{db: db}
}

// Aggregate sums ingredient amounts across every recipe in the user's cart,
// grouped by ingredient name and measurement unit, ordered by name then unit.
func (s *ShoppingListService) Aggregate(ctx context.Context, userID uint) ([]ShoppingListLine, error) {
	var lines []ShoppingListLine
	err := s.db.WithContext(ctx).
		Table("recipe_ingredients AS ri").
		Select("i.name AS name, i.measurement_unit AS unit, SUM(ri.amount) AS amount").
		Joins("JOIN ingredients AS i ON i.id = ri.ingredient_id").
		Joins("JOIN shopping_carts AS sc ON sc.recipe_id = ri.recipe_id").
		Where("sc.user_id = ?", userID).
		Group("i.name, i.measurement_unit").
		Order("i.name, i.measurement_unit").
		Scan(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate shopping list: %w", err)
	}
	return lines, nil
}

// Render produces the downloadable text body
func (s *ShoppingListService) Render(ctx context.Context, userID uint) (string, error) {
	lines, err := s.Aggregate(ctx, userID)
	if err != nil {
		return "", err
	}
	return RenderShoppingList(lines), nil
}

// RenderShoppingList writes the header line followed by "<name>: <amount> <unit>" lines.
func RenderShoppingList(lines []ShoppingListLine) string {
	var b strings.Builder
	b.WriteString(ShoppingListHeader)
	b.WriteByte('\n')
	for _, l := range lines {
		fmt.Fprintf(&b, "%s: %d %s\n", l.Name, l.Amount, l.Unit)
	}
	return b.String()
}
