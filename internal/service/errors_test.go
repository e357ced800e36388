package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestRelationErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", conflict("dup"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.False(t, errors.Is(err, ErrNotPresent))

	assert.ErrorIs(t, notPresent("gone"), ErrNotPresent)
	assert.ErrorIs(t, ErrSelfFollow, ErrAlreadyExists)
}

func TestValidationErrorMessage(t *testing.T) {
	v := NewValidationError()
	assert.NoError(t, v.Err())

	v.Add("tags", "b")
	v.Add("name", "a")
	v.Add("tags", "c")
	assert.EqualError(t, v.Err(), "validation failed: name: a, tags: b; c")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: short_links.code")))
	assert.True(t, isUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "idx_short_links_code"`)))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}

func TestNotFoundOr(t *testing.T) {
	assert.ErrorIs(t, notFoundOr(gorm.ErrRecordNotFound, "recipe"), ErrNotFound)
	assert.False(t, errors.Is(notFoundOr(errors.New("boom"), "recipe"), ErrNotFound))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_cream\\`, escapeLike(`50%_cream\`))
}

func TestRenderShoppingList(t *testing.T) {
	out := RenderShoppingList([]ShoppingListLine{{Name: "Salt", Unit: "g", Amount: 15}})
	assert.Equal(t, "Shopping list:\nSalt: 15 g\n", out)
}

func TestValidSlug(t *testing.T) {
	assert.True(t, ValidSlug("breakfast_2-go"))
	assert.False(t, ValidSlug("two words"))
	assert.False(t, ValidSlug(""))
}
