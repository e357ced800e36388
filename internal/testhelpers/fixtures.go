package testhelpers

import (
	"fmt"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
)

// DefaultPassword is the plaintext password of every fixture user
const DefaultPassword = "s3cret-pass"

// CreateUser inserts a user named username with DefaultPassword
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		FirstName:    "First " + username,
		LastName:     "Last " + username,
		PasswordHash: string(hash),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// CreateAdmin inserts an admin user
func CreateAdmin(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := CreateUser(t, db, username)
	if err := db.Model(user).Update("is_admin", true).Error; err != nil {
		t.Fatalf("failed to promote user: %v", err)
	}
	user.IsAdmin = true
	return user
}

func CreateTag(t *testing.T, db *gorm.DB, name, slug string) *models.Tag {
	t.Helper()
	tag := &models.Tag{Name: name, Slug: slug}
	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("failed to create tag: %v", err)
	}
	return tag
}

func CreateIngredient(t *testing.T, db *gorm.DB, name, unit string) *models.Ingredient {
	t.Helper()
	ingredient := &models.Ingredient{Name: name, MeasurementUnit: unit}
	if err := db.Create(ingredient).Error; err != nil {
		t.Fatalf("failed to create ingredient: %v", err)
	}
	return ingredient
}

// Portion pairs an ingredient with its amount in a fixture recipe
type Portion struct {
	Ingredient *models.Ingredient
	Amount     int
}

// CreateRecipe inserts a recipe by author with the given tags and portions
func CreateRecipe(t *testing.T, db *gorm.DB, author *models.User, name string, tags []*models.Tag, portions ...Portion) *models.Recipe {
	t.Helper()
	recipe := &models.Recipe{
		AuthorID:    author.ID,
		Name:        name,
		Text:        "Cook " + name,
		CookingTime: 10,
		Image:       fmt.Sprintf("recipes/images/%s.png", name),
	}
	if err := db.Omit(clause.Associations).Create(recipe).Error; err != nil {
		t.Fatalf("failed to create recipe: %v", err)
	}
	for _, tag := range tags {
		err := db.Table("recipe_tags").Create(map[string]interface{}{
			"recipe_id": recipe.ID,
			"tag_id":    tag.ID,
		}).Error
		if err != nil {
			t.Fatalf("failed to tag recipe: %v", err)
		}
	}
	for _, p := range portions {
		row := &models.RecipeIngredient{RecipeID: recipe.ID, IngredientID: p.Ingredient.ID, Amount: p.Amount}
		if err := db.Omit(clause.Associations).Create(row).Error; err != nil {
			t.Fatalf("failed to add ingredient: %v", err)
		}
	}
	return recipe
}

func AddFavorite(t *testing.T, db *gorm.DB, user *models.User, recipe *models.Recipe) {
	t.Helper()
	row := &models.FavoriteRecipe{UserID: user.ID, RecipeID: recipe.ID}
	if err := db.Omit(clause.Associations).Create(row).Error; err != nil {
		t.Fatalf("failed to add favorite: %v", err)
	}
}

func AddToCart(t *testing.T, db *gorm.DB, user *models.User, recipe *models.Recipe) {
	t.Helper()
	row := &models.ShoppingCart{UserID: user.ID, RecipeID: recipe.ID}
	if err := db.Omit(clause.Associations).Create(row).Error; err != nil {
		t.Fatalf("failed to add to cart: %v", err)
	}
}

func Follow(t *testing.T, db *gorm.DB, user, author *models.User) {
	t.Helper()
	row := &models.Follower{UserID: user.ID, AuthorID: author.ID}
	if err := db.Omit(clause.Associations).Create(row).Error; err != nil {
		t.Fatalf("failed to follow: %v", err)
	}
}
