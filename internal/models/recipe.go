package models

import (
	"time"
)

type Tag struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"size:32;not null;uniqueIndex" json:"name"`
	Slug string `gorm:"size:32;not null;uniqueIndex" json:"slug"`
}

type Ingredient struct {
	ID              uint   `gorm:"primarykey" json:"id"`
	Name            string `gorm:"size:128;not null;uniqueIndex:idx_ingredient_name_unit;index" json:"name"`
	MeasurementUnit string `gorm:"size:64;not null;uniqueIndex:idx_ingredient_name_unit" json:"measurement_unit"`
}

type Recipe struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UpdatedAt   time.Time `json:"updated_at"`
	PubDate     time.Time `gorm:"autoCreateTime;not null;index" json:"pub_date"`
	AuthorID    uint      `gorm:"not null;index" json:"author_id"`
	Author      User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	Name        string    `gorm:"size:256;not null" json:"name"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	CookingTime int       `gorm:"not null;check:cooking_time BETWEEN 1 AND 32767" json:"cooking_time"`
	// Image is a storage key resolved to a URL at read time
	Image       string             `gorm:"size:255;not null" json:"image"`
	Tags        []Tag              `gorm:"many2many:recipe_tags;constraint:OnDelete:CASCADE" json:"tags"`
	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"ingredients"`
}

// RecipeIngredient carries the per-recipe amount of an ingredient.
type RecipeIngredient struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	RecipeID     uint       `gorm:"not null;uniqueIndex:idx_recipe_ingredient" json:"recipe_id"`
	IngredientID uint       `gorm:"not null;uniqueIndex:idx_recipe_ingredient" json:"ingredient_id"`
	Ingredient   Ingredient `gorm:"constraint:OnDelete:CASCADE" json:"ingredient"`
	Amount       int        `gorm:"not null;check:amount BETWEEN 1 AND 32767" json:"amount"`
}

type FavoriteRecipe struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_favorite_user_recipe" json:"user_id"`
	RecipeID  uint      `gorm:"not null;uniqueIndex:idx_favorite_user_recipe;index" json:"recipe_id"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Recipe    Recipe    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type ShoppingCart struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_recipe" json:"user_id"`
	RecipeID  uint      `gorm:"not null;uniqueIndex:idx_cart_user_recipe;index" json:"recipe_id"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Recipe    Recipe    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// ShortLink binds exactly one code to exactly one recipe.
type ShortLink struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Code      string    `gorm:"size:3;not null;uniqueIndex" json:"short_link"`
	RecipeID  uint      `gorm:"not null;uniqueIndex" json:"recipe_id"`
	Recipe    Recipe    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (ShoppingCart) TableName() string {
	return "shopping_carts"
}

// All lists every model in dependency order for auto-migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Tag{},
		&Ingredient{},
		&Recipe{},
		&RecipeIngredient{},
		&FavoriteRecipe{},
		&ShoppingCart{},
		&Follower{},
		&ShortLink{},
	}
}
