package service_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

const testSecret = "test-secret"

type fixture struct {
	db       *gorm.DB
	store    *testhelpers.MemoryImageStore
	redis    *miniredis.Miniredis
	auth     *service.AuthService
	users    *service.UserService
	recipes  *service.RecipeService
	links    *service.ShortLinkService
	catalog  *service.CatalogService
	shopping *service.ShoppingListService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testhelpers.SetupSQLite(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := testhelpers.NewMemoryImageStore()
	images := service.NewImageService(store)
	links := service.NewShortLinkService(db, service.NewSeededCodeGenerator(42), rdb, "http://testserver")

	return &fixture{
		db:       db,
		store:    store,
		redis:    mr,
		auth:     service.NewAuthService(db, testSecret, time.Hour, rdb),
		users:    service.NewUserService(db, images),
		recipes:  service.NewRecipeService(db, images, links),
		links:    links,
		catalog:  service.NewCatalogService(db),
		shopping: service.NewShoppingListService(db),
	}
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

// validRecipe builds a complete create request
func validRecipe(name string, tags []uint, ingredients ...types.IngredientAmount) *types.RecipeWriteRequest {
	return &types.RecipeWriteRequest{
		Name:        strPtr(name),
		Text:        strPtr("Mix and bake."),
		CookingTime: intPtr(25),
		Image:       strPtr(testhelpers.PNGDataURI),
		Tags:        tags,
		Ingredients: ingredients,
	}
}
