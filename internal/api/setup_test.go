package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

const baseURL = "http://testserver"

// payload is a JSON request body
type payload map[string]interface{}

type testAPI struct {
	router *gin.Engine
	db     *gorm.DB
	store  *testhelpers.MemoryImageStore
	redis  *redis.Client
	auth   *service.AuthService
}

// newTestAPI wires the real services over sqlite and miniredis. mutate may
// adjust the dependencies before routes are registered.
func newTestAPI(t *testing.T, mutate ...func(*api.Deps, *redis.Client)) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testhelpers.SetupSQLite(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := testhelpers.NewMemoryImageStore()
	images := service.NewImageService(store)
	links := service.NewShortLinkService(db, service.NewSeededCodeGenerator(7), rdb, baseURL)
	auth := service.NewAuthService(db, "api-test-secret", time.Hour, rdb)

	deps := api.Deps{
		DB:        db,
		Auth:      auth,
		Users:     service.NewUserService(db, images),
		Recipes:   service.NewRecipeService(db, images, links),
		Catalog:   service.NewCatalogService(db),
		Links:     links,
		Shopping:  service.NewShoppingListService(db),
		PublicURL: baseURL,
	}
	for _, fn := range mutate {
		fn(&deps, rdb)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	require.NoError(t, api.RegisterRoutes(router, deps))

	return &testAPI{router: router, db: db, store: store, redis: rdb, auth: auth}
}

func (a *testAPI) token(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := a.auth.GenerateToken(user)
	require.NoError(t, err)
	return token
}

// do sends body as JSON; a nil body sends no payload
func (a *testAPI) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}
