package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/server"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

type client struct {
	t     *testing.T
	base  string
	http  *http.Client
	token string
}

func (c *client) call(method, path string, body interface{}) (*http.Response, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, data
}

func setup(t *testing.T) (*gorm.DB, *httptest.Server) {
	t.Helper()
	db := testhelpers.SetupPostgres(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ts := httptest.NewUnstartedServer(nil)
	publicURL := "http://" + ts.Listener.Addr().String()
	cfg := &config.Config{
		Environment:       config.Test,
		PublicURL:         publicURL,
		DBDriver:          config.DriverPostgres,
		JWTSecret:         "integration-secret",
		JWTTTL:            time.Hour,
		StorageBackend:    config.StorageLocal,
		MediaRoot:         t.TempDir(),
		MediaURL:          publicURL + "/media",
		PageSize:          6,
		RecipeCreateLimit: 100,
		CORSOrigins:       []string{"*"},
	}
	deps, err := server.NewDeps(context.Background(), cfg, db, rdb)
	require.NoError(t, err)
	srv, err := server.New(cfg, deps)
	require.NoError(t, err)

	ts.Config.Handler = srv.Handler()
	ts.Start()
	t.Cleanup(ts.Close)
	return db, ts
}

func newClient(t *testing.T, ts *httptest.Server) *client {
	hc := ts.Client()
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &client{t: t, base: ts.URL, http: hc}
}

func (c *client) signUp(username string) uint {
	c.t.Helper()
	resp, body := c.call(http.MethodPost, "/api/users/", map[string]string{
		"email":      username + "@example.com",
		"username":   username,
		"first_name": "First",
		"last_name":  "Last",
		"password":   "integration-pass",
	})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode, string(body))
	var created types.RegisterResponse
	require.NoError(c.t, json.Unmarshal(body, &created))

	resp, body = c.call(http.MethodPost, "/api/auth/token/login/", map[string]string{
		"email":    username + "@example.com",
		"password": "integration-pass",
	})
	require.Equal(c.t, http.StatusOK, resp.StatusCode, string(body))
	var token types.TokenResponse
	require.NoError(c.t, json.Unmarshal(body, &token))
	c.token = token.AuthToken
	return created.ID
}

func TestRecipeLifecycle(t *testing.T) {
	db, ts := setup(t)
	tag := testhelpers.CreateTag(t, db, "Breakfast", "breakfast")
	flour := testhelpers.CreateIngredient(t, db, "Flour", "g")
	salt := testhelpers.CreateIngredient(t, db, "Salt", "g")

	chef := newClient(t, ts)
	chef.signUp("chef")
	eater := newClient(t, ts)
	eater.signUp("eater")

	resp, body := chef.call(http.MethodPost, "/api/recipes/", map[string]interface{}{
		"name":         "Bread",
		"text":         "Knead and bake.",
		"cooking_time": 90,
		"image":        testhelpers.PNGDataURI,
		"tags":         []uint{tag.ID},
		"ingredients": []map[string]interface{}{
			{"id": flour.ID, "amount": 500},
			{"id": salt.ID, "amount": 10},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
	var recipe types.RecipeResponse
	require.NoError(t, json.Unmarshal(body, &recipe))

	resp, body = eater.call(http.MethodGet, recipe.Image[len(ts.URL):], nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", http.DetectContentType(body))

	resp, _ = eater.call(http.MethodPost, fmt.Sprintf("/api/recipes/%d/shopping_cart/", recipe.ID), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body = eater.call(http.MethodGet, "/api/recipes/download_shopping_cart/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Shopping list:\nFlour: 500 g\nSalt: 10 g\n", string(body))

	resp, body = eater.call(http.MethodGet, fmt.Sprintf("/api/recipes/%d/get-link/", recipe.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var link types.ShortLinkResponse
	require.NoError(t, json.Unmarshal(body, &link))
	resp, _ = eater.call(http.MethodGet, link.ShortLink[len(ts.URL):], nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("%s/api/recipes/%d/", ts.URL, recipe.ID), resp.Header.Get("Location"))

	resp, _ = eater.call(http.MethodDelete, fmt.Sprintf("/api/recipes/%d/", recipe.ID), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = chef.call(http.MethodDelete, fmt.Sprintf("/api/recipes/%d/", recipe.ID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	for _, model := range []interface{}{&models.ShoppingCart{}, &models.RecipeIngredient{}, &models.ShortLink{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}
}

func TestConcurrentFavoriteAddsOneRow(t *testing.T) {
	db, ts := setup(t)
	author := testhelpers.CreateUser(t, db, "author")
	recipe := testhelpers.CreateRecipe(t, db, author, "Pie", nil)

	fan := newClient(t, ts)
	fan.signUp("fan")

	const workers = 8
	url := fmt.Sprintf("%s/api/recipes/%d/favorite/", ts.URL, recipe.ID)
	statuses := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, url, nil)
			if err != nil {
				return
			}
			req.Header.Set("Authorization", "Token "+fan.token)
			resp, err := fan.http.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	created := 0
	for _, status := range statuses {
		if status == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusBadRequest, status)
		}
	}
	assert.Equal(t, 1, created)

	var count int64
	require.NoError(t, db.Model(&models.FavoriteRecipe{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMigrationsRollBackAndReapply(t *testing.T) {
	db := testhelpers.SetupPostgres(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	ctx := context.Background()

	applied, err := database.MigrateUp(ctx, sqlDB)
	require.NoError(t, err)
	assert.Empty(t, applied)

	reverted, err := database.MigrateDown(ctx, sqlDB, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init"}, reverted)

	var exists bool
	require.NoError(t, sqlDB.QueryRowContext(ctx, `SELECT to_regclass('public.recipes') IS NOT NULL`).Scan(&exists))
	assert.False(t, exists)

	applied, err = database.MigrateUp(ctx, sqlDB)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init"}, applied)
}
