package service_test

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

// scriptedGenerator replays codes in order, repeating the last one
type scriptedGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *scriptedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	g.calls++
	return g.codes[i]
}

func TestShortLinkIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := testhelpers.CreateUser(t, f.db, "chef")
	recipe := testhelpers.CreateRecipe(t, f.db, author, "stew", nil)

	first, err := f.links.GetOrCreate(ctx, recipe.ID)
	require.NoError(t, err)
	second, err := f.links.GetOrCreate(ctx, recipe.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Code, second.Code)
	assert.Len(t, first.Code, service.ShortLinkLength)
	assert.Equal(t, "http://testserver/s/"+first.Code, f.links.URL(first.Code))

	var count int64
	require.NoError(t, f.db.Model(&models.ShortLink{}).Where("recipe_id = ?", recipe.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestShortLinkRetriesOnCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := testhelpers.CreateUser(t, f.db, "chef")
	taken := testhelpers.CreateRecipe(t, f.db, author, "taken", nil)
	fresh := testhelpers.CreateRecipe(t, f.db, author, "fresh", nil)
	require.NoError(t, f.db.Create(&models.ShortLink{Code: "AAA", RecipeID: taken.ID}).Error)

	gen := &scriptedGenerator{codes: []string{"AAA", "AAA", "xyz"}}
	links := service.NewShortLinkService(f.db, gen, nil, "http://testserver")

	link, err := links.GetOrCreate(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "xyz", link.Code)
	assert.Equal(t, 3, gen.calls)
}

func TestShortLinkExhaustionFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := testhelpers.CreateUser(t, f.db, "chef")
	taken := testhelpers.CreateRecipe(t, f.db, author, "taken", nil)
	fresh := testhelpers.CreateRecipe(t, f.db, author, "fresh", nil)
	require.NoError(t, f.db.Create(&models.ShortLink{Code: "AAA", RecipeID: taken.ID}).Error)

	gen := &scriptedGenerator{codes: []string{"AAA"}}
	links := service.NewShortLinkService(f.db, gen, nil, "http://testserver").WithMaxAttempts(4)

	link, err := links.GetOrCreate(ctx, fresh.ID)
	assert.Nil(t, link)
	assert.ErrorIs(t, err, service.ErrShortLinkExhausted)
	assert.Equal(t, 4, gen.calls)

	var count int64
	require.NoError(t, f.db.Model(&models.ShortLink{}).Where("recipe_id = ?", fresh.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestShortLinkUnknownRecipe(t *testing.T) {
	f := newFixture(t)
	_, err := f.links.GetOrCreate(context.Background(), 999)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestShortLinkCodesAreDistinct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := testhelpers.CreateUser(t, f.db, "chef")

	seen := map[string]uint{}
	for i := 0; i < 60; i++ {
		recipe := testhelpers.CreateRecipe(t, f.db, author, fmt.Sprintf("dish%d", i), nil)
		link, err := f.links.GetOrCreate(ctx, recipe.ID)
		require.NoError(t, err)

		for _, c := range link.Code {
			assert.True(t, strings.ContainsRune(service.ShortLinkAlphabet, c), "unexpected symbol %q", c)
		}
		prev, dup := seen[link.Code]
		assert.False(t, dup, "code %s issued to recipes %d and %d", link.Code, prev, recipe.ID)
		seen[link.Code] = recipe.ID
	}
}

func TestShortLinkResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := testhelpers.CreateUser(t, f.db, "chef")
	recipe := testhelpers.CreateRecipe(t, f.db, author, "pie", nil)

	link, err := f.links.GetOrCreate(ctx, recipe.ID)
	require.NoError(t, err)

	id, err := f.links.Resolve(ctx, link.Code)
	require.NoError(t, err)
	assert.Equal(t, recipe.ID, id)

	cached, err := f.redis.Get("short_link:" + link.Code)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(uint64(recipe.ID), 10), cached)

	// a cached code resolves without the row
	require.NoError(t, f.db.Where("code = ?", link.Code).Delete(&models.ShortLink{}).Error)
	id, err = f.links.Resolve(ctx, link.Code)
	require.NoError(t, err)
	assert.Equal(t, recipe.ID, id)
}

func TestShortLinkResolveUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.links.Resolve(context.Background(), "zzz")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestRandomCodeGeneratorShape(t *testing.T) {
	gen := service.NewSeededCodeGenerator(7)
	again := service.NewSeededCodeGenerator(7)
	for i := 0; i < 100; i++ {
		code := gen.Generate()
		assert.Len(t, code, service.ShortLinkLength)
		assert.Equal(t, code, again.Generate())
	}
}
