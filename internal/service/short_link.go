package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

const (
	ShortLinkAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	ShortLinkLength   = 3

	// DefaultShortLinkAttempts bounds collision retries before failing closed
	DefaultShortLinkAttempts = 10

	shortLinkCachePrefix = "short_link:"
	shortLinkCacheTTL    = 24 * time.Hour
)

// CodeGenerator draws candidate short-link codes
type CodeGenerator interface {
	Generate() string
}

// RandomCodeGenerator samples each character uniformly from ShortLinkAlphabet.
// It is not cryptographically secure.
type RandomCodeGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomCodeGenerator() *RandomCodeGenerator {
	return NewSeededCodeGenerator(rand.Uint64())
}

// NewSeededCodeGenerator gives a reproducible sequence, for tests.
func NewSeededCodeGenerator(seed uint64) *RandomCodeGenerator {
	return &RandomCodeGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *RandomCodeGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := make([]byte, ShortLinkLength)
	for i := range b {
		b[i] = ShortLinkAlphabet[g.rng.IntN(len(ShortLinkAlphabet))]
	}
	return string(b)
}

type ShortLinkService struct {
	db          *gorm.DB
	gen         CodeGenerator
	cache       *redis.Client
	maxAttempts int
	baseURL     string
}

// NewShortLinkService builds the issuer. cache may be nil.
func NewShortLinkService(db *gorm.DB, gen CodeGenerator, cache *redis.Client, baseURL string) *ShortLinkService {
	if gen == nil {
		gen = NewRandomCodeGenerator()
	}
	return &ShortLinkService{
		db:          db,
		gen:         gen,
		cache:       cache,
		maxAttempts: DefaultShortLinkAttempts,
		baseURL:     baseURL,
	}
}

// WithMaxAttempts overrides the retry bound.
func (s *ShortLinkService) WithMaxAttempts(n int) *ShortLinkService {
	if n > 0 {
		s.maxAttempts = n
	}
	return s
}

// URL renders the public short URL for a code
func (s *ShortLinkService) URL(code string) string {
	return s.baseURL + "/s/" + code
}

// GetOrCreate returns the recipe's existing code or issues a new unique one.
// The unique index on code is the real guard; the pre-check only avoids
// pointless insert failures.
func (s *ShortLinkService) GetOrCreate(ctx context.Context, recipeID uint) (*models.ShortLink, error) {
	db := s.db.WithContext(ctx)

	var recipeCount int64
	if err := db.Model(&models.Recipe{}).Where("id = ?", recipeID).Count(&recipeCount).Error; err != nil {
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}
	if recipeCount == 0 {
		return nil, fmt.Errorf("recipe: %w", ErrNotFound)
	}

	if link, err := s.findByRecipe(db, recipeID); err != nil || link != nil {
		return link, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code := s.gen.Generate()

		var taken int64
		if err := db.Model(&models.ShortLink{}).Where("code = ?", code).Count(&taken).Error; err != nil {
			return nil, fmt.Errorf("failed to check short link: %w", err)
		}
		if taken > 0 {
			logger.Debug(ctx).Str("code", code).Int("attempt", attempt).Msg("short link collision")
			continue
		}

		link := models.ShortLink{Code: code, RecipeID: recipeID}
		err := db.Omit(clause.Associations).Create(&link).Error
		if err == nil {
			return &link, nil
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create short link: %w", err)
		}

		// Either the code was taken concurrently or another request issued a
		// link for this recipe first; the latter must win.
		if existing, ferr := s.findByRecipe(db, recipeID); ferr != nil || existing != nil {
			return existing, ferr
		}
		logger.Debug(ctx).Str("code", code).Int("attempt", attempt).Msg("short link insert collision")
	}

	logger.Warn(ctx).Uint("recipe_id", recipeID).Int("attempts", s.maxAttempts).Msg("short link space exhausted")
	return nil, ErrShortLinkExhausted
}

// Resolve maps a code to its recipe id
func (s *ShortLinkService) Resolve(ctx context.Context, code string) (uint, error) {
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, shortLinkCachePrefix+code).Result(); err == nil {
			if id, perr := strconv.ParseUint(v, 10, 64); perr == nil {
				return uint(id), nil
			}
		} else if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx).Err(err).Msg("short link cache read failed")
		}
	}

	var link models.ShortLink
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&link).Error; err != nil {
		return 0, notFoundOr(err, "short link")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, shortLinkCachePrefix+code, link.RecipeID, shortLinkCacheTTL).Err(); err != nil {
			logger.Warn(ctx).Err(err).Msg("short link cache write failed")
		}
	}
	return link.RecipeID, nil
}

func (s *ShortLinkService) evict(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, shortLinkCachePrefix+code).Err(); err != nil {
		logger.Warn(ctx).Err(err).Msg("short link cache evict failed")
	}
}

func (s *ShortLinkService) findByRecipe(db *gorm.DB, recipeID uint) (*models.ShortLink, error) {
	var link models.ShortLink
	res := db.Where("recipe_id = ?", recipeID).Limit(1).Find(&link)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load short link: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &link, nil
}
