package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
)

// Deps carries everything the HTTP layer needs
type Deps struct {
	DB       *gorm.DB
	Auth     service.IAuthService
	Users    service.IUserService
	Recipes  service.IRecipeService
	Catalog  service.ICatalogService
	Links    service.IShortLinkService
	Shopping service.IShoppingListService

	// CreateLimiter throttles recipe creation; nil disables it
	CreateLimiter *middleware.RateLimiter

	PublicURL string
	PageSize  int
}

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, deps Deps) error {
	if err := RegisterValidators(); err != nil {
		return err
	}
	if deps.PageSize <= 0 {
		deps.PageSize = service.DefaultPageSize
	}

	router.GET("/health", HealthCheck(deps.DB))
	router.GET("/api/health", HealthCheck(deps.DB))

	requireAuth := middleware.AuthMiddleware(deps.Auth)
	optionalAuth := middleware.OptionalAuth(deps.Auth)

	api := router.Group("/api")
	NewAuthHandler(deps.Auth).RegisterRoutes(api, requireAuth)
	NewUserHandler(deps.Users, deps.PublicURL, deps.PageSize).RegisterRoutes(api, requireAuth, optionalAuth)
	NewCatalogHandler(deps.Catalog).RegisterRoutes(api)
	NewRecipeHandler(deps, deps.PageSize).RegisterRoutes(api, requireAuth, optionalAuth)

	links := NewShortLinkHandler(deps.Links, deps.PublicURL)
	router.GET("/s/:code", links.Redirect)
	router.GET("/s/:code/", links.Redirect)

	if deps.CreateLimiter != nil {
		RegisterRateLimitRoutes(api, requireAuth, deps.CreateLimiter)
	}
	return nil
}

// HealthCheck reports whether the database answers
func HealthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := database.HealthCheck(ctx, db); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}

// RegisterRateLimitRoutes exposes the caller's remaining recipe-creation budget
func RegisterRateLimitRoutes(router *gin.RouterGroup, requireAuth gin.HandlerFunc, limiter *middleware.RateLimiter) {
	router.GET("/recipes/rate_limit/", requireAuth, func(c *gin.Context) {
		subject := strconv.FormatUint(uint64(middleware.UserID(c)), 10)
		remaining, resetTime, err := limiter.GetRemainingRequests(c.Request.Context(), subject)
		if err != nil {
			respondError(c, err)
			return
		}
		limit, window := limiter.Limits()
		c.JSON(http.StatusOK, gin.H{
			"limit":      limit,
			"remaining":  remaining,
			"reset_time": resetTime.Unix(),
			"window":     window.String(),
		})
	})
}

// parseID reads a positive integer path parameter
func parseID(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		notFound(c)
		return 0, false
	}
	return uint(n), true
}
