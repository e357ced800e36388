package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Server represents the HTTP server
type Server struct {
	cfg     *config.Config
	router  *gin.Engine
	http    *http.Server
	metrics *middleware.Metrics
}

// NewDeps builds the services behind the API. rdb may be nil, in which case
// token revocation, the short-link cache and rate limiting are disabled.
func NewDeps(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client) (api.Deps, error) {
	store, err := NewImageStore(ctx, cfg)
	if err != nil {
		return api.Deps{}, err
	}
	images := service.NewImageService(store)
	links := service.NewShortLinkService(db, service.NewRandomCodeGenerator(), rdb, cfg.PublicURL)

	deps := api.Deps{
		DB:        db,
		Auth:      service.NewAuthService(db, cfg.JWTSecret, cfg.JWTTTL, rdb),
		Users:     service.NewUserService(db, images),
		Recipes:   service.NewRecipeService(db, images, links),
		Catalog:   service.NewCatalogService(db),
		Links:     links,
		Shopping:  service.NewShoppingListService(db),
		PublicURL: cfg.PublicURL,
		PageSize:  cfg.PageSize,
	}
	if rdb != nil && cfg.RecipeCreateLimit > 0 {
		deps.CreateLimiter = middleware.NewRecipeCreationRateLimiter(rdb, cfg.RecipeCreateLimit)
	}
	return deps, nil
}

// NewImageStore selects the configured media backend
func NewImageStore(ctx context.Context, cfg *config.Config) (service.ImageStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		s3cfg, err := config.NewS3Config(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return service.NewS3ImageStore(s3cfg), nil
	case config.StorageLocal:
		return service.NewLocalImageStore(cfg.MediaRoot, cfg.MediaURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

// New creates the router with the middleware chain, API routes, metrics and
// (for local storage) the media file server.
func New(cfg *config.Config, deps api.Deps) (*Server, error) {
	if cfg.Environment.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := middleware.NewMetrics()
	if deps.DB != nil {
		if sqlDB, err := deps.DB.DB(); err == nil {
			if err := metrics.Registry().Register(collectors.NewDBStatsCollector(sqlDB, "foodgram")); err != nil {
				return nil, fmt.Errorf("register db stats collector: %w", err)
			}
		}
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging())
	router.Use(middleware.Recovery())
	router.Use(metrics.Middleware())
	router.Use(middleware.CORS(cfg.CORSOrigins))

	if err := api.RegisterRoutes(router, deps); err != nil {
		return nil, err
	}
	router.GET("/metrics", metrics.Handler())
	if cfg.StorageBackend == config.StorageLocal {
		router.Static("/media", cfg.MediaRoot)
	}

	return &Server{
		cfg:     cfg,
		router:  router,
		metrics: metrics,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.ServerHost, cfg.ServerPort),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Logger.Info().Str("addr", s.http.Addr).Msg("starting http server")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Logger.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
