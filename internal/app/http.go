package app

import (
	"context"
	"errors"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/admin"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/arbiter"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/auth"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/catalog"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/config"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/mediastore"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/public"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/session"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/stats"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
)

// mediaCleaner ties the blob store's orphan sweep to the catalog.
type mediaCleaner struct {
	store   *mediastore.Store
	catalog *catalog.Service
}

func (m *mediaCleaner) Cleanup(ctx context.Context) error {
	return m.store.CleanupOrphans(ctx, m.catalog)
}

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	if cfg.JWTSecret == "" {
		return nil, nil, errors.New("JWT_SECRET is required")
	}

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	catalogService := catalog.NewService(infra.DB)

	var sessionStore session.Store
	if infra.Redis != nil {
		sessionStore = session.NewRedisStore(infra.Redis.Client)
	} else {
		sessionStore = session.NewMemoryStore()
	}

	sessionArbiter := arbiter.New(sessionStore, catalogService, arbiter.ExactMatcher{})
	recorder := stats.NewRecorder(stats.NewPGStore(infra.DB), sessionStore, catalogService)

	mediaStore, err := mediastore.New(afero.NewOsFs(), cfg.MediaDir)
	if err != nil {
		return nil, nil, err
	}

	authService := auth.NewService(infra.DB)
	if err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return nil, nil, err
	}
	tokenIssuer := auth.NewTokenIssuer(cfg.JWTSecret)

	cleaner := &mediaCleaner{store: mediaStore, catalog: catalogService}

	authHandler := auth.NewHandler(authService, tokenIssuer, cleaner)
	publicHandler := public.NewHandler(sessionArbiter, recorder, catalogService)
	adminHandler := admin.NewHandler(catalogService, mediaStore, recorder, sessionArbiter)

	// ----------------------------
	// Router
	// ----------------------------

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)
	publicHandler.RegisterRoutes(router)

	router.Static("/media", mediaStore.Dir())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ----------------------------
	// Protected Admin Routes
	// ----------------------------

	adminGroup := router.Group("/admin")
	adminGroup.Use(auth.RequireAdmin(tokenIssuer, authService))
	adminHandler.RegisterRoutes(adminGroup)

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		if infra.Redis != nil {
			_ = infra.Redis.Close()
		}
		return infra.DB.Close()
	}, nil
}
