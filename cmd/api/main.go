package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_storefront/internal/cache"
	"github.com/GTDGit/gtd_storefront/internal/config"
	"github.com/GTDGit/gtd_storefront/internal/database"
	"github.com/GTDGit/gtd_storefront/internal/handler"
	"github.com/GTDGit/gtd_storefront/internal/middleware"
	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/repository"
	"github.com/GTDGit/gtd_storefront/internal/service"
	"github.com/GTDGit/gtd_storefront/internal/sse"
	"github.com/GTDGit/gtd_storefront/internal/worker"
	"github.com/GTDGit/gtd_storefront/pkg/storefront"
)

// main is the entrypoint of the storefront collection service.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting storefront api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Connect catalog database and migrate
	db, err := database.Connect(ctx, &cfg.DB)
	if err != nil {
		fatal("database connection failed", err)
	}
	defer db.Close()

	if err := database.Migrate(db, cfg.DB.MigrationsDir); err != nil {
		fatal("migration failed", err)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		fatal("redis connection failed", err)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	productRepo := repository.NewProductRepository(db)

	// 4. Collection store
	health := map[string]handler.Pinger{
		"database": productRepo,
		"redis":    redisClient,
	}
	var store cache.Store
	switch cfg.Store.Driver {
	case "sqlite":
		sqliteStore, err := repository.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			fatal("sqlite store initialization failed", err)
		}
		defer sqliteStore.Close()
		health["store"] = sqliteStore
		store = sqliteStore
	case "memory":
		log.Warn().Msg("Using in-memory collection store; collections will not survive restarts")
		store = cache.NewMemoryStore()
	default:
		store = cache.NewRedisStore(redisClient, cfg.Store.TTL)
	}

	// 5. Catalog
	var catalog service.ProductCatalog = productRepo
	if cfg.Catalog.CacheTTL > 0 {
		catalog = cache.NewProductCache(redisClient, productRepo, cfg.Catalog.CacheTTL)
	}

	// 6. Services
	hub := sse.NewHub()
	remoteClient := storefront.NewClient(storefront.Config{
		BaseURL: cfg.Remote.BaseURL,
		Timeout: cfg.Remote.Timeout,
	})
	sessions := service.NewSessionService(
		catalog,
		service.NewStockResolver(),
		service.NewPriceResolver(cfg.Pricing.GatePrices),
		store,
		sse.NewHubNotifier(hub),
		service.StorefrontRemotes(remoteClient),
	)

	// 7. Handlers
	handlers := &Handlers{
		Health:     handler.NewHealthHandler(health),
		Collection: handler.NewCollectionHandler(sessions),
		Session:    handler.NewSessionHandler(sessions),
		Product:    handler.NewProductHandler(catalog, sessions),
		SSE:        handler.NewSSEHandler(hub),
	}

	// 8. Middleware
	rateLimiter := middleware.NewInvalidAuthRateLimiter(cfg.AuthFailureLimit, time.Minute)
	go rateLimiter.Cleanup(ctx, 5*time.Minute)
	jwtMw := middleware.NewJWTMiddleware(cfg.JWTSecret, rateLimiter)

	// 9. Router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SessionMiddleware())
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, jwtMw)

	// 10. Workers
	if cfg.Worker.ReconcileInterval > 0 {
		go worker.NewReconcileWorker(sessions, cfg.Worker.ReconcileInterval).Start(ctx)
	}
	if cfg.Worker.SweepInterval > 0 {
		go worker.NewSessionSweepWorker(sessions, cfg.Worker.SweepInterval, cfg.Worker.SessionIdleTTL).Start(ctx)
	}

	// 11. HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health     *handler.HealthHandler
	Collection *handler.CollectionHandler
	Session    *handler.SessionHandler
	Product    *handler.ProductHandler
	SSE        *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware) {
	router.GET("/v1/health", handlers.Health.GetHealth)

	v1 := router.Group("/v1")
	v1.Use(jwtMiddleware.Optional())
	{
		for _, kind := range models.Kinds {
			handlers.Collection.Register(v1.Group("/"+string(kind)), kind)
		}

		v1.GET("/products/:id/quote", handlers.Product.GetQuote)
		v1.GET("/events", handlers.SSE.Stream)
		v1.POST("/session/logout", handlers.Session.Logout)
	}

	router.POST("/v1/session/login", jwtMiddleware.Required(), handlers.Session.Login)
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func fatal(msg string, err error) {
	log.Error().Err(err).Msg(msg)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
