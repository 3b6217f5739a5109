package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/meruscrap/pimapos/internal/auth"
	"github.com/meruscrap/pimapos/internal/cache"
	"github.com/meruscrap/pimapos/internal/database"
	"github.com/meruscrap/pimapos/internal/exclusion"
	"github.com/meruscrap/pimapos/internal/guard"
	"github.com/meruscrap/pimapos/internal/handlers"
	"github.com/meruscrap/pimapos/internal/lifecycle"
	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/middleware"
	"github.com/meruscrap/pimapos/internal/permissions"
	"github.com/meruscrap/pimapos/internal/photos"
	"github.com/meruscrap/pimapos/internal/queue"
	"github.com/meruscrap/pimapos/internal/realtime"
	"github.com/meruscrap/pimapos/internal/session"
	"github.com/meruscrap/pimapos/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// refresher wires the resume steps: business data first, then the
// notification working set.
type refresher struct {
	queue *queue.Queue
	store *store.Store
	db    databaseHealth
}

type databaseHealth interface{ Health() error }

type dbHealth struct{}

func (dbHealth) Health() error { return database.Health() }

func (r *refresher) RefreshData(ctx context.Context) error {
	if err := r.db.Health(); err != nil {
		return err
	}
	swept, err := session.SweepStale(database.DB)
	if err != nil {
		return err
	}
	if swept > 0 {
		logger.Log.Info("Swept stale sessions", zap.Int64("count", swept))
	}
	return nil
}

func (r *refresher) RefreshNotifications(ctx context.Context) error {
	items, err := r.store.Load(ctx)
	if err != nil {
		return err
	}
	r.queue.Replace(items)
	return nil
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	logger.Log.Info("=== PimaPOS notification service starting ===")

	// Initialize database
	if err := database.Initialize(); err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		logger.Log.Fatal("JWT_SECRET environment variable is required")
	}

	// Exclusion sets: Redis-backed when available so a page reload on the same
	// terminal keeps its handled/dismissed memory, in-process otherwise.
	var handledSet, dismissedSet exclusion.Store
	if host := os.Getenv("REDIS_HOST"); host != "" {
		redisClient, err := cache.NewRedisClient(host, os.Getenv("REDIS_PORT"), os.Getenv("REDIS_PASSWORD"))
		if err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		handledSet = exclusion.NewRedisStore(redisClient, "handled", store.HandledRetention)
		dismissedSet = exclusion.NewRedisStore(redisClient, "dismissed", store.DismissedRetention)
		logger.Log.Info("Using Redis-backed exclusion sets", zap.String("host", host))
	} else {
		handledSet = exclusion.NewMemoryStore()
		dismissedSet = exclusion.NewMemoryStore()
		logger.Log.Info("Using in-memory exclusion sets")
	}

	// Session registry: this process's identity for attribution and
	// cross-session reconciliation.
	hostname, _ := os.Hostname()
	registry := session.NewRegistry(database.DB, os.Getenv("POS_TERMINAL_USER"), hostname)
	if err := registry.Start(); err != nil {
		logger.Log.Fatal("Failed to register session", zap.Error(err))
	}
	defer registry.Stop()

	// Photo fetcher with bounded retry
	fetcher := photos.NewFetcher(photos.NewGormSource(database.DB))

	// Notification store and queue
	st := store.New(store.NewGormRows(database.DB), fetcher, handledSet, dismissedSet)
	st.StartCleanup()
	defer st.StopCleanup()

	q := queue.New(st, registry)
	q.SetCloseDelay(300 * time.Millisecond)
	q.SetRefreshFunc(func(ctx context.Context) error {
		items, err := st.Load(ctx)
		if err != nil {
			return err
		}
		q.Replace(items)
		return nil
	})

	// Auth provider and permission session
	tokens := auth.NewTokenProvider(jwtSecret)
	perms := permissions.NewSession(tokens, nil)
	perms.Start()
	defer perms.Stop()

	// Lifecycle controller
	ref := &refresher{queue: q, store: st, db: dbHealth{}}
	lc := lifecycle.NewController(lifecycle.DefaultConfig(), ref, q.Clear)
	lc.Start()
	defer lc.Stop()

	// Navigation guard
	g := guard.New(q, st)

	// Realtime change feed
	feedURL := os.Getenv("REALTIME_URL")
	if feedURL == "" {
		feedURL = "ws://localhost:4000/realtime"
	}
	feed := realtime.NewWebsocketFeed(feedURL, os.Getenv("REALTIME_TOKEN"))
	defer feed.Close()

	bridge := realtime.NewBridge(feed, q, st, fetcher, registry.SessionID())
	if err := bridge.Start(); err != nil {
		logger.Log.Fatal("Failed to start realtime bridge", zap.Error(err))
	}
	defer bridge.Stop()

	// Initial load
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if items, err := st.Load(ctx); err != nil {
		logger.Log.Error("Initial notification load failed", zap.Error(err))
	} else {
		q.Replace(items)
		logger.Log.Info("Loaded pending notifications", zap.Int("count", len(items)))
	}
	cancel()

	// Initialize handlers
	h := handlers.NewHandlers(q, st, g, lc, perms, registry, tokens, fetcher)

	// Setup Gin router
	if os.Getenv("ENVIRONMENT") != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.GinLogger())
	r.Use(middleware.Metrics())
	r.Use(middleware.RateLimit())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// CORS middleware
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"} // Configure properly for production
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := database.Health(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "pimapos-notifications",
			"session":   registry.SessionID(),
		})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := r.Group("/api/v1")
	api.Use(h.AuthMiddleware())
	{
		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.GetNotifications)
			notifications.GET("/counts", h.GetNotificationCounts)
			notifications.POST("/read", h.MarkNotificationsRead)
			notifications.POST("/:id/read", h.MarkNotificationRead)
			notifications.POST("/:id/open", h.OpenNotification)
		}

		queueGroup := api.Group("/queue")
		{
			queueGroup.GET("", h.GetQueue)
			queueGroup.POST("/next", h.NavigateNext)
			queueGroup.POST("/previous", h.NavigatePrevious)
			queueGroup.POST("/handle", h.HandleCurrent)
			queueGroup.POST("/dismiss", h.DismissCurrent)
			queueGroup.POST("/photos/retry", h.RetryPhotos)
		}

		navigation := api.Group("/navigation")
		{
			navigation.GET("", h.GetNavigationState)
			navigation.POST("/attempt", h.AttemptNavigation)
		}

		api.GET("/recovery/pending", h.GetPendingRecovery)

		lifecycleGroup := api.Group("/lifecycle")
		{
			lifecycleGroup.GET("", h.GetLifecycleState)
			lifecycleGroup.POST("/events", h.PostLifecycleEvent)
			lifecycleGroup.POST("/recover", middleware.RateLimitRecovery(), h.ForceRecovery)
		}

		sessionGroup := api.Group("/session")
		{
			sessionGroup.GET("", h.GetSession)
			sessionGroup.POST("/refresh", h.RefreshSession)
		}
	}

	// Server configuration
	port := os.Getenv("PORT")
	if port == "" {
		port = "8787"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("PimaPOS notification service listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}
