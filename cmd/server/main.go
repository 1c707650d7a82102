package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/tradejournal/internal/config"
	"github.com/tradejournal/internal/handler"
	"github.com/tradejournal/internal/middleware"
	"github.com/tradejournal/internal/models"
	"github.com/tradejournal/internal/ratelimit"
	"github.com/tradejournal/internal/repository"
	"github.com/tradejournal/internal/service"
	"github.com/tradejournal/internal/storage"
	"github.com/tradejournal/internal/worker"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const megabyte = 1 << 20

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger, err := middleware.InitLogger(cfg.Log)
	if err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)

	db, err := initDatabase(cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}

	rdb := initRedis(cfg)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).WithField("policy", cfg.RateLimit.Policy).Warn("redis unreachable, rate limiter will apply its failure policy")
	}
	cancelPing()

	if err := autoMigrate(db); err != nil {
		logger.WithError(err).Fatal("failed to migrate database")
	}

	objectStore, err := storage.NewLocalStore(cfg.Storage.Dir)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize object storage")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	journalRepo := repository.NewJournalRepository(db)
	mediaRepo := repository.NewMediaRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.JWT)
	tradeService := service.NewTradeService(tradeRepo, service.ImportOptions{
		Delimiter:       cfg.Import.DelimiterRune(),
		Source:          models.ImportSource(cfg.Import.Source),
		SkipInvalidRows: cfg.Import.SkipInvalidRows,
	}, logger.WithField("component", "import"))
	journalService := service.NewJournalService(journalRepo, tradeRepo)
	mediaService := service.NewMediaService(
		mediaRepo,
		tradeRepo,
		journalRepo,
		objectStore,
		int64(cfg.Storage.MaxUploadMB)*megabyte,
		logger.WithField("component", "media"),
	)
	analyticsService := service.NewAnalyticsService(tradeRepo)

	limits, err := initRateLimits(cfg.RateLimit, rdb, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize rate limits")
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, logger)
	tradeHandler := handler.NewTradeHandler(tradeService, int64(cfg.Import.MaxFileMB)*megabyte, logger)
	journalHandler := handler.NewJournalHandler(journalService, logger)
	mediaHandler := handler.NewMediaHandler(mediaService, int64(cfg.Storage.MaxUploadMB)*megabyte, logger)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, logger)

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(corsMiddleware())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		checks := gin.H{"database": "ok", "redis": "ok"}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		// redis only backs the rate limiter, which degrades by policy
		if err := rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
		}

		c.JSON(status, gin.H{
			"status":     http.StatusText(status),
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
			"time":       time.Now().Unix(),
			"checks":     checks,
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		authHandler.RegisterRoutes(v1, limits.Auth)

		authMiddleware := middleware.AuthMiddleware(authService)
		tradeHandler.RegisterRoutes(v1, authMiddleware, limits)
		journalHandler.RegisterRoutes(v1, authMiddleware, limits)
		mediaHandler.RegisterRoutes(v1, authMiddleware, limits)
		analyticsHandler.RegisterRoutes(v1, authMiddleware)
	}

	sweeper := worker.NewMediaSweeper(mediaRepo, objectStore, cfg.Storage.SweepInterval, logger)
	go sweeper.Start()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	sweeper.Stop()

	// Graceful shutdown with 10 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}

	if err := rdb.Close(); err != nil {
		logger.WithError(err).Warn("error closing redis connection")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Info("server exited properly")
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// initRateLimits builds one middleware per configured rule.
// Auth routes are keyed by client IP, everything else by user.
func initRateLimits(cfg config.RateLimitConfig, rdb *redis.Client, logger *logrus.Logger) (handler.RateLimits, error) {
	if !cfg.Enabled {
		logger.Warn("rate limiting disabled")
		return handler.RateLimits{}, nil
	}

	policy, err := ratelimit.ParsePolicy(cfg.Policy)
	if err != nil {
		return handler.RateLimits{}, err
	}
	backend := ratelimit.NewRedisBackend(rdb)
	log := logger.WithField("component", "ratelimit")

	build := func(name string, keyFunc middleware.KeyFunc) gin.HandlerFunc {
		rule, ok := cfg.Rules[name]
		if !ok {
			return nil
		}
		limiter := ratelimit.New(backend, ratelimit.Rule{Name: name, Limit: rule.Limit, Window: rule.Window}, policy, log)
		log.WithFields(logrus.Fields{
			"rule":   name,
			"limit":  limiter.Limit(),
			"window": limiter.Window().String(),
		}).Info("rate limit rule loaded")
		return middleware.RateLimit(limiter, keyFunc)
	}

	return handler.RateLimits{
		Auth:   build(config.RuleAuth, middleware.ByIP),
		Write:  build(config.RuleWrite, middleware.ByUserOrIP),
		Import: build(config.RuleImport, middleware.ByUserOrIP),
		Upload: build(config.RuleUpload, middleware.ByUserOrIP),
	}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Trade{},
		&models.JournalEntry{},
		&models.Media{},
	)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
