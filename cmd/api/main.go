package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	_ "github.com/johnquangdev/meeting-minutes/docs"
	pkgvalidator "github.com/johnquangdev/meeting-minutes/pkg/validator"

	"github.com/johnquangdev/meeting-minutes/internal/adapter/handler"
	"github.com/johnquangdev/meeting-minutes/internal/adapter/repository"
	"github.com/johnquangdev/meeting-minutes/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-minutes/internal/infrastructure/database"
	httpmw "github.com/johnquangdev/meeting-minutes/internal/infrastructure/http/middleware"
	"github.com/johnquangdev/meeting-minutes/internal/infrastructure/storage"
	"github.com/johnquangdev/meeting-minutes/internal/usecase/meeting"
	"github.com/johnquangdev/meeting-minutes/internal/usecase/minutes"
	"github.com/johnquangdev/meeting-minutes/pkg/config"
	"github.com/johnquangdev/meeting-minutes/pkg/jwt"
)

// @title           Meeting Minutes API
// @version         1.0
// @description     Turns meeting recordings into structured minutes with transcripts, decisions, action items and flowcharts

// @BasePath  /v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Echo instance
	e := echo.New()
	e.Validator = pkgvalidator.New()
	e.HideBanner = true
	e.HidePort = false

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.Server.MaxUploadBytes>>10+1024, 10) + "K"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, httpmw.APIKeyHeader, "Cookie"},
		AllowCredentials: true,
	}))

	log.Println("🔧 Initializing dependencies...")

	// Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	if cfg.Database.AutoMigrate {
		if cfg.Server.IsProduction() {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE and run `minutes migrate`.")
		}
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	} else {
		log.Println("🔄 Skipping migrations; run `minutes migrate` to apply them")
	}

	healthChecks := map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error { return pingDB(ctx, db) },
	}

	// Locks shared across instances when Redis is available
	var locker cache.Locker
	if cfg.Redis.Enabled {
		log.Println("📦 Connecting to Redis...")
		redisClient, err := cache.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		locker = cache.NewRedisLocker(redisClient)
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		log.Println("⚠️  Redis disabled, using in-process locks (single instance only)")
		store := cache.NewMemoryStore()
		defer store.Close()
		locker = cache.NewMemoryLocker(store)
	}

	log.Println("🗄️  Initializing object storage...")
	objectStore, err := storage.New(context.Background(), &cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	log.Println("🤖 Initializing minutes pipeline...")
	pipeline, err := minutes.FromConfig(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	log.Printf("✅ Generator: %s, transcriber: %s", cfg.AI.Provider, cfg.AI.Transcriber)

	log.Println("⚙️  Initializing meeting service...")
	meetingService := meeting.NewService(
		repository.NewMeetingRepository(db),
		objectStore,
		locker,
		pipeline,
		meeting.Config{
			Workers:            cfg.Worker.Count,
			QueueSize:          cfg.Worker.QueueSize,
			StaleAfter:         cfg.Worker.StaleAfter,
			SweepInterval:      cfg.Worker.SweepInterval,
			AudioRetentionDays: cfg.Worker.AudioRetentionDays,
			StoragePrefix:      cfg.Storage.Prefix,
			DefaultAPIKey:      cfg.AI.APIKey,
		},
		logger,
	)

	log.Println("🔑 Initializing JWT manager...")
	jwtManager := jwt.NewManager(cfg.JWT.AccessSecret, cfg.JWT.AccessExpiry, cfg.JWT.Issuer)

	log.Println("🛣️  Setting up routes...")
	router := handler.NewRouter(
		cfg,
		handler.NewMeetingHandler(meetingService, cfg.Server.MaxUploadBytes, logger),
		handler.NewFlowchartHandler(logger),
		httpmw.EchoAuth(jwtManager),
		healthChecks,
	)
	router.Setup(e)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := meetingService.StartWorkerPool(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	if path := cfg.Pipeline.PromptsFile; path != "" {
		g.Go(func() error {
			log.Printf("👀 Watching prompts file %s", path)
			if err := pipeline.Prompts().Watch(gCtx, path, logger); err != nil {
				logger.Warn("⚠️ Prompt watcher stopped", zap.String("path", path), zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("🛑 Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("❌ Server forced to shutdown", zap.Error(err))
		}
		if err := meetingService.StopWorkerPool(); err != nil {
			logger.Error("❌ Failed to stop workers", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("❌ Application error", zap.Error(err))
		os.Exit(1)
	}

	log.Println("✅ Server stopped gracefully")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Server.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
