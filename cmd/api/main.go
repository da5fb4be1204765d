package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-system/internal/config"
	"github.com/fairyhunter13/scalable-coupon-system/internal/eventlog"
	"github.com/fairyhunter13/scalable-coupon-system/internal/handler"
	"github.com/fairyhunter13/scalable-coupon-system/internal/repository"
	"github.com/fairyhunter13/scalable-coupon-system/internal/service"
	"github.com/fairyhunter13/scalable-coupon-system/internal/store"
	internalvalidator "github.com/fairyhunter13/scalable-coupon-system/internal/validator"
	"github.com/fairyhunter13/scalable-coupon-system/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Initialize the in-memory decision store (C1/C2)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	storeClient := store.NewClient(rdb)

	// Initialize the durable event log producer (C3)
	producer, err := eventlog.NewProducer(eventlog.ProducerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topic,
		PublishBudget: cfg.Kafka.PublishBudget,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize event log producer")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Scalable Coupon System",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator (registers "notblank" on top of go-playground's
	// built-in tags, per internal/validator)
	validate := internalvalidator.New()

	// Repositories (C6/C5 persistence)
	eventRepo := repository.NewEventRepository(pool)
	issuanceRepo := repository.NewIssuanceRepository(pool)
	deadLetterRepo := repository.NewDeadLetterRepository(pool)

	// Services
	eventService := service.NewEventService(eventRepo, issuanceRepo, storeClient, cfg.Redis.ParticipantTTL)
	issuanceService := service.NewIssuanceService(storeClient, producer, cfg.Redis.ParticipantTTL)
	deadLetterService := service.NewDeadLetterService(deadLetterRepo)

	// Handlers
	issuanceHandler := handler.NewIssuanceHandler(issuanceService, validate)
	adminHandler := handler.NewAdminHandler(eventService, deadLetterService, validate)
	statusHandler := handler.NewStatusHandler(eventService)
	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"database": pool,
		"store":    storeClient,
		"producer": producer,
	})

	// Routes
	app.Get("/health", healthHandler.Check)

	v1 := app.Group("/api/v1")
	v1.Post("/coupons/issue", issuanceHandler.Issue)
	v1.Get("/coupons/status/:event_id", statusHandler.GetStatus)
	v1.Get("/admin/events", adminHandler.ListEvents)
	v1.Post("/admin/events", adminHandler.CreateEvent)
	v1.Get("/admin/events/:event_id", adminHandler.GetEvent)
	v1.Post("/admin/events/:event_id/stock", adminHandler.InitializeStock)
	v1.Post("/admin/events/:event_id/deactivate", adminHandler.Deactivate)
	v1.Get("/admin/events/:event_id/dead-letters", adminHandler.ListDeadLetters)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close dependencies AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing connections...")
	if err := producer.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error closing event log producer")
	}
	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("error closing store client")
	}
	pool.Close()
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
