package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"djqueue-backend/internal/config"
	"djqueue-backend/internal/handlers"
	"djqueue-backend/internal/queue"
	"djqueue-backend/internal/repository"
	"djqueue-backend/internal/repository/memstore"
	"djqueue-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Local overrides; absent in deployed environments
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to database
	store, closeStore := openStore(ctx, cfg.Database)
	defer closeStore()

	// Identity provider
	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token verifier")
	}
	defer verifier.Close()

	// Rate limiter
	var limiter redis.Scripter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, rate limiting disabled")
		} else {
			limiter = rdb
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
		}
	}

	// Push channels
	wsHub := services.NewWSHub()
	fanOut := services.NewFanOut()
	fanOut.Add("websocket", wsHub)

	var apnsDeliverer *services.APNsDeliverer
	if cfg.APNs.KeyPath != "" {
		client, err := services.NewAPNsClient(cfg.APNs.KeyPath, cfg.APNs.KeyID, cfg.APNs.TeamID, cfg.APNs.Production)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		apnsDeliverer = services.NewAPNsDeliverer(client, cfg.APNs.Topic, store)
	}

	var publisher *queue.Publisher
	if cfg.AMQP.URL != "" {
		publisher = queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		defer publisher.Close()
		fanOut.Add("amqp", publisher)
	}

	consumerDone := make(chan struct{})
	if publisher != nil && cfg.AMQP.ConsumePush && apnsDeliverer != nil {
		consumer := queue.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, cfg.AMQP.PrefetchCount, apnsDeliverer.Deliver)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Notification consumer stopped")
			}
		}()
	} else {
		close(consumerDone)
		if apnsDeliverer != nil {
			fanOut.Add("apns", apnsDeliverer)
		}
	}

	dispatcher := services.NewDispatcher(fanOut, 0)

	// Initialize services
	userService := services.NewUserService(store)
	eventService := services.NewEventService(store, dispatcher)
	messageService := services.NewMessageService(store, dispatcher)
	ratingService := services.NewRatingService(store, dispatcher)
	notificationService := services.NewNotificationService(store)

	var avatarService *services.AvatarService
	if cfg.AWS.S3Bucket != "" {
		s3Opts := services.S3Options{
			Region:        cfg.AWS.Region,
			Bucket:        cfg.AWS.S3Bucket,
			AccessKey:     cfg.AWS.AccessKey,
			SecretKey:     cfg.AWS.SecretKey,
			Endpoint:      cfg.AWS.Endpoint,
			PublicBaseURL: cfg.AWS.PublicBaseURL,
		}
		presigner, err := services.NewS3Presigner(ctx, s3Opts)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create avatar service")
		}
		avatarService = services.NewAvatarService(store, presigner, s3Opts)
	}

	// Setup router
	router := handlers.NewRouter(handlers.RouterDeps{
		Verifier:      verifier,
		Resolver:      userService,
		RateLimit:     cfg.RateLimit,
		Limiter:       limiter,
		Users:         handlers.NewUserHandler(userService, avatarService),
		Events:        handlers.NewEventHandler(eventService),
		Messages:      handlers.NewMessageHandler(messageService),
		Ratings:       handlers.NewRatingHandler(ratingService),
		Notifications: handlers.NewNotificationHandler(notificationService),
		WebSocket:     handlers.NewWebSocketHandler(wsHub, verifier, userService, notificationService),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Int("push_channels", fanOut.Len()).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain pending pushes before the transports close
	dispatcher.Close()
	stop()
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Notification consumer did not stop in time")
	}

	log.Info().Msg("Server exited")
}

// openStore connects the configured persistence backend
func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, func()) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		return memstore.New(), func() {}
	}

	db, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Test database connection
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	store := repository.NewPostgresStore(db, cfg.MaxTxRetries)
	if cfg.Migrate {
		if err := store.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
		log.Info().Msg("Database schema applied")
	}
	return store, db.Close
}

// newVerifier prefers the identity provider's JWKS over a shared secret
func newVerifier(ctx context.Context, cfg config.AuthConfig) (*services.TokenVerifier, error) {
	if cfg.JWKSURL != "" {
		return services.NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.Issuer)
	}
	return services.NewHMACVerifier(cfg.JWTSecret, cfg.Issuer), nil
}

// setupLogger configures zerolog logger
func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
