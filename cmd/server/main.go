package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdojat/fbcloneapi/internal/auth"
	"github.com/abdojat/fbcloneapi/internal/cache"
	"github.com/abdojat/fbcloneapi/internal/handlers"
	"github.com/abdojat/fbcloneapi/internal/jobs"
	"github.com/abdojat/fbcloneapi/internal/middleware"
	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/presence"
	"github.com/abdojat/fbcloneapi/internal/realtime"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/internal/router"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/abdojat/fbcloneapi/pkg/config"
	"github.com/abdojat/fbcloneapi/pkg/firebase"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/abdojat/fbcloneapi/pkg/metrics"
	"github.com/abdojat/fbcloneapi/pkg/push"
	"github.com/abdojat/fbcloneapi/pkg/tracing"
	"github.com/abdojat/fbcloneapi/validators"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	serviceName     = "fbcloneapi"
	userCacheTTL    = 10 * time.Minute
	rateLimiterIdle = 10 * time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	// Load configuration
	cfg := config.Load()

	if err := logger.Init(cfg.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.L().Fatal("failed to initialize databases", zap.Error(err))
	}
	defer db.CloseDB()

	if err := db.Postgres.AutoMigrate(models.All()...); err != nil {
		logger.L().Fatal("failed to auto migrate models", zap.Error(err))
	}
	logger.Info("postgres auto-migrations completed")

	sentryEnabled := false
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			logger.Warn("sentry disabled", zap.Error(err))
		} else {
			sentryEnabled = true
			defer sentry.Flush(2 * time.Second)
		}
	}

	shutdownTracing, err := tracing.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	metrics.Register(prometheus.DefaultRegisterer)

	// --- Repositories ---
	userRepo := repositories.NewPostgresUserRepository(db.Postgres)
	friendshipRepo := repositories.NewPostgresFriendshipRepository(db.Postgres)
	messageRepo := repositories.NewPostgresMessageRepository(db.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres)
	deviceTokenRepo := repositories.NewPostgresDeviceTokenRepository(db.Postgres)
	revokedTokenRepo := repositories.NewPostgresRevokedTokenRepository(db.Postgres)
	savedPostRepo := repositories.NewPostgresSavedPostRepository(db.Postgres)
	postRepo := repositories.NewMongoPostRepository(db.Mongo.Database(cfg.MongoDB))

	// Firebase is optional. Without it there is no push delivery and no Firebase login.
	var (
		pushQueue        services.PushQueue
		dispatcher       *services.PushDispatcher
		firebaseVerifier middleware.IDTokenVerifier
	)
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FCMServiceAccountJSON)
	if err != nil {
		logger.Warn("firebase disabled", zap.Error(err))
	} else {
		dispatcher = services.NewPushDispatcher(push.NewFCMSender(firebaseApp.MessagingClient), deviceTokenRepo, cfg.PushWorkers, cfg.PushQueueSize)
		pushQueue = dispatcher
		firebaseVerifier = firebaseApp.AuthClient
	}

	var userCache *cache.UserCache
	if db.Redis != nil {
		userCache = cache.NewUserCache(db.Redis, userCacheTTL)
	}

	// --- Services ---
	registry := presence.NewRegistry()
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL, revokedTokenRepo)
	directory := services.NewUserDirectory(userRepo, userCache)
	notifications := services.NewNotificationService(notificationRepo, deviceTokenRepo, directory, postRepo, registry, pushQueue)
	chat := services.NewChatService(messageRepo, directory, notifications, registry)
	friends := services.NewFriendService(friendshipRepo, userRepo, directory, notifications)
	gateway := realtime.NewGateway(registry, chat, tokens, realtime.Options{})

	var limiter *middleware.IPRateLimiter
	cleanup := jobs.NewCleanup(revokedTokenRepo, notificationRepo, nil)
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, rateLimiterIdle)
		cleanup = jobs.NewCleanup(revokedTokenRepo, notificationRepo, limiter)
	}
	if err := cleanup.Start(); err != nil {
		logger.L().Fatal("failed to schedule maintenance jobs", zap.Error(err))
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = handlers.HTTPErrorHandler(cfg.Env)

	router.SetupMiddleware(e, limiter, sentryEnabled)
	router.SetupRoutes(e, router.Deps{
		DB:               db.Postgres,
		Users:            userRepo,
		Friendships:      friendshipRepo,
		Posts:            postRepo,
		SavedPosts:       savedPostRepo,
		Tokens:           tokens,
		FirebaseVerifier: firebaseVerifier,
		Directory:        directory,
		Notifications:    notifications,
		Chat:             chat,
		Friends:          friends,
		Gateway:          gateway,
	})

	// Start server
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	gateway.Shutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	cleanup.Stop(shutdownCtx)
	if dispatcher != nil {
		if err := dispatcher.Stop(shutdownCtx); err != nil {
			logger.Warn("push dispatcher did not drain", zap.Error(err))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
