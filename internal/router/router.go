package router

import (
	"github.com/abdojat/fbcloneapi/internal/auth"
	"github.com/abdojat/fbcloneapi/internal/handlers"
	"github.com/abdojat/fbcloneapi/internal/middleware"
	"github.com/abdojat/fbcloneapi/internal/realtime"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps carries everything the routes need. FirebaseVerifier is nil when Firebase is
// not configured, which disables /auth/firebase-login.
type Deps struct {
	DB               *gorm.DB
	Users            repositories.UserRepository
	Friendships      repositories.FriendshipRepository
	Posts            repositories.PostRepository
	SavedPosts       repositories.SavedPostRepository
	Tokens           *auth.TokenService
	FirebaseVerifier middleware.IDTokenVerifier
	Directory        *services.UserDirectory
	Notifications    *services.NotificationService
	Chat             *services.ChatService
	Friends          *services.FriendService
	Gateway          *realtime.Gateway
}

// SetupMiddleware configures global Echo middleware. limiter may be nil.
func SetupMiddleware(e *echo.Echo, limiter *middleware.IPRateLimiter, sentryEnabled bool) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	e.Use(eMiddleware.RequestIDWithConfig(eMiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	if sentryEnabled {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	e.Use(eMiddleware.RequestLoggerWithConfig(eMiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v eMiddleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("requestId", v.RequestID),
			}
			if v.Error != nil {
				logger.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Metrics())
	if limiter != nil {
		e.Use(limiter.Middleware())
	}
	logger.Info("global middleware configured", zap.Bool("rateLimit", limiter != nil), zap.Bool("sentry", sentryEnabled))
}

// SetupRoutes configures all application routes.
func SetupRoutes(e *echo.Echo, d Deps) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/ws", d.Gateway.Handle)

	api := e.Group("/api")
	api.GET("/health", handlers.NewHealthHandler(d.DB).HealthCheck)

	requireAuth := middleware.JWTAuthMiddleware(d.Tokens)

	// --- Users and authentication ---
	authHandler := handlers.NewAuthHandler(d.Users, d.Tokens, d.Directory)
	authHandler.RegisterAuthRoutes(api.Group("/users"))
	if d.FirebaseVerifier != nil {
		authHandler.RegisterFirebaseRoutes(api.Group("/users"), middleware.FirebaseAuthMiddleware(d.FirebaseVerifier))
	} else {
		logger.Warn("firebase not configured, /api/users/firebase-login disabled")
	}

	users := api.Group("/users", requireAuth)
	authHandler.RegisterSessionRoutes(users)
	handlers.NewSavedPostHandler(d.SavedPosts, d.Posts).RegisterSavedPostRoutes(users)
	handlers.NewUserHandler(d.Users, d.Friendships, d.Posts, d.Directory).RegisterUserRoutes(users)

	// --- Posts and feed ---
	posts := api.Group("/posts", requireAuth)
	handlers.NewFeedHandler(d.Posts, d.Friendships, d.Directory).RegisterFeedRoutes(posts)
	handlers.NewPostHandler(d.Posts, d.Directory, d.Notifications).RegisterPostRoutes(posts)

	// --- Friends, chat, notifications ---
	handlers.NewFriendshipHandler(d.Friends).RegisterFriendshipRoutes(api.Group("/friends", requireAuth))
	handlers.NewChatHandler(d.Chat).RegisterChatRoutes(api.Group("/chat", requireAuth))
	handlers.NewNotificationHandler(d.Notifications).RegisterNotificationRoutes(api.Group("/notification", requireAuth))

	logger.Info("routes configured", zap.Int("count", len(e.Routes())))
}
