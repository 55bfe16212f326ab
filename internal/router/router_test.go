package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abdojat/fbcloneapi/internal/auth"
	"github.com/abdojat/fbcloneapi/internal/handlers"
	"github.com/abdojat/fbcloneapi/internal/middleware"
	"github.com/abdojat/fbcloneapi/internal/presence"
	"github.com/abdojat/fbcloneapi/internal/realtime"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/abdojat/fbcloneapi/internal/testutil"
	"github.com/abdojat/fbcloneapi/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, limiter *middleware.IPRateLimiter) *echo.Echo {
	t.Helper()

	db := testutil.NewDB(t)
	testutil.SeedUsers(t, db, 1)
	registry := presence.NewRegistry()
	users := repositories.NewPostgresUserRepository(db)
	friendships := repositories.NewPostgresFriendshipRepository(db)
	tokens := auth.NewTokenService("router-secret", time.Hour, repositories.NewPostgresRevokedTokenRepository(db))
	directory := services.NewUserDirectory(users, nil)
	notifications := services.NewNotificationService(
		repositories.NewPostgresNotificationRepository(db),
		repositories.NewPostgresDeviceTokenRepository(db),
		directory, nil, registry, nil,
	)
	chat := services.NewChatService(repositories.NewPostgresMessageRepository(db), directory, notifications, registry)

	e := echo.New()
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = handlers.HTTPErrorHandler("test")
	SetupMiddleware(e, limiter, false)
	SetupRoutes(e, Deps{
		DB:            db,
		Users:         users,
		Friendships:   friendships,
		SavedPosts:    repositories.NewPostgresSavedPostRepository(db),
		Tokens:        tokens,
		Directory:     directory,
		Notifications: notifications,
		Chat:          chat,
		Friends:       services.NewFriendService(friendships, users, directory, notifications),
		Gateway:       realtime.NewGateway(registry, chat, tokens, realtime.Options{}),
	})
	return e
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	e := newServer(t, nil)

	rec := get(e, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	assert.Equal(t, http.StatusOK, get(e, "/metrics").Code)
	assert.Equal(t, http.StatusUnauthorized, get(e, "/api/friends").Code)
	assert.Equal(t, http.StatusUnauthorized, get(e, "/ws").Code)
	assert.Equal(t, http.StatusNotFound, get(e, "/api/nowhere").Code)

	// without a Firebase verifier the exchange route is not mounted
	for _, r := range e.Routes() {
		assert.NotEqual(t, "/api/users/firebase-login", r.Path)
	}
}

func TestGlobalRateLimit(t *testing.T) {
	e := newServer(t, middleware.NewIPRateLimiter(1, 2, time.Minute))

	require.Equal(t, http.StatusOK, get(e, "/api/health").Code)
	require.Equal(t, http.StatusOK, get(e, "/api/health").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(e, "/api/health").Code)
}
