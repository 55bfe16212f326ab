package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]uint

func (s stubVerifier) Verify(_ context.Context, token string) (*models.JwtCustomClaims, error) {
	id, ok := s[token]
	if !ok {
		return nil, apperrors.Auth("invalid token")
	}
	return &models.JwtCustomClaims{UserID: id}, nil
}

func run(t *testing.T, mw echo.MiddlewareFunc, header string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return c, err
}

func TestJWTAuthMiddleware(t *testing.T) {
	mw := JWTAuthMiddleware(stubVerifier{"good": 7})

	_, err := run(t, mw, "")
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)

	_, err = run(t, mw, "Token good")
	require.ErrorAs(t, err, &he)

	_, err = run(t, mw, "Bearer bad")
	assert.True(t, apperrors.Is(err, apperrors.KindAuth))

	c, err := run(t, mw, "Bearer good")
	require.NoError(t, err)
	claims, ok := c.Get(ContextUserKey).(*models.JwtCustomClaims)
	require.True(t, ok)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "good", c.Get(ContextTokenKey))
}

type stubIDVerifier struct{}

func (stubIDVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if idToken != "firebase-ok" {
		return nil, errors.New("bad id token")
	}
	return &auth.Token{UID: "uid-1"}, nil
}

func TestFirebaseAuthMiddleware(t *testing.T) {
	mw := FirebaseAuthMiddleware(stubIDVerifier{})

	_, err := run(t, mw, "Bearer nope")
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)

	c, err := run(t, mw, "Bearer firebase-ok")
	require.NoError(t, err)
	token, ok := c.Get(ContextFirebaseTokenKey).(*auth.Token)
	require.True(t, ok)
	assert.Equal(t, "uid-1", token.UID)
}

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(1, 2, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, l.Evict())
}

func TestRateLimitMiddlewareRejects(t *testing.T) {
	l := NewIPRateLimiter(0.001, 1, time.Minute)
	e := echo.New()
	e.Use(l.Middleware())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, want, rec.Code, "request %d", i)
	}
}
