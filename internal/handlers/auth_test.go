package handlers

import (
	"net/http"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/abdojat/fbcloneapi/internal/middleware"
	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func registerBody(username, email, password string) map[string]string {
	return map[string]string{
		"firstName": "Jane",
		"lastName":  "Doe",
		"username":  username,
		"email":     email,
		"password":  password,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/api/users/register", registerBody("jane", "Jane@Example.com", "secret1"), 0)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var registered authResponse
	decodeData(t, rec, &registered)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "jane@example.com", registered.User.Email)

	rec = s.do(t, http.MethodPost, "/api/users/register", registerBody("other", "jane@example.com", "secret1"), 0)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/users/register", registerBody("jane", "new@example.com", "secret1"), 0)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "jane@example.com", "password": "wrong"}, 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", decode(t, rec).Message)

	rec = s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "jane@example.com", "password": "secret1"}, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	var loggedIn authResponse
	decodeData(t, rec, &loggedIn)

	rec = s.doWithToken(t, http.MethodGet, "/api/users/me", nil, loggedIn.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	decodeData(t, rec, &me)
	assert.Equal(t, registered.User.ID, me.ID)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/api/users/register", registerBody("j", "not-an-email", "123"), 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decode(t, rec).Success)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t, 1)
	token := s.tokenFor(t, s.users[0].ID)

	rec := s.doWithToken(t, http.MethodPost, "/api/users/logout", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.doWithToken(t, http.MethodGet, "/api/users/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, 1)

	for _, path := range []string{"/api/users/me", "/api/friends", "/api/notification", "/api/chat/recent"} {
		rec := s.do(t, http.MethodGet, path, nil, 0)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestChangePasswordRefusesReuse(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/api/users/register", registerBody("jane", "jane@example.com", "first-pass"), 0)
	require.Equal(t, http.StatusCreated, rec.Code)
	var registered authResponse
	decodeData(t, rec, &registered)

	change := func(current, next string) int {
		body := map[string]string{"currentPassword": current, "newPassword": next}
		return s.doWithToken(t, http.MethodPut, "/api/users/change-password", body, registered.Token).Code
	}

	assert.Equal(t, http.StatusBadRequest, change("wrong-pass", "second-pass"))
	assert.Equal(t, http.StatusBadRequest, change("first-pass", "first-pass"))
	assert.Equal(t, http.StatusOK, change("first-pass", "second-pass"))
	assert.Equal(t, http.StatusBadRequest, change("second-pass", "first-pass"))
	assert.Equal(t, http.StatusOK, change("second-pass", "third-pass"))

	rec = s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "jane@example.com", "password": "third-pass"}, 0)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFirebaseLoginLinksThenReuses(t *testing.T) {
	s := newTestServer(t, 1)
	userRepo := repositories.NewPostgresUserRepository(s.db)
	h := NewAuthHandler(userRepo, s.tokens, services.NewUserDirectory(userRepo, nil))

	withToken := func(tok *fbauth.Token) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				c.Set(middleware.ContextFirebaseTokenKey, tok)
				return next(c)
			}
		}
	}

	// existing local account is linked by email
	linked := &fbauth.Token{UID: "fb-1", Claims: map[string]interface{}{"email": "user1@example.com"}}
	g := s.e.Group("/fb1")
	h.RegisterFirebaseRoutes(g, withToken(linked))
	rec := s.do(t, http.MethodPost, "/fb1/firebase-login", nil, 0)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first authResponse
	decodeData(t, rec, &first)
	assert.Equal(t, s.users[0].ID, first.User.ID)

	stored, err := userRepo.GetUserByFirebaseUID(t.Context(), "fb-1")
	require.NoError(t, err)
	assert.Equal(t, s.users[0].ID, stored.ID)

	// unknown email creates a fresh account with a derived username
	fresh := &fbauth.Token{UID: "fb-2", Claims: map[string]interface{}{"email": "new.person@example.com", "name": "New Person"}}
	g = s.e.Group("/fb2")
	h.RegisterFirebaseRoutes(g, withToken(fresh))
	rec = s.do(t, http.MethodPost, "/fb2/firebase-login", nil, 0)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created authResponse
	decodeData(t, rec, &created)
	assert.NotEqual(t, s.users[0].ID, created.User.ID)
	assert.Equal(t, "New", created.User.FirstName)
	assert.Equal(t, "Person", created.User.LastName)
	assert.Contains(t, created.User.Username, "newperson")

	// a Firebase-only account cannot log in with a password
	rec = s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "new.person@example.com", "password": "anything"}, 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
