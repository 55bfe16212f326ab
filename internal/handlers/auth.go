package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/abdojat/fbcloneapi/internal/middleware"
	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const passwordHistoryDepth = 5

// TokenIssuer issues and revokes local session tokens.
type TokenIssuer interface {
	Issue(user *models.User) (string, error)
	Revoke(ctx context.Context, token string, claims *models.JwtCustomClaims) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	userRepository repositories.UserRepository
	tokens         TokenIssuer
	directory      directoryInvalidator
}

type directoryInvalidator interface {
	Invalidate(ctx context.Context, id uint)
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userRepo repositories.UserRepository, tokens TokenIssuer, directory directoryInvalidator) *AuthHandler {
	return &AuthHandler{
		userRepository: userRepo,
		tokens:         tokens,
		directory:      directory,
	}
}

// RegisterAuthRoutes registers the public authentication routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
}

// RegisterFirebaseRoutes registers the Firebase exchange behind the ID token middleware.
func (h *AuthHandler) RegisterFirebaseRoutes(g *echo.Group, firebaseAuth echo.MiddlewareFunc) {
	g.POST("/firebase-login", h.FirebaseLogin, firebaseAuth)
}

// RegisterSessionRoutes registers routes that need an authenticated session.
func (h *AuthHandler) RegisterSessionRoutes(g *echo.Group) {
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me)
	g.PUT("/change-password", h.ChangePassword)
}

func (h *AuthHandler) respondWithToken(c echo.Context, status int, user *models.User) error {
	token, err := h.tokens.Issue(user)
	if err != nil {
		return apperrors.Internal("failed to generate token", err)
	}
	return success(c, status, echo.Map{"token": token, "user": user})
}

// Register handles local user registration with email and password
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := h.userRepository.GetUserByEmail(ctx, email); err == nil {
		return apperrors.Conflict("User with this email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Internal("failed to check email", err)
	}
	if _, err := h.userRepository.GetUserByUsername(ctx, req.Username); err == nil {
		return apperrors.Conflict("Username already taken")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Internal("failed to check username", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Internal("failed to hash password", err)
	}

	user := &models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     email,
		Password:  string(hashedPassword),
		Bio:       req.Bio,
	}
	if err := h.userRepository.CreateUser(ctx, user); err != nil {
		return apperrors.Internal("failed to create user", err)
	}
	if err := h.userRepository.AddPasswordHistory(ctx, user.ID, user.Password, passwordHistoryDepth); err != nil {
		logger.Warn("recording password history", zap.Uint("userId", user.ID), zap.Error(err))
	}

	return h.respondWithToken(c, http.StatusCreated, user)
}

// Login handles local user authentication with email and password
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Auth("Invalid email or password")
		}
		return apperrors.Internal("failed to load user", err)
	}
	// accounts created through Firebase have no local password
	if user.Password == "" {
		return apperrors.Auth("Invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return apperrors.Auth("Invalid email or password")
	}

	return h.respondWithToken(c, http.StatusOK, user)
}

// Logout revokes the presented token until it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, ok := c.Get(middleware.ContextUserKey).(*models.JwtCustomClaims)
	token, _ := c.Get(middleware.ContextTokenKey).(string)
	if !ok || token == "" {
		return apperrors.Auth("User not authenticated")
	}
	if err := h.tokens.Revoke(c.Request().Context(), token, claims); err != nil {
		return err
	}
	return respondMessage(c, "Logged out")
}

// Me returns the authenticated user's profile
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return notFoundOr(err, "user")
	}
	return respondOK(c, user)
}

// ChangePassword verifies the current password and refuses recently used ones.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req models.ChangePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, "user")
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)) != nil {
		return apperrors.Validation("Current password is incorrect")
	}

	recent, err := h.userRepository.RecentPasswordHashes(ctx, userID, passwordHistoryDepth)
	if err != nil {
		return apperrors.Internal("failed to load password history", err)
	}
	recent = append(recent, user.Password)
	for _, hash := range recent {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.NewPassword)) == nil {
			return apperrors.Validation("New password must differ from your last 5 passwords")
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Internal("failed to hash password", err)
	}
	user.Password = string(hashedPassword)
	if err := h.userRepository.UpdateUser(ctx, user); err != nil {
		return apperrors.Internal("failed to update password", err)
	}
	if err := h.userRepository.AddPasswordHistory(ctx, userID, user.Password, passwordHistoryDepth); err != nil {
		logger.Warn("recording password history", zap.Uint("userId", userID), zap.Error(err))
	}

	return respondMessage(c, "Password updated")
}

// FirebaseLogin exchanges a verified Firebase ID token for a local session. Users are
// matched by Firebase UID, then linked by email, then created.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	token, ok := c.Get(middleware.ContextFirebaseTokenKey).(*fbauth.Token)
	if !ok || token == nil {
		return apperrors.Auth("Invalid Firebase ID token")
	}
	ctx := c.Request().Context()

	email, _ := token.Claims["email"].(string)
	email = strings.ToLower(strings.TrimSpace(email))
	name, _ := token.Claims["name"].(string)
	picture, _ := token.Claims["picture"].(string)
	uid := token.UID

	user, err := h.userRepository.GetUserByFirebaseUID(ctx, uid)
	switch {
	case err == nil:
		if picture != "" && user.PicturePath == "" {
			user.PicturePath = picture
			if err := h.userRepository.UpdateUser(ctx, user); err != nil {
				return apperrors.Internal("failed to update user", err)
			}
			h.directory.Invalidate(ctx, user.ID)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.Internal("failed to load user", err)
	case email == "":
		return apperrors.Validation("Firebase account has no email")
	default:
		user, err = h.userRepository.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			user.FirebaseUID = &uid
			if err := h.userRepository.UpdateUser(ctx, user); err != nil {
				return apperrors.Internal("failed to link Firebase account", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			user, err = h.createFirebaseUser(ctx, uid, email, name, picture)
			if err != nil {
				return err
			}
		default:
			return apperrors.Internal("failed to load user", err)
		}
	}

	return h.respondWithToken(c, http.StatusOK, user)
}

func (h *AuthHandler) createFirebaseUser(ctx context.Context, uid, email, name, picture string) (*models.User, error) {
	username, err := h.freeUsername(ctx, email)
	if err != nil {
		return nil, err
	}
	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	user := &models.User{
		FirstName:   first,
		LastName:    strings.TrimSpace(last),
		Username:    username,
		Email:       email,
		PicturePath: picture,
		FirebaseUID: &uid,
	}
	if err := h.userRepository.CreateUser(ctx, user); err != nil {
		return nil, apperrors.Internal("failed to create user", err)
	}
	return user, nil
}

// freeUsername derives an alphanumeric username from the email's local part.
func (h *AuthHandler) freeUsername(ctx context.Context, email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	base := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, local)
	if len(base) < 3 {
		base = "user" + base
	}
	if len(base) > 40 {
		base = base[:40]
	}

	candidate := base
	for i := 0; i < 5; i++ {
		_, err := h.userRepository.GetUserByUsername(ctx, candidate)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", apperrors.Internal("failed to check username", err)
		}
		candidate = fmt.Sprintf("%s%s", base, strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	}
	return "", apperrors.Conflict("could not allocate a username")
}
