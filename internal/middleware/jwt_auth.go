package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/labstack/echo/v4"
)

const (
	// ContextUserKey holds the *models.JwtCustomClaims of the caller.
	ContextUserKey = "user"
	// ContextTokenKey holds the raw bearer token.
	ContextTokenKey = "token"
)

// TokenVerifier validates a bearer token, including revocation.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JwtCustomClaims, error)
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}

	// Expecting "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}

// JWTAuthMiddleware checks for a valid, unrevoked JWT and extracts user claims.
func JWTAuthMiddleware(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims, err := verifier.Verify(c.Request().Context(), tokenString)
			if err != nil {
				return err
			}

			c.Set(ContextUserKey, claims)
			c.Set(ContextTokenKey, tokenString)
			return next(c)
		}
	}
}
