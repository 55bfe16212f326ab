package middleware

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ContextFirebaseTokenKey holds the verified *auth.Token.
const ContextFirebaseTokenKey = "firebaseToken"

// IDTokenVerifier is satisfied by *auth.Client.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthMiddleware verifies a Firebase ID token sent as a bearer token. It guards
// the endpoint that exchanges Firebase identities for local sessions.
func FirebaseAuthMiddleware(verifier IDTokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken, err := bearerToken(c)
			if err != nil {
				return err
			}

			token, err := verifier.VerifyIDToken(c.Request().Context(), idToken)
			if err != nil {
				logger.Debug("firebase id token rejected", zap.Error(err))
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
			}

			c.Set(ContextFirebaseTokenKey, token)
			return next(c)
		}
	}
}
