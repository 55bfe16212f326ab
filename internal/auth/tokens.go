package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// TokenService issues and verifies HS256 access tokens and honours logout revocations.
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	revoked repositories.RevokedTokenRepository
	now     func() time.Time
}

func NewTokenService(secret string, ttl time.Duration, revoked repositories.RevokedTokenRepository) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, revoked: revoked, now: time.Now}
}

// Issue signs a token for user.
func (s *TokenService) Issue(user *models.User) (string, error) {
	now := s.now()
	claims := &models.JwtCustomClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates signature and expiry. Revocation is checked separately by Verify.
func (s *TokenService) Parse(tokenString string) (*models.JwtCustomClaims, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var vErr *jwt.ValidationError
		if errors.As(err, &vErr) && vErr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, apperrors.Auth("token expired")
		}
		return nil, apperrors.Auth("invalid token")
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, apperrors.Auth("invalid token")
	}
	return claims, nil
}

// Verify parses the token and rejects it if it was revoked by logout.
func (s *TokenService) Verify(ctx context.Context, tokenString string) (*models.JwtCustomClaims, error) {
	claims, err := s.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, tokenString)
		if err != nil {
			return nil, apperrors.Internal("failed to check token revocation", err)
		}
		if revoked {
			return nil, apperrors.Auth("token has been revoked")
		}
	}
	return claims, nil
}

// Revoke blacklists the token until its own expiry.
func (s *TokenService) Revoke(ctx context.Context, tokenString string, claims *models.JwtCustomClaims) error {
	expires := s.now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := s.revoked.Revoke(ctx, tokenString, claims.UserID, expires); err != nil {
		return apperrors.Internal("failed to revoke token", err)
	}
	return nil
}
