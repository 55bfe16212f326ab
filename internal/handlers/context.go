package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/abdojat/fbcloneapi/internal/middleware"
	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// currentUserID returns the authenticated user id, or 0 outside the JWT middleware.
func currentUserID(c echo.Context) uint {
	claims, ok := c.Get(middleware.ContextUserKey).(*models.JwtCustomClaims)
	if !ok || claims == nil {
		return 0
	}
	return claims.UserID
}

func requireUser(c echo.Context) (uint, error) {
	id := currentUserID(c)
	if id == 0 {
		return 0, apperrors.Auth("User not authenticated")
	}
	return id, nil
}

func parseIDParam(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.Validation("Invalid " + name)
	}
	return uint(id), nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperrors.Validation("Invalid request payload")
	}
	return c.Validate(req)
}

func pagination(c echo.Context, defaultLimit, maxLimit int) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	return page, limit
}

func paginationMeta(page, limit int, total int64) echo.Map {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return echo.Map{
		"currentPage":     page,
		"totalPages":      totalPages,
		"totalItems":      total,
		"itemsPerPage":    limit,
		"hasNextPage":     page < totalPages,
		"hasPreviousPage": page > 1,
	}
}

func success(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

func respondOK(c echo.Context, data interface{}) error {
	return success(c, http.StatusOK, data)
}

func respondMessage(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": message})
}

// notFoundOr maps a missing gorm row or mongo document to NotFound.
func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, repositories.ErrPostNotFound) {
		return apperrors.NotFound(what + " not found")
	}
	return apperrors.Internal("failed to load "+what, err)
}
