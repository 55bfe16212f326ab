package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	database := "up"
	status := http.StatusOK
	if err := h.ping(ctx); err != nil {
		logger.Warn("health check: database unreachable", zap.Error(err))
		database = "down"
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, map[string]string{
		"status":   http.StatusText(status),
		"service":  "fbcloneapi",
		"database": database,
	})
}

func (h *HealthHandler) ping(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
