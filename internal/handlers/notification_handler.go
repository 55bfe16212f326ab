package handlers

import (
	"net/http"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications *services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// RegisterNotificationRoutes registers notification routes on the notifications group
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("", h.GetNotifications)
	g.GET("/grouped", h.GetGroupedNotifications)
	g.GET("/unread-count", h.GetUnreadCount)
	g.PATCH("/mark-all-read", h.MarkAllAsRead)
	g.PATCH("/:id/mark-read", h.MarkAsRead)
	g.POST("/register-token", h.RegisterToken)
}

// GetNotifications returns paginated notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 20, 50)

	notifications, total, err := h.notifications.List(c.Request().Context(), currentUserID, page, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": notifications,
		},
		"meta": paginationMeta(page, limit, total),
	})
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	grouped, err := h.notifications.Grouped(ctx, currentUserID)
	if err != nil {
		return err
	}
	unreadCount, err := h.notifications.UnreadCount(ctx, currentUserID)
	if err != nil {
		return err
	}

	return respondOK(c, echo.Map{
		"notifications": grouped,
		"unreadCount":   unreadCount,
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	count, err := h.notifications.UnreadCount(c.Request().Context(), currentUserID)
	if err != nil {
		return err
	}
	return respondOK(c, echo.Map{"count": count})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	notificationID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.Request().Context(), currentUserID, notificationID); err != nil {
		return err
	}
	return respondMessage(c, "Notification marked as read")
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	updated, err := h.notifications.MarkAllRead(c.Request().Context(), currentUserID)
	if err != nil {
		return err
	}
	return respondOK(c, echo.Map{"updated": updated})
}

// RegisterToken stores a push token for the caller's device.
func (h *NotificationHandler) RegisterToken(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req models.RegisterTokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.notifications.RegisterToken(c.Request().Context(), currentUserID, req.Token, req.Platform); err != nil {
		return err
	}
	return respondMessage(c, "Device token registered")
}
