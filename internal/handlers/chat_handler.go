package handlers

import (
	"net/http"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/labstack/echo/v4"
)

// ChatHandler exposes the REST side of chat. Live delivery goes through the gateway.
type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// RegisterChatRoutes registers chat routes on the messages group
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.GET("/recent", h.RecentConversations)
	g.POST("", h.SendMessage)
	g.PATCH("/thread/:senderId/read", h.MarkThreadRead)
	g.GET("/:recipientId", h.History)
	g.PATCH("/:id/read", h.MarkRead)
	g.PATCH("/:id/edit", h.EditMessage)
	g.DELETE("/:id/delete", h.DeleteMessage)
}

func (h *ChatHandler) RecentConversations(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	conversations, err := h.chat.RecentConversations(c.Request().Context(), currentUserID)
	if err != nil {
		return err
	}
	return respondOK(c, conversations)
}

// History returns the conversation with one partner, oldest first.
func (h *ChatHandler) History(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	partnerID, err := parseIDParam(c, "recipientId")
	if err != nil {
		return err
	}
	messages, err := h.chat.History(c.Request().Context(), currentUserID, partnerID)
	if err != nil {
		return err
	}
	return respondOK(c, messages)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.chat.Send(c.Request().Context(), currentUserID, req.Recipient, req.Text, req.Timestamp)
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, msg)
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	messageID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	msg, err := h.chat.MarkRead(c.Request().Context(), currentUserID, messageID)
	if err != nil {
		return err
	}
	return respondOK(c, msg)
}

func (h *ChatHandler) EditMessage(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	messageID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req models.EditMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	msg, err := h.chat.Edit(c.Request().Context(), currentUserID, messageID, req.Text)
	if err != nil {
		return err
	}
	return respondOK(c, msg)
}

func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	messageID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.chat.Delete(c.Request().Context(), currentUserID, messageID); err != nil {
		return err
	}
	return respondMessage(c, "Message deleted")
}

// MarkThreadRead marks every message senderId sent to the caller as read.
func (h *ChatHandler) MarkThreadRead(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	senderID, err := parseIDParam(c, "senderId")
	if err != nil {
		return err
	}
	updated, err := h.chat.MarkThreadRead(c.Request().Context(), senderID, currentUserID)
	if err != nil {
		return err
	}
	return respondOK(c, echo.Map{"updated": updated})
}
