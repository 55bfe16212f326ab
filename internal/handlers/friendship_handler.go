package handlers

import (
	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/labstack/echo/v4"
)

// FriendshipHandler handles HTTP requests related to friendships
type FriendshipHandler struct {
	friends *services.FriendService
}

// NewFriendshipHandler creates a new FriendshipHandler
func NewFriendshipHandler(friends *services.FriendService) *FriendshipHandler {
	return &FriendshipHandler{friends: friends}
}

// RegisterFriendshipRoutes registers friendship-related routes on the friends group
func (h *FriendshipHandler) RegisterFriendshipRoutes(g *echo.Group) {
	g.POST("/action", h.Action)
	g.GET("", h.GetFriends)
	g.GET("/requests", h.GetIncomingRequests)
	g.GET("/sentFriendRequests", h.GetSentRequests)
	g.GET("/suggestions", h.GetSuggestions)
	g.GET("/:id/friends", h.GetFriendsOf)
}

// Action applies add, cancel, accept, reject or remove.
func (h *FriendshipHandler) Action(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req models.FriendActionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.friends.Act(c.Request().Context(), currentUserID, req)
	if err != nil {
		return err
	}
	return respondOK(c, result)
}

// GetFriends retrieves the authenticated user's friends
func (h *FriendshipHandler) GetFriends(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	friends, err := h.friends.Friends(c.Request().Context(), currentUserID)
	if err != nil {
		return err
	}
	return respondOK(c, friends)
}

func (h *FriendshipHandler) GetFriendsOf(c echo.Context) error {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	friends, err := h.friends.FriendsOf(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respondOK(c, friends)
}

// GetIncomingRequests lists pending requests sent to the caller.
func (h *FriendshipHandler) GetIncomingRequests(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	requests, err := h.friends.IncomingRequests(c.Request().Context(), currentUserID)
	if err != nil {
		return err
	}
	return respondOK(c, requests)
}

func (h *FriendshipHandler) GetSentRequests(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	requests, err := h.friends.OutgoingRequests(c.Request().Context(), currentUserID)
	if err != nil {
		return err
	}
	return respondOK(c, requests)
}

func (h *FriendshipHandler) GetSuggestions(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	suggestions, err := h.friends.Suggestions(c.Request().Context(), currentUserID)
	if err != nil {
		return err
	}
	return respondOK(c, suggestions)
}
