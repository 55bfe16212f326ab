package handlers

import (
	"net/http"

	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/labstack/echo/v4"
)

// FeedHandler serves the friends feed
type FeedHandler struct {
	postRepository       repositories.PostRepository
	friendshipRepository repositories.FriendshipRepository
	directory            *services.UserDirectory
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(
	postRepo repositories.PostRepository,
	friendshipRepo repositories.FriendshipRepository,
	directory *services.UserDirectory,
) *FeedHandler {
	return &FeedHandler{
		postRepository:       postRepo,
		friendshipRepository: friendshipRepo,
		directory:            directory,
	}
}

// RegisterFeedRoutes registers feed routes on the posts group
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/friends/feed", h.GetFeed)
}

// GetFeed returns the caller's and their friends' posts, newest first
func (h *FeedHandler) GetFeed(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 10, 50)
	ctx := c.Request().Context()

	friendIDs, err := h.friendshipRepository.FriendIDs(ctx, currentUserID)
	if err != nil {
		return apperrors.Internal("failed to load friends", err)
	}
	authors := append([]uint{currentUserID}, friendIDs...)

	posts, err := h.postRepository.GetPostsByUserIDs(ctx, authors, int64((page-1)*limit), int64(limit))
	if err != nil {
		return apperrors.Internal("failed to load feed", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"posts": enrichPosts(ctx, h.directory, posts, currentUserID),
		},
		"meta": echo.Map{
			"currentPage":  page,
			"itemsPerPage": limit,
			"hasNextPage":  len(posts) == limit,
		},
	})
}
