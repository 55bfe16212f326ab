package handlers

import (
	"errors"

	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// SavedPostHandler handles saved post HTTP requests
type SavedPostHandler struct {
	savedPostRepository repositories.SavedPostRepository
	postRepository      repositories.PostRepository
}

// NewSavedPostHandler creates a new SavedPostHandler
func NewSavedPostHandler(savedPostRepo repositories.SavedPostRepository, postRepo repositories.PostRepository) *SavedPostHandler {
	return &SavedPostHandler{
		savedPostRepository: savedPostRepo,
		postRepository:      postRepo,
	}
}

// RegisterSavedPostRoutes registers saved post routes on the users group
func (h *SavedPostHandler) RegisterSavedPostRoutes(g *echo.Group) {
	g.GET("/saved-posts", h.GetSavedPosts)
	g.POST("/save-post/:id", h.SavePost)
	g.DELETE("/unsave-post/:id", h.UnsavePost)
}

// GetSavedPosts returns the saved post documents, skipping ones deleted since.
func (h *SavedPostHandler) GetSavedPosts(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	ids, err := h.savedPostRepository.GetSavedPostIDs(ctx, currentUserID)
	if err != nil {
		return apperrors.Internal("failed to load saved posts", err)
	}
	posts, err := h.postRepository.GetPostsByIDs(ctx, ids)
	if err != nil {
		return apperrors.Internal("failed to load saved posts", err)
	}
	return respondOK(c, posts)
}

// SavePost saves/bookmarks a post
func (h *SavedPostHandler) SavePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("id")
	ctx := c.Request().Context()

	if _, err := h.postRepository.GetPostByID(ctx, postID); err != nil {
		return notFoundOr(err, "post")
	}
	if err := h.savedPostRepository.SavePost(ctx, currentUserID, postID); err != nil {
		return apperrors.Internal("failed to save post", err)
	}
	return respondOK(c, echo.Map{"saved": true})
}

// UnsavePost removes a post from saved
func (h *SavedPostHandler) UnsavePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	if err := h.savedPostRepository.UnsavePost(c.Request().Context(), currentUserID, c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("saved post not found")
		}
		return apperrors.Internal("failed to unsave post", err)
	}
	return respondOK(c, echo.Map{"saved": false})
}
