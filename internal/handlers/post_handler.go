package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const commentSnippetLength = 50

// Notifier records a notification and fans it out.
type Notifier interface {
	Notify(ctx context.Context, in services.NotifyInput) (*models.Notification, error)
}

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository repositories.PostRepository
	directory      *services.UserDirectory
	notifier       Notifier
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postRepo repositories.PostRepository, directory *services.UserDirectory, notifier Notifier) *PostHandler {
	return &PostHandler{
		postRepository: postRepo,
		directory:      directory,
		notifier:       notifier,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("", h.CreatePost)
	g.GET("", h.GetPosts)
	g.GET("/user/:userId", h.GetUserPosts)
	g.GET("/:id", h.GetPost)
	g.PUT("/:id", h.UpdatePost)
	g.DELETE("/:id", h.DeletePost)
	g.POST("/:id/like", h.LikePost)
	g.POST("/:id/unlike", h.UnlikePost)
	g.POST("/:id/comments", h.CommentPost)
}

// EnrichedPost is a post with author info and the caller's like flag
type EnrichedPost struct {
	models.Post
	Author  *models.UserSummary `json:"author,omitempty"`
	IsLiked bool                `json:"isLiked"`
}

func enrichPosts(ctx context.Context, directory *services.UserDirectory, posts []models.Post, viewerID uint) []EnrichedPost {
	authorIDs := make([]uint, 0, len(posts))
	for _, p := range posts {
		authorIDs = append(authorIDs, p.UserID)
	}
	authors, err := directory.Summaries(ctx, authorIDs)
	if err != nil {
		logger.Warn("loading post authors", zap.Error(err))
	}

	out := make([]EnrichedPost, len(posts))
	for i := range posts {
		out[i] = EnrichedPost{Post: posts[i], IsLiked: posts[i].LikedBy(viewerID)}
		if a, ok := authors[posts[i].UserID]; ok {
			a := a
			out[i].Author = &a
		}
	}
	return out
}

// CreatePost creates a new post
func (h *PostHandler) CreatePost(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post := &models.Post{
		UserID:      userID,
		Content:     strings.TrimSpace(req.Content),
		PicturePath: req.PicturePath,
	}
	if err := h.postRepository.CreatePost(c.Request().Context(), post); err != nil {
		return apperrors.Internal("failed to create post", err)
	}
	return success(c, http.StatusCreated, post)
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	post, err := h.postRepository.GetPostByID(ctx, c.Param("id"))
	if err != nil {
		return notFoundOr(err, "post")
	}
	return respondOK(c, enrichPosts(ctx, h.directory, []models.Post{*post}, userID)[0])
}

// GetPosts returns every post, newest first
func (h *PostHandler) GetPosts(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 10, 50)
	ctx := c.Request().Context()

	posts, err := h.postRepository.GetAllPosts(ctx, int64((page-1)*limit), int64(limit))
	if err != nil {
		return apperrors.Internal("failed to load posts", err)
	}
	return respondOK(c, echo.Map{"posts": enrichPosts(ctx, h.directory, posts, userID), "page": page, "limit": limit})
}

func (h *PostHandler) GetUserPosts(c echo.Context) error {
	viewerID, err := requireUser(c)
	if err != nil {
		return err
	}
	authorID, err := parseIDParam(c, "userId")
	if err != nil {
		return err
	}
	page, limit := pagination(c, 10, 50)
	ctx := c.Request().Context()

	posts, err := h.postRepository.GetPostsByUserID(ctx, authorID, int64((page-1)*limit), int64(limit))
	if err != nil {
		return apperrors.Internal("failed to load posts", err)
	}
	total, err := h.postRepository.CountPostsByUser(ctx, authorID)
	if err != nil {
		return apperrors.Internal("failed to count posts", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"posts": enrichPosts(ctx, h.directory, posts, viewerID)},
		"meta":    paginationMeta(page, limit, total),
	})
}

// ownPost loads the post and checks the caller wrote it.
func (h *PostHandler) ownPost(ctx context.Context, postID string, userID uint, verb string) (*models.Post, error) {
	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr(err, "post")
	}
	if post.UserID != userID {
		return nil, apperrors.Forbidden("You are not authorized to " + verb + " this post")
	}
	return post, nil
}

// UpdatePost updates an existing post
func (h *PostHandler) UpdatePost(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req models.UpdatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("id")

	if _, err := h.ownPost(ctx, postID, userID, "update"); err != nil {
		return err
	}
	post, err := h.postRepository.UpdatePost(ctx, postID, strings.TrimSpace(req.Content), req.PicturePath)
	if err != nil {
		return notFoundOr(err, "post")
	}
	return respondOK(c, post)
}

// DeletePost deletes a post
func (h *PostHandler) DeletePost(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("id")

	if _, err := h.ownPost(ctx, postID, userID, "delete"); err != nil {
		return err
	}
	if err := h.postRepository.DeletePost(ctx, postID); err != nil {
		return notFoundOr(err, "post")
	}
	return respondMessage(c, "Post deleted")
}

// LikePost adds the caller to the likers and notifies the author.
func (h *PostHandler) LikePost(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("id")

	post, added, err := h.postRepository.AddLike(ctx, postID, userID)
	if err != nil {
		return notFoundOr(err, "post")
	}
	if added {
		h.notifyAuthor(ctx, post, userID, models.NotificationLike, "")
	}
	return respondOK(c, post)
}

func (h *PostHandler) UnlikePost(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	post, err := h.postRepository.RemoveLike(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return notFoundOr(err, "post")
	}
	return respondOK(c, post)
}

func (h *PostHandler) CommentPost(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	text := strings.TrimSpace(req.Text)

	post, err := h.postRepository.AddComment(ctx, c.Param("id"), models.Comment{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return notFoundOr(err, "post")
	}
	h.notifyAuthor(ctx, post, userID, models.NotificationComment, services.Snippet(text, commentSnippetLength))
	return success(c, http.StatusCreated, post)
}

// notifyAuthor skips self-engagement. Failures never fail the request.
func (h *PostHandler) notifyAuthor(ctx context.Context, post *models.Post, actorID uint, kind, content string) {
	if post.UserID == actorID {
		return
	}
	_, err := h.notifier.Notify(ctx, services.NotifyInput{
		RecipientID: post.UserID,
		SenderID:    actorID,
		Type:        kind,
		PostID:      post.ID.Hex(),
		Content:     content,
	})
	if err != nil {
		logger.Error("post notification failed", zap.String("type", kind), zap.String("postId", post.ID.Hex()), zap.Error(err))
	}
}
