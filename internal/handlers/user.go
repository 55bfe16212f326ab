package handlers

import (
	"strings"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/labstack/echo/v4"
)

const searchLimit = 20

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository       repositories.UserRepository
	friendshipRepository repositories.FriendshipRepository
	postRepository       repositories.PostRepository
	directory            *services.UserDirectory
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(
	userRepo repositories.UserRepository,
	friendshipRepo repositories.FriendshipRepository,
	postRepo repositories.PostRepository,
	directory *services.UserDirectory,
) *UserHandler {
	return &UserHandler{
		userRepository:       userRepo,
		friendshipRepository: friendshipRepo,
		postRepository:       postRepo,
		directory:            directory,
	}
}

// RegisterUserRoutes registers user profile routes. Static paths are registered by the
// auth and saved post handlers on the same group.
func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.GET("/search", h.SearchUsers)
	g.PUT("/me", h.UpdateProfile)
	g.GET("/:id", h.GetUser)
	g.GET("/:id/picture", h.GetPicture)
	g.GET("/:id/stats", h.GetStats)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), id)
	if err != nil {
		return notFoundOr(err, "user")
	}
	return respondOK(c, user)
}

func (h *UserHandler) GetPicture(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	summary, found, err := h.directory.Summary(c.Request().Context(), id)
	if err != nil {
		return apperrors.Internal("failed to load user", err)
	}
	if !found {
		return apperrors.NotFound("user not found")
	}
	return respondOK(c, echo.Map{"picturePath": summary.PicturePath})
}

// GetStats returns post and friend counts for a profile.
func (h *UserHandler) GetStats(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.userRepository.GetUserByID(ctx, id); err != nil {
		return notFoundOr(err, "user")
	}

	posts, err := h.postRepository.CountPostsByUser(ctx, id)
	if err != nil {
		return apperrors.Internal("failed to count posts", err)
	}
	friends, err := h.friendshipRepository.FriendIDs(ctx, id)
	if err != nil {
		return apperrors.Internal("failed to count friends", err)
	}
	return respondOK(c, echo.Map{"posts": posts, "friends": len(friends)})
}

// UpdateProfile updates the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req models.UpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, "user")
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Bio != "" {
		user.Bio = req.Bio
	}
	if req.PicturePath != "" {
		user.PicturePath = req.PicturePath
	}

	if err := h.userRepository.UpdateUser(ctx, user); err != nil {
		return apperrors.Internal("failed to update profile", err)
	}
	h.directory.Invalidate(ctx, userID)
	return respondOK(c, user)
}

// SearchUsers matches the query against names, usernames and emails.
func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return apperrors.Validation("Search query 'q' is required")
	}

	users, err := h.userRepository.SearchUsers(c.Request().Context(), query, searchLimit)
	if err != nil {
		return apperrors.Internal("failed to search users", err)
	}
	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return respondOK(c, out)
}
