package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/abdojat/fbcloneapi/internal/auth"
	"github.com/abdojat/fbcloneapi/internal/middleware"
	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/presence"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/abdojat/fbcloneapi/internal/testutil"
	"github.com/abdojat/fbcloneapi/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

// memPosts is an in-memory PostRepository. Newest posts come first.
type memPosts struct {
	mu    sync.Mutex
	posts []*models.Post
	clock time.Time
}

func newMemPosts() *memPosts {
	return &memPosts{clock: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memPosts) find(id string) (*models.Post, int) {
	for i, p := range m.posts {
		if p.ID.Hex() == id {
			return p, i
		}
	}
	return nil, -1
}

func clonePost(p *models.Post) *models.Post {
	cp := *p
	cp.Likes = append([]uint{}, p.Likes...)
	cp.Comments = append([]models.Comment{}, p.Comments...)
	return &cp
}

func (m *memPosts) CreatePost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Minute)
	post.ID = primitive.NewObjectID()
	post.CreatedAt = m.clock
	post.UpdatedAt = m.clock
	post.Likes = []uint{}
	post.Comments = []models.Comment{}
	m.posts = append([]*models.Post{clonePost(post)}, m.posts...)
	return nil
}

func (m *memPosts) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, _ := m.find(id)
	if p == nil {
		return nil, repositories.ErrPostNotFound
	}
	return clonePost(p), nil
}

func (m *memPosts) GetPostsByIDs(_ context.Context, ids []string) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Post{}
	for _, id := range ids {
		if p, _ := m.find(id); p != nil {
			out = append(out, *clonePost(p))
		}
	}
	return out, nil
}

func (m *memPosts) filter(keep func(*models.Post) bool, skip, limit int64) []models.Post {
	out := []models.Post{}
	for _, p := range m.posts {
		if keep(p) {
			out = append(out, *clonePost(p))
		}
	}
	if skip >= int64(len(out)) {
		return []models.Post{}
	}
	out = out[skip:]
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memPosts) GetPostsByUserID(_ context.Context, userID uint, skip, limit int64) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(p *models.Post) bool { return p.UserID == userID }, skip, limit), nil
}

func (m *memPosts) GetPostsByUserIDs(_ context.Context, userIDs []uint, skip, limit int64) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	authors := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		authors[id] = true
	}
	return m.filter(func(p *models.Post) bool { return authors[p.UserID] }, skip, limit), nil
}

func (m *memPosts) GetAllPosts(_ context.Context, skip, limit int64) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(*models.Post) bool { return true }, skip, limit), nil
}

func (m *memPosts) CountPostsByUser(_ context.Context, userID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.posts {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memPosts) update(id string, fn func(p *models.Post)) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, _ := m.find(id)
	if p == nil {
		return nil, repositories.ErrPostNotFound
	}
	fn(p)
	return clonePost(p), nil
}

func (m *memPosts) UpdatePost(_ context.Context, id string, content, picturePath string) (*models.Post, error) {
	return m.update(id, func(p *models.Post) {
		p.Content = content
		if picturePath != "" {
			p.PicturePath = picturePath
		}
	})
}

func (m *memPosts) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, i := m.find(id)
	if i < 0 {
		return repositories.ErrPostNotFound
	}
	m.posts = append(m.posts[:i], m.posts[i+1:]...)
	return nil
}

func (m *memPosts) AddLike(_ context.Context, postID string, userID uint) (*models.Post, bool, error) {
	added := false
	post, err := m.update(postID, func(p *models.Post) {
		if !p.LikedBy(userID) {
			p.Likes = append(p.Likes, userID)
			added = true
		}
	})
	return post, added, err
}

func (m *memPosts) RemoveLike(_ context.Context, postID string, userID uint) (*models.Post, error) {
	return m.update(postID, func(p *models.Post) {
		likes := p.Likes[:0]
		for _, id := range p.Likes {
			if id != userID {
				likes = append(likes, id)
			}
		}
		p.Likes = likes
	})
}

func (m *memPosts) AddComment(_ context.Context, postID string, comment models.Comment) (*models.Post, error) {
	return m.update(postID, func(p *models.Post) {
		p.Comments = append(p.Comments, comment)
	})
}

type testServer struct {
	e             *echo.Echo
	db            *gorm.DB
	users         []models.User
	tokens        *auth.TokenService
	posts         *memPosts
	notifications *services.NotificationService
}

// newTestServer wires every handler against sqlite and the in-memory post store,
// grouped the way the router mounts them.
func newTestServer(t *testing.T, userCount int) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	users := testutil.SeedUsers(t, db, userCount)
	posts := newMemPosts()
	registry := presence.NewRegistry()

	userRepo := repositories.NewPostgresUserRepository(db)
	friendshipRepo := repositories.NewPostgresFriendshipRepository(db)
	tokens := auth.NewTokenService("test-secret", time.Hour, repositories.NewPostgresRevokedTokenRepository(db))
	directory := services.NewUserDirectory(userRepo, nil)
	notifications := services.NewNotificationService(
		repositories.NewPostgresNotificationRepository(db),
		repositories.NewPostgresDeviceTokenRepository(db),
		directory, posts, registry, nil,
	)
	chat := services.NewChatService(repositories.NewPostgresMessageRepository(db), directory, notifications, registry)
	friends := services.NewFriendService(friendshipRepo, userRepo, directory, notifications)

	e := echo.New()
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = HTTPErrorHandler("test")

	api := e.Group("/api")
	requireAuth := middleware.JWTAuthMiddleware(tokens)

	authHandler := NewAuthHandler(userRepo, tokens, directory)
	authHandler.RegisterAuthRoutes(api.Group("/users"))

	usersGroup := api.Group("/users", requireAuth)
	authHandler.RegisterSessionRoutes(usersGroup)
	NewSavedPostHandler(repositories.NewPostgresSavedPostRepository(db), posts).RegisterSavedPostRoutes(usersGroup)
	NewUserHandler(userRepo, friendshipRepo, posts, directory).RegisterUserRoutes(usersGroup)

	postsGroup := api.Group("/posts", requireAuth)
	NewFeedHandler(posts, friendshipRepo, directory).RegisterFeedRoutes(postsGroup)
	NewPostHandler(posts, directory, notifications).RegisterPostRoutes(postsGroup)

	NewFriendshipHandler(friends).RegisterFriendshipRoutes(api.Group("/friends", requireAuth))
	NewChatHandler(chat).RegisterChatRoutes(api.Group("/chat", requireAuth))
	NewNotificationHandler(notifications).RegisterNotificationRoutes(api.Group("/notification", requireAuth))
	api.GET("/health", NewHealthHandler(db).HealthCheck)

	return &testServer{e: e, db: db, users: users, tokens: tokens, posts: posts, notifications: notifications}
}

func (s *testServer) tokenFor(t *testing.T, userID uint) string {
	t.Helper()
	for i := range s.users {
		if s.users[i].ID == userID {
			token, err := s.tokens.Issue(&s.users[i])
			require.NoError(t, err)
			return token
		}
	}
	t.Fatalf("no seeded user %d", userID)
	return ""
}

// do sends a request as userID, or anonymously when userID is 0.
func (s *testServer) do(t *testing.T, method, path string, body any, userID uint) *httptest.ResponseRecorder {
	t.Helper()
	token := ""
	if userID != 0 {
		token = s.tokenFor(t, userID)
	}
	return s.doWithToken(t, method, path, body, token)
}

func (s *testServer) doWithToken(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	env := decode(t, rec)
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
}

func (s *testServer) notificationsFor(t *testing.T, recipientID uint) []models.Notification {
	t.Helper()
	var list []models.Notification
	require.NoError(t, s.db.Where("recipient_id = ?", recipientID).Order("id").Find(&list).Error)
	return list
}

func summaryIDs(list []models.UserSummary) []uint {
	ids := make([]uint, 0, len(list))
	for _, u := range list {
		ids = append(ids, u.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
