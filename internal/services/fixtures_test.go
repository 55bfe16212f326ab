package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/presence"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/internal/testutil"
	"github.com/abdojat/fbcloneapi/pkg/push"
	"gorm.io/gorm"
)

type emitted struct {
	event   string
	payload any
}

// recordingConn stands in for a websocket client.
type recordingConn struct {
	id     string
	mu     sync.Mutex
	events []emitted
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, emitted{event: event, payload: payload})
	return nil
}

func (c *recordingConn) payloads(event string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, e := range c.events {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

type fakeSender struct {
	mu      sync.Mutex
	calls   [][]string
	invalid []string
	err     error
}

func (s *fakeSender) Send(_ context.Context, tokens []string, _ push.Message) (push.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, tokens)
	return push.Result{Sent: len(tokens) - len(s.invalid), Failed: len(s.invalid), Invalid: s.invalid}, s.err
}

func (s *fakeSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakePosts map[string]*models.Post

func (f fakePosts) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, repositories.ErrPostNotFound
}

type fixture struct {
	db            *gorm.DB
	users         []models.User
	registry      *presence.Registry
	notifications *NotificationService
	chat          *ChatService
	friends       *FriendService
}

func newFixture(t *testing.T, userCount int) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	users := testutil.SeedUsers(t, db, userCount)
	registry := presence.NewRegistry()

	userRepo := repositories.NewPostgresUserRepository(db)
	directory := NewUserDirectory(userRepo, nil)
	notifications := NewNotificationService(
		repositories.NewPostgresNotificationRepository(db),
		repositories.NewPostgresDeviceTokenRepository(db),
		directory,
		fakePosts{},
		registry,
		nil,
	)

	return &fixture{
		db:            db,
		users:         users,
		registry:      registry,
		notifications: notifications,
		chat:          NewChatService(repositories.NewPostgresMessageRepository(db), directory, notifications, registry),
		friends:       NewFriendService(repositories.NewPostgresFriendshipRepository(db), userRepo, directory, notifications),
	}
}

func (f *fixture) online(userID uint) *recordingConn {
	conn := &recordingConn{id: fmt.Sprintf("conn-%d", userID)}
	f.registry.SetOnline(userID, conn)
	return conn
}
