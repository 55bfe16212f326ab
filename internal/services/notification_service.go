package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/presence"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/abdojat/fbcloneapi/pkg/metrics"
	"github.com/abdojat/fbcloneapi/pkg/push"
	"github.com/abdojat/fbcloneapi/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const EventNewNotification = "newNotification"

// PostFinder loads a post for notification enrichment.
type PostFinder interface {
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
}

// PushQueue accepts push jobs without blocking the caller.
type PushQueue interface {
	Enqueue(userID uint, msg push.Message)
}

type NotifyInput struct {
	RecipientID uint
	SenderID    uint
	Type        string
	PostID      string
	Content     string
}

type NotificationService struct {
	repo      repositories.NotificationRepository
	tokens    repositories.DeviceTokenRepository
	directory *UserDirectory
	posts     PostFinder
	presence  presence.Lookup
	push      PushQueue
	now       func() time.Time
}

// NewNotificationService wires the service. lookup and pushQueue may be nil, in which
// case the matching delivery channel is skipped.
func NewNotificationService(
	repo repositories.NotificationRepository,
	tokens repositories.DeviceTokenRepository,
	directory *UserDirectory,
	posts PostFinder,
	lookup presence.Lookup,
	pushQueue PushQueue,
) *NotificationService {
	return &NotificationService{
		repo:      repo,
		tokens:    tokens,
		directory: directory,
		posts:     posts,
		presence:  lookup,
		push:      pushQueue,
		now:       time.Now,
	}
}

// Notify persists the notification and then attempts live and push delivery.
// Only a persistence failure is returned.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	ctx, span := tracing.Tracer().Start(ctx, "NotificationService.Notify")
	defer span.End()
	span.SetAttributes(attribute.String("notification.type", in.Type))

	n := &models.Notification{
		RecipientID: in.RecipientID,
		SenderID:    in.SenderID,
		Type:        in.Type,
		Content:     in.Content,
	}
	if in.PostID != "" {
		postID := in.PostID
		n.PostID = &postID
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, apperrors.Internal("failed to save notification", err)
	}
	metrics.NotificationsCreated.WithLabelValues(in.Type).Inc()

	var senderName string
	views := s.enrich(ctx, []models.Notification{*n})
	if views[0].Sender != nil {
		senderName = views[0].Sender.Username
	}

	if s.presence != nil {
		if conn, ok := s.presence.Connection(in.RecipientID); ok {
			if err := conn.Emit(EventNewNotification, views[0]); err != nil {
				logger.Warn("live notification emit failed", zap.Uint("recipient", in.RecipientID), zap.Error(err))
			}
		}
	}

	if s.push != nil {
		s.push.Enqueue(in.RecipientID, pushMessage(n, senderName))
	}

	return n, nil
}

func pushMessage(n *models.Notification, senderName string) push.Message {
	if senderName == "" {
		senderName = "Someone"
	}
	var title, body string
	switch n.Type {
	case models.NotificationFriendRequest:
		title, body = "New friend request", senderName+" sent you a friend request"
	case models.NotificationFriendAccepted:
		title, body = "Friend request accepted", senderName+" accepted your friend request"
	case models.NotificationFriendRejected:
		title, body = "Friend request declined", senderName+" declined your friend request"
	case models.NotificationCanceled:
		title, body = "Friend request canceled", senderName+" canceled their friend request"
	case models.NotificationFriendRemoved:
		title, body = "Friend removed", senderName+" removed you from their friends"
	case models.NotificationMessage:
		title, body = senderName, n.Content
	case models.NotificationLike:
		title, body = "New like", senderName+" liked your post"
	case models.NotificationComment:
		title, body = "New comment", fmt.Sprintf("%s commented: %s", senderName, n.Content)
	default:
		title, body = "Notification", n.Content
	}

	data := map[string]string{
		"type":           n.Type,
		"notificationId": strconv.FormatUint(uint64(n.ID), 10),
		"senderId":       strconv.FormatUint(uint64(n.SenderID), 10),
	}
	if n.PostID != nil {
		data["postId"] = *n.PostID
	}
	return push.Message{Title: title, Body: body, Data: data}
}

// enrich attaches sender display fields and minimal post fields. Lookup failures leave
// the field empty rather than failing the read.
func (s *NotificationService) enrich(ctx context.Context, list []models.Notification) []models.NotificationView {
	views := make([]models.NotificationView, len(list))

	senderIDs := make([]uint, 0, len(list))
	for _, n := range list {
		senderIDs = append(senderIDs, n.SenderID)
	}
	senders, err := s.directory.Summaries(ctx, senderIDs)
	if err != nil {
		logger.Warn("loading notification senders", zap.Error(err))
	}

	posts := make(map[string]*models.PostSummary)
	for i, n := range list {
		views[i].Notification = n
		if snap, ok := senders[n.SenderID]; ok {
			snap := snap
			views[i].Sender = &snap
		}
		if n.PostID == nil || s.posts == nil {
			continue
		}
		summary, seen := posts[*n.PostID]
		if !seen {
			post, err := s.posts.GetPostByID(ctx, *n.PostID)
			if err != nil {
				if !errors.Is(err, repositories.ErrPostNotFound) {
					logger.Warn("loading notification post", zap.String("postId", *n.PostID), zap.Error(err))
				}
			} else {
				ps := post.Summary()
				summary = &ps
			}
			posts[*n.PostID] = summary
		}
		views[i].Post = summary
	}
	return views
}

// List returns a page of the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, page, limit int) ([]models.NotificationView, int64, error) {
	list, total, err := s.repo.GetByRecipientID(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to load notifications", err)
	}
	return s.enrich(ctx, list), total, nil
}

type GroupedNotifications struct {
	Today     []models.NotificationView `json:"today"`
	Yesterday []models.NotificationView `json:"yesterday"`
	ThisWeek  []models.NotificationView `json:"thisWeek"`
	Older     []models.NotificationView `json:"older"`
}

func (s *NotificationService) Grouped(ctx context.Context, userID uint) (*GroupedNotifications, error) {
	today, yesterday, week, older, err := s.repo.GetGrouped(ctx, userID, s.now())
	if err != nil {
		return nil, apperrors.Internal("failed to load notifications", err)
	}
	return &GroupedNotifications{
		Today:     s.enrich(ctx, today),
		Yesterday: s.enrich(ctx, yesterday),
		ThisWeek:  s.enrich(ctx, week),
		Older:     s.enrich(ctx, older),
	}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	count, err := s.repo.GetUnreadCount(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal("failed to count notifications", err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("notification not found")
		}
		return apperrors.Internal("failed to load notification", err)
	}
	if n.RecipientID != userID {
		return apperrors.NotFound("notification not found")
	}
	if err := s.repo.MarkAsRead(ctx, notificationID, s.now()); err != nil {
		return apperrors.Internal("failed to mark notification read", err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	updated, err := s.repo.MarkAllAsRead(ctx, userID, s.now())
	if err != nil {
		return 0, apperrors.Internal("failed to mark notifications read", err)
	}
	return updated, nil
}

// MarkMessageNotificationsRead mirrors a chat thread read onto its notifications.
func (s *NotificationService) MarkMessageNotificationsRead(ctx context.Context, senderID, recipientID uint, at time.Time) error {
	if _, err := s.repo.MarkMessageNotificationsRead(ctx, senderID, recipientID, at); err != nil {
		return apperrors.Internal("failed to mark message notifications read", err)
	}
	return nil
}

func (s *NotificationService) RegisterToken(ctx context.Context, userID uint, token, platform string) error {
	if platform == "" {
		platform = "android"
	}
	if err := s.tokens.Upsert(ctx, userID, token, platform); err != nil {
		return apperrors.Internal("failed to register device token", err)
	}
	return nil
}
