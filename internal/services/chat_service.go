package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/presence"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/abdojat/fbcloneapi/pkg/metrics"
	"github.com/abdojat/fbcloneapi/pkg/tracing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	EventReceiveMessage = "receiveMessage"
	EventReadReceipt    = "readReceipt"
	EventTyping         = "typing"
	EventStopTyping     = "stopTyping"

	snippetLength   = 50
	unknownUsername = "Unknown"
)

type ChatService struct {
	messages      repositories.MessageRepository
	directory     *UserDirectory
	notifications *NotificationService
	presence      presence.Lookup
	now           func() time.Time
}

func NewChatService(
	messages repositories.MessageRepository,
	directory *UserDirectory,
	notifications *NotificationService,
	lookup presence.Lookup,
) *ChatService {
	return &ChatService{
		messages:      messages,
		directory:     directory,
		notifications: notifications,
		presence:      lookup,
		now:           time.Now,
	}
}

// Snippet truncates s to at most n runes.
func Snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Send persists a message, notifies the recipient and pushes it live when they are online.
// A zero timestamp means now.
func (s *ChatService) Send(ctx context.Context, senderID, recipientID uint, text string, ts time.Time) (*models.Message, error) {
	ctx, span := tracing.Tracer().Start(ctx, "ChatService.Send")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("message text is required")
	}
	if recipientID == 0 {
		return nil, apperrors.Validation("recipient is required")
	}
	if _, ok, err := s.directory.Summary(ctx, recipientID); err != nil {
		return nil, apperrors.Internal("failed to load recipient", err)
	} else if !ok {
		return nil, apperrors.NotFound("recipient not found")
	}
	if ts.IsZero() {
		ts = s.now()
	}

	msg := &models.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		Status:      models.MessageStatusSent,
		Timestamp:   ts,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.Internal("failed to save message", err)
	}
	metrics.MessagesSent.Inc()

	if _, err := s.notifications.Notify(ctx, NotifyInput{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        models.NotificationMessage,
		Content:     Snippet(text, snippetLength),
	}); err != nil {
		logger.Error("message notification failed", zap.Uint("messageId", msg.ID), zap.Error(err))
	}

	if conn, ok := s.connection(recipientID); ok {
		if err := s.messages.Update(ctx, msg.ID, map[string]interface{}{"status": models.MessageStatusDelivered}); err != nil {
			logger.Warn("marking message delivered", zap.Uint("messageId", msg.ID), zap.Error(err))
		} else {
			msg.Status = models.MessageStatusDelivered
		}
		if err := conn.Emit(EventReceiveMessage, msg); err != nil {
			logger.Warn("live message emit failed", zap.Uint("recipient", recipientID), zap.Error(err))
		}
	}

	return msg, nil
}

func (s *ChatService) connection(userID uint) (presence.Conn, bool) {
	if s.presence == nil {
		return nil, false
	}
	return s.presence.Connection(userID)
}

// History returns the thread between two users, oldest first.
func (s *ChatService) History(ctx context.Context, userA, userB uint) ([]models.Message, error) {
	msgs, err := s.messages.History(ctx, userA, userB)
	if err != nil {
		return nil, apperrors.Internal("failed to load messages", err)
	}
	return msgs, nil
}

// RecentConversations lists every partner of userID with the latest message and the
// number of unread messages from that partner, most recent conversation first.
func (s *ChatService) RecentConversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	latest, err := s.messages.LatestPerPartner(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load conversations", err)
	}
	unread, err := s.messages.UnreadCountsBySender(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to count unread messages", err)
	}

	partnerIDs := make([]uint, 0, len(latest))
	for _, m := range latest {
		partnerIDs = append(partnerIDs, partnerOf(m, userID))
	}
	partners, err := s.directory.Summaries(ctx, partnerIDs)
	if err != nil {
		return nil, apperrors.Internal("failed to load conversation partners", err)
	}

	convs := make([]models.Conversation, 0, len(latest))
	for _, m := range latest {
		pid := partnerOf(m, userID)
		conv := models.Conversation{
			PartnerID:     pid,
			Username:      unknownUsername,
			LastMessage:   m.Text,
			LastTimestamp: m.Timestamp,
			UnreadCount:   unread[pid],
		}
		if p, ok := partners[pid]; ok {
			conv.Username = p.Username
			conv.PicturePath = p.PicturePath
		}
		convs = append(convs, conv)
	}

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastTimestamp.After(convs[j].LastTimestamp)
	})
	return convs, nil
}

func partnerOf(m models.Message, userID uint) uint {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

func (s *ChatService) load(ctx context.Context, messageID uint) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("message not found")
		}
		return nil, apperrors.Internal("failed to load message", err)
	}
	return msg, nil
}

// MarkRead marks a single message read. Only its recipient may do so.
func (s *ChatService) MarkRead(ctx context.Context, requesterID, messageID uint) (*models.Message, error) {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.RecipientID != requesterID {
		return nil, apperrors.Forbidden("only the recipient can mark a message as read")
	}
	if msg.Read {
		return msg, nil
	}

	at := s.now()
	err = s.messages.Update(ctx, messageID, map[string]interface{}{
		"is_read": true,
		"read_at": at,
		"status":  models.MessageStatusSeen,
	})
	if err != nil {
		return nil, apperrors.Internal("failed to mark message read", err)
	}
	msg.Read = true
	msg.ReadAt = &at
	msg.Status = models.MessageStatusSeen
	return msg, nil
}

func (s *ChatService) Edit(ctx context.Context, requesterID, messageID uint, text string) (*models.Message, error) {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, apperrors.Forbidden("only the sender can edit a message")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("message text cannot be empty")
	}

	at := s.now()
	err = s.messages.Update(ctx, messageID, map[string]interface{}{
		"text":      text,
		"edited":    true,
		"edited_at": at,
	})
	if err != nil {
		return nil, apperrors.Internal("failed to edit message", err)
	}
	msg.Text = text
	msg.Edited = true
	msg.EditedAt = &at
	return msg, nil
}

func (s *ChatService) Delete(ctx context.Context, requesterID, messageID uint) error {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return apperrors.Forbidden("only the sender can delete a message")
	}
	if err := s.messages.Delete(ctx, messageID); err != nil {
		return apperrors.Internal("failed to delete message", err)
	}
	return nil
}

// MarkThreadRead marks everything senderID sent to recipientID as read, mirrors that on
// the matching notifications and sends a read receipt to the sender when online.
func (s *ChatService) MarkThreadRead(ctx context.Context, senderID, recipientID uint) (int64, error) {
	ctx, span := tracing.Tracer().Start(ctx, "ChatService.MarkThreadRead")
	defer span.End()

	at := s.now()
	updated, err := s.messages.MarkThreadRead(ctx, senderID, recipientID, at)
	if err != nil {
		return 0, apperrors.Internal("failed to mark thread read", err)
	}
	if err := s.notifications.MarkMessageNotificationsRead(ctx, senderID, recipientID, at); err != nil {
		logger.Warn("mirroring read state onto notifications", zap.Error(err))
	}

	if conn, ok := s.connection(senderID); ok {
		receipt := models.ReadReceipt{Sender: senderID, Recipient: recipientID}
		if err := conn.Emit(EventReadReceipt, receipt); err != nil {
			logger.Warn("read receipt emit failed", zap.Uint("sender", senderID), zap.Error(err))
		}
	}
	return updated, nil
}

// RelayTyping forwards a typing indicator to the recipient when online.
func (s *ChatService) RelayTyping(event string, senderID, recipientID uint) {
	conn, ok := s.connection(recipientID)
	if !ok {
		return
	}
	if err := conn.Emit(event, map[string]uint{"sender": senderID}); err != nil {
		logger.Debug("typing relay failed", zap.String("event", event), zap.Error(err))
	}
}
