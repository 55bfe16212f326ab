package services

import (
	"context"
	"errors"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/abdojat/fbcloneapi/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ActionAdd    = "add"
	ActionCancel = "cancel"
	ActionAccept = "accept"
	ActionReject = "reject"
	ActionRemove = "remove"

	suggestionLimit = 10
)

// FriendActionResult describes a completed transition.
type FriendActionResult struct {
	Action       string                `json:"action"`
	TargetUserID uint                  `json:"targetUserId"`
	Request      *models.FriendRequest `json:"request,omitempty"`
}

type FriendService struct {
	repo          repositories.FriendshipRepository
	users         repositories.UserRepository
	directory     *UserDirectory
	notifications *NotificationService
}

func NewFriendService(
	repo repositories.FriendshipRepository,
	users repositories.UserRepository,
	directory *UserDirectory,
	notifications *NotificationService,
) *FriendService {
	return &FriendService{repo: repo, users: users, directory: directory, notifications: notifications}
}

// Act applies one transition of the friend state machine. All record changes of a
// transition commit together; the notification is sent after the commit.
func (s *FriendService) Act(ctx context.Context, requesterID uint, req models.FriendActionRequest) (*FriendActionResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "FriendService.Act")
	defer span.End()
	span.SetAttributes(attribute.String("friend.action", req.Action))

	var (
		result    *FriendActionResult
		notifyTo  uint
		notifType string
		err       error
	)

	switch req.Action {
	case ActionAdd:
		result, err = s.add(ctx, requesterID, req.TargetUserID)
		notifyTo, notifType = req.TargetUserID, models.NotificationFriendRequest
	case ActionCancel:
		result, err = s.cancel(ctx, requesterID, req.TargetUserID)
		notifyTo, notifType = req.TargetUserID, models.NotificationCanceled
	case ActionAccept:
		result, err = s.resolve(ctx, requesterID, req.RequestID, models.RequestStatusAccepted)
		notifType = models.NotificationFriendAccepted
	case ActionReject:
		result, err = s.resolve(ctx, requesterID, req.RequestID, models.RequestStatusRejected)
		notifType = models.NotificationFriendRejected
	case ActionRemove:
		result, err = s.remove(ctx, requesterID, req.TargetUserID)
		notifyTo, notifType = req.TargetUserID, models.NotificationFriendRemoved
	default:
		return nil, apperrors.Validation("unknown friend action")
	}
	if err != nil {
		return nil, err
	}

	if notifyTo == 0 {
		notifyTo = result.TargetUserID
	}
	if _, nErr := s.notifications.Notify(ctx, NotifyInput{
		RecipientID: notifyTo,
		SenderID:    requesterID,
		Type:        notifType,
	}); nErr != nil {
		logger.Error("friend notification failed", zap.String("action", req.Action), zap.Error(nErr))
	}
	return result, nil
}

func (s *FriendService) requireTarget(ctx context.Context, requesterID, targetID uint) error {
	if targetID == 0 {
		return apperrors.Validation("targetUserId is required")
	}
	if targetID == requesterID {
		return apperrors.Validation("cannot perform friend actions on yourself")
	}
	if _, err := s.users.GetUserByID(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("user not found")
		}
		return apperrors.Internal("failed to load user", err)
	}
	return nil
}

func (s *FriendService) add(ctx context.Context, requesterID, targetID uint) (*FriendActionResult, error) {
	if err := s.requireTarget(ctx, requesterID, targetID); err != nil {
		return nil, err
	}

	var incoming *models.FriendRequest
	err := s.repo.Transaction(ctx, func(tx repositories.FriendshipRepository) error {
		friends, err := tx.AreFriends(ctx, requesterID, targetID)
		if err != nil {
			return apperrors.Internal("failed to check friendship", err)
		}
		if friends {
			return apperrors.Conflict("already friends")
		}

		_, err = tx.FindPending(ctx, requesterID, targetID, models.RequestDirectionOutgoing)
		if err == nil {
			return apperrors.Conflict("friend request already sent")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Internal("failed to check pending requests", err)
		}

		incoming, err = tx.CreateRequestPair(ctx, requesterID, targetID)
		if err != nil {
			return apperrors.Internal("failed to create friend request", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &FriendActionResult{Action: ActionAdd, TargetUserID: targetID, Request: incoming}, nil
}

func (s *FriendService) cancel(ctx context.Context, requesterID, targetID uint) (*FriendActionResult, error) {
	if err := s.requireTarget(ctx, requesterID, targetID); err != nil {
		return nil, err
	}

	err := s.repo.Transaction(ctx, func(tx repositories.FriendshipRepository) error {
		closed, err := tx.CloseRequestPair(ctx, requesterID, targetID, models.RequestStatusCanceled)
		if err != nil {
			return apperrors.Internal("failed to cancel friend request", err)
		}
		if closed == 0 {
			return apperrors.NotFound("no pending friend request to cancel")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &FriendActionResult{Action: ActionCancel, TargetUserID: targetID}, nil
}

// resolve accepts or rejects the incoming request requestID owned by the requester.
func (s *FriendService) resolve(ctx context.Context, requesterID, requestID uint, status string) (*FriendActionResult, error) {
	if requestID == 0 {
		return nil, apperrors.Validation("requestId is required")
	}

	var senderID uint
	err := s.repo.Transaction(ctx, func(tx repositories.FriendshipRepository) error {
		req, err := tx.GetRequestByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("friend request not found")
			}
			return apperrors.Internal("failed to load friend request", err)
		}
		if req.UserID != requesterID || req.Direction != models.RequestDirectionIncoming || req.Status != models.RequestStatusPending {
			return apperrors.NotFound("friend request not found")
		}
		senderID = req.PeerID

		if status == models.RequestStatusAccepted {
			friends, err := tx.AreFriends(ctx, requesterID, senderID)
			if err != nil {
				return apperrors.Internal("failed to check friendship", err)
			}
			if !friends {
				if err := tx.AddFriendship(ctx, requesterID, senderID); err != nil {
					return apperrors.Internal("failed to add friend", err)
				}
			}
			// a crossed request in the other direction is settled by the same accept
			if _, err := tx.CloseRequestPair(ctx, requesterID, senderID, status); err != nil {
				return apperrors.Internal("failed to close friend request", err)
			}
		}
		if _, err := tx.CloseRequestPair(ctx, senderID, requesterID, status); err != nil {
			return apperrors.Internal("failed to close friend request", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := ActionAccept
	if status == models.RequestStatusRejected {
		action = ActionReject
	}
	return &FriendActionResult{Action: action, TargetUserID: senderID}, nil
}

func (s *FriendService) remove(ctx context.Context, requesterID, targetID uint) (*FriendActionResult, error) {
	if err := s.requireTarget(ctx, requesterID, targetID); err != nil {
		return nil, err
	}

	err := s.repo.Transaction(ctx, func(tx repositories.FriendshipRepository) error {
		removed, err := tx.RemoveFriendship(ctx, requesterID, targetID)
		if err != nil {
			return apperrors.Internal("failed to remove friend", err)
		}
		if removed == 0 {
			return apperrors.Conflict("not friends")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &FriendActionResult{Action: ActionRemove, TargetUserID: targetID}, nil
}

// Friends returns the display snapshots of userID's friends.
func (s *FriendService) Friends(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	ids, err := s.repo.FriendIDs(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load friends", err)
	}
	return s.summariesInOrder(ctx, ids)
}

// FriendsOf is Friends for another user's profile page.
func (s *FriendService) FriendsOf(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Internal("failed to load user", err)
	}
	return s.Friends(ctx, userID)
}

func (s *FriendService) IncomingRequests(ctx context.Context, userID uint) ([]models.FriendRequestView, error) {
	return s.requests(ctx, userID, models.RequestDirectionIncoming)
}

func (s *FriendService) OutgoingRequests(ctx context.Context, userID uint) ([]models.FriendRequestView, error) {
	return s.requests(ctx, userID, models.RequestDirectionOutgoing)
}

func (s *FriendService) requests(ctx context.Context, userID uint, direction string) ([]models.FriendRequestView, error) {
	rows, err := s.repo.PendingRequests(ctx, userID, direction)
	if err != nil {
		return nil, apperrors.Internal("failed to load friend requests", err)
	}
	peerIDs := make([]uint, 0, len(rows))
	for _, r := range rows {
		peerIDs = append(peerIDs, r.PeerID)
	}
	peers, err := s.directory.Summaries(ctx, peerIDs)
	if err != nil {
		return nil, apperrors.Internal("failed to load users", err)
	}

	views := make([]models.FriendRequestView, 0, len(rows))
	for _, r := range rows {
		peer, ok := peers[r.PeerID]
		if !ok {
			continue
		}
		views = append(views, models.FriendRequestView{ID: r.ID, Status: r.Status, CreatedAt: r.CreatedAt, User: peer})
	}
	return views, nil
}

// Suggestions returns users who are neither the user, a friend, nor already asked.
func (s *FriendService) Suggestions(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	friendIDs, err := s.repo.FriendIDs(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load friends", err)
	}
	pendingIDs, err := s.repo.PendingOutgoingPeerIDs(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load friend requests", err)
	}

	exclude := append([]uint{userID}, friendIDs...)
	exclude = append(exclude, pendingIDs...)
	users, err := s.users.ListExcluding(ctx, exclude, suggestionLimit)
	if err != nil {
		return nil, apperrors.Internal("failed to load suggestions", err)
	}

	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return out, nil
}

func (s *FriendService) summariesInOrder(ctx context.Context, ids []uint) ([]models.UserSummary, error) {
	found, err := s.directory.Summaries(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to load users", err)
	}
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := found[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
