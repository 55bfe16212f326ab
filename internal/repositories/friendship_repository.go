package repositories

import (
	"context"

	"github.com/abdojat/fbcloneapi/internal/models"
	"gorm.io/gorm"
)

// FriendshipRepository defines the interface for friendship and friend request data operations
type FriendshipRepository interface {
	// Transaction runs fn against a repository bound to a single database transaction.
	Transaction(ctx context.Context, fn func(repo FriendshipRepository) error) error

	AreFriends(ctx context.Context, userID, otherID uint) (bool, error)
	AddFriendship(ctx context.Context, userID, otherID uint) error
	RemoveFriendship(ctx context.Context, userID, otherID uint) (int64, error)
	FriendIDs(ctx context.Context, userID uint) ([]uint, error)

	CreateRequestPair(ctx context.Context, requesterID, targetID uint) (*models.FriendRequest, error)
	FindPending(ctx context.Context, ownerID, peerID uint, direction string) (*models.FriendRequest, error)
	GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error)
	CloseRequestPair(ctx context.Context, requesterID, targetID uint, status string) (int64, error)
	PendingRequests(ctx context.Context, userID uint, direction string) ([]models.FriendRequest, error)
	PendingOutgoingPeerIDs(ctx context.Context, userID uint) ([]uint, error)
}

// PostgresFriendshipRepository implements FriendshipRepository for PostgreSQL
type PostgresFriendshipRepository struct {
	db *gorm.DB
}

// NewPostgresFriendshipRepository creates a new PostgresFriendshipRepository
func NewPostgresFriendshipRepository(db *gorm.DB) *PostgresFriendshipRepository {
	return &PostgresFriendshipRepository{db: db}
}

func (r *PostgresFriendshipRepository) Transaction(ctx context.Context, fn func(repo FriendshipRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresFriendshipRepository{db: tx})
	})
}

func (r *PostgresFriendshipRepository) AreFriends(ctx context.Context, userID, otherID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("user_id = ? AND friend_id = ?", userID, otherID).
		Count(&count).Error
	return count > 0, err
}

// AddFriendship inserts both directions of the friendship.
func (r *PostgresFriendshipRepository) AddFriendship(ctx context.Context, userID, otherID uint) error {
	rows := []models.Friendship{
		{UserID: userID, FriendID: otherID},
		{UserID: otherID, FriendID: userID},
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// RemoveFriendship deletes both directions and reports how many rows went away.
func (r *PostgresFriendshipRepository) RemoveFriendship(ctx context.Context, userID, otherID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", userID, otherID, otherID, userID).
		Delete(&models.Friendship{})
	return res.RowsAffected, res.Error
}

func (r *PostgresFriendshipRepository) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("friend_id", &ids).Error
	return ids, err
}

// CreateRequestPair writes the outgoing row for the requester and the incoming row for
// the target, returning the incoming row whose id the target uses to accept or reject.
func (r *PostgresFriendshipRepository) CreateRequestPair(ctx context.Context, requesterID, targetID uint) (*models.FriendRequest, error) {
	outgoing := models.FriendRequest{
		UserID:    requesterID,
		PeerID:    targetID,
		Direction: models.RequestDirectionOutgoing,
		Status:    models.RequestStatusPending,
	}
	incoming := models.FriendRequest{
		UserID:    targetID,
		PeerID:    requesterID,
		Direction: models.RequestDirectionIncoming,
		Status:    models.RequestStatusPending,
	}
	db := r.db.WithContext(ctx)
	if err := db.Create(&outgoing).Error; err != nil {
		return nil, err
	}
	if err := db.Create(&incoming).Error; err != nil {
		return nil, err
	}
	return &incoming, nil
}

func (r *PostgresFriendshipRepository) FindPending(ctx context.Context, ownerID, peerID uint, direction string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND peer_id = ? AND direction = ? AND status = ?", ownerID, peerID, direction, models.RequestStatusPending).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *PostgresFriendshipRepository) GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// CloseRequestPair stamps the final status on both pending rows of the request from
// requester to target, then soft-deletes them. It returns the number of rows closed.
func (r *PostgresFriendshipRepository) CloseRequestPair(ctx context.Context, requesterID, targetID uint, status string) (int64, error) {
	db := r.db.WithContext(ctx)

	var ids []uint
	err := db.Model(&models.FriendRequest{}).
		Where("status = ?", models.RequestStatusPending).
		Where(db.Where("user_id = ? AND peer_id = ? AND direction = ?", requesterID, targetID, models.RequestDirectionOutgoing).
			Or("user_id = ? AND peer_id = ? AND direction = ?", targetID, requesterID, models.RequestDirectionIncoming)).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	if err := db.Model(&models.FriendRequest{}).Where("id IN ?", ids).Update("status", status).Error; err != nil {
		return 0, err
	}
	res := db.Where("id IN ?", ids).Delete(&models.FriendRequest{})
	return res.RowsAffected, res.Error
}

func (r *PostgresFriendshipRepository) PendingRequests(ctx context.Context, userID uint, direction string) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND direction = ? AND status = ?", userID, direction, models.RequestStatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

func (r *PostgresFriendshipRepository) PendingOutgoingPeerIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("user_id = ? AND direction = ? AND status = ?", userID, models.RequestDirectionOutgoing, models.RequestStatusPending).
		Pluck("peer_id", &ids).Error
	return ids, err
}
