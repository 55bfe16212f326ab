package repositories

import (
	"context"

	"github.com/abdojat/fbcloneapi/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SavedPostRepository defines the interface for saved post operations
type SavedPostRepository interface {
	SavePost(ctx context.Context, userID uint, postID string) error
	UnsavePost(ctx context.Context, userID uint, postID string) error
	GetSavedPostIDs(ctx context.Context, userID uint) ([]string, error)
}

// PostgresSavedPostRepository implements SavedPostRepository
type PostgresSavedPostRepository struct {
	db *gorm.DB
}

func NewPostgresSavedPostRepository(db *gorm.DB) *PostgresSavedPostRepository {
	return &PostgresSavedPostRepository{db: db}
}

// SavePost is idempotent: saving an already saved post is not an error.
func (r *PostgresSavedPostRepository) SavePost(ctx context.Context, userID uint, postID string) error {
	row := models.SavedPost{UserID: userID, PostID: postID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (r *PostgresSavedPostRepository) UnsavePost(ctx context.Context, userID uint, postID string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.SavedPost{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *PostgresSavedPostRepository) GetSavedPostIDs(ctx context.Context, userID uint) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.SavedPost{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("post_id", &ids).Error
	return ids, err
}
