package repositories

import (
	"context"
	"time"

	"github.com/abdojat/fbcloneapi/internal/models"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	History(ctx context.Context, userA, userB uint) ([]models.Message, error)
	LatestPerPartner(ctx context.Context, userID uint) ([]models.Message, error)
	UnreadCountsBySender(ctx context.Context, recipientID uint) (map[uint]int64, error)
	MarkThreadRead(ctx context.Context, senderID, recipientID uint, at time.Time) (int64, error)
}

type postgresMessageRepository struct {
	db *gorm.DB
}

func NewPostgresMessageRepository(db *gorm.DB) MessageRepository {
	return &postgresMessageRepository{db: db}
}

func (r *postgresMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *postgresMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *postgresMessageRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Updates(fields).Error
}

func (r *postgresMessageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Message{}, id).Error
}

// History returns the thread between two users in both directions, oldest first.
func (r *postgresMessageRepository) History(ctx context.Context, userA, userB uint) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", userA, userB, userB, userA).
		Order("sent_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}

// LatestPerPartner returns the newest message of every conversation userID takes part in,
// newest conversation first.
func (r *postgresMessageRepository) LatestPerPartner(ctx context.Context, userID uint) ([]models.Message, error) {
	db := r.db.WithContext(ctx)

	ranked := db.Model(&models.Message{}).
		Select(`id, ROW_NUMBER() OVER (
			PARTITION BY CASE WHEN sender_id = ? THEN recipient_id ELSE sender_id END
			ORDER BY sent_at DESC, id DESC) AS rn`, userID).
		Where("sender_id = ? OR recipient_id = ?", userID, userID)

	var ids []uint
	if err := db.Table("(?) AS ranked", ranked).Where("rn = 1").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	latest := make([]models.Message, 0, len(ids))
	if len(ids) == 0 {
		return latest, nil
	}
	err := db.Where("id IN ?", ids).Order("sent_at DESC, id DESC").Find(&latest).Error
	return latest, err
}

func (r *postgresMessageRepository) UnreadCountsBySender(ctx context.Context, recipientID uint) (map[uint]int64, error) {
	var rows []struct {
		SenderID uint
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.SenderID] = row.Count
	}
	return counts, nil
}

func (r *postgresMessageRepository) MarkThreadRead(ctx context.Context, senderID, recipientID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND is_read = ?", senderID, recipientID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
			"status":  models.MessageStatusSeen,
		})
	return res.RowsAffected, res.Error
}
