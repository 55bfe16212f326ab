package repositories

import (
	"context"
	"time"

	"github.com/abdojat/fbcloneapi/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	GetByRecipientID(ctx context.Context, recipientID uint, page, limit int) ([]models.Notification, int64, error)
	GetGrouped(ctx context.Context, recipientID uint, now time.Time) ([]models.Notification, []models.Notification, []models.Notification, []models.Notification, error)
	GetUnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkAsRead(ctx context.Context, notificationID uint, at time.Time) error
	MarkAllAsRead(ctx context.Context, recipientID uint, at time.Time) (int64, error)
	MarkMessageNotificationsRead(ctx context.Context, senderID, recipientID uint, at time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *postgresNotificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *postgresNotificationRepository) GetByRecipientID(ctx context.Context, recipientID uint, page, limit int) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := db.Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *postgresNotificationRepository) GetGrouped(ctx context.Context, recipientID uint, now time.Time) (today, yesterday, thisWeek, older []models.Notification, retErr error) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	db := r.db.WithContext(ctx)

	if err := db.Where("recipient_id = ? AND created_at >= ?", recipientID, todayStart).
		Order("created_at DESC").Find(&today).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	if err := db.Where("recipient_id = ? AND created_at >= ? AND created_at < ?", recipientID, yesterdayStart, todayStart).
		Order("created_at DESC").Find(&yesterday).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	if err := db.Where("recipient_id = ? AND created_at >= ? AND created_at < ?", recipientID, weekStart, yesterdayStart).
		Order("created_at DESC").Find(&thisWeek).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	if err := db.Where("recipient_id = ? AND created_at < ?", recipientID, weekStart).
		Order("created_at DESC").Limit(50).Find(&older).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	return today, yesterday, thisWeek, older, nil
}

func (r *postgresNotificationRepository) GetUnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, notificationID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND is_read = ?", notificationID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

// MarkMessageNotificationsRead mirrors a chat thread read onto the message notifications
// that sender generated for recipient.
func (r *postgresNotificationRepository) MarkMessageNotificationsRead(ctx context.Context, senderID, recipientID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("sender_id = ? AND recipient_id = ? AND type = ? AND is_read = ?", senderID, recipientID, models.NotificationMessage, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *postgresNotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
