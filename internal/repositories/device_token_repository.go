package repositories

import (
	"context"

	"github.com/abdojat/fbcloneapi/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceTokenRepository interface {
	Upsert(ctx context.Context, userID uint, token, platform string) error
	TokensForUser(ctx context.Context, userID uint) ([]string, error)
	DeleteTokens(ctx context.Context, tokens []string) (int64, error)
}

type postgresDeviceTokenRepository struct {
	db *gorm.DB
}

func NewPostgresDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &postgresDeviceTokenRepository{db: db}
}

// Upsert registers token for userID. A token already held by another user moves to userID.
func (r *postgresDeviceTokenRepository) Upsert(ctx context.Context, userID uint, token, platform string) error {
	row := models.DeviceToken{UserID: userID, Token: token, Platform: platform}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "updated_at"}),
	}).Create(&row).Error
}

func (r *postgresDeviceTokenRepository) TokensForUser(ctx context.Context, userID uint) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&models.DeviceToken{}).
		Where("user_id = ?", userID).
		Pluck("token", &tokens).Error
	return tokens, err
}

func (r *postgresDeviceTokenRepository) DeleteTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("token IN ?", tokens).Delete(&models.DeviceToken{})
	return res.RowsAffected, res.Error
}
