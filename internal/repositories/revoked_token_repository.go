package repositories

import (
	"context"
	"time"

	"github.com/abdojat/fbcloneapi/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RevokedTokenRepository interface {
	Revoke(ctx context.Context, token string, userID uint, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type postgresRevokedTokenRepository struct {
	db *gorm.DB
}

func NewPostgresRevokedTokenRepository(db *gorm.DB) RevokedTokenRepository {
	return &postgresRevokedTokenRepository{db: db}
}

func (r *postgresRevokedTokenRepository) Revoke(ctx context.Context, token string, userID uint, expiresAt time.Time) error {
	row := models.RevokedToken{Token: token, UserID: userID, ExpiresAt: expiresAt}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (r *postgresRevokedTokenRepository) IsRevoked(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RevokedToken{}).Where("token = ?", token).Count(&count).Error
	return count > 0, err
}

func (r *postgresRevokedTokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.RevokedToken{})
	return res.RowsAffected, res.Error
}
