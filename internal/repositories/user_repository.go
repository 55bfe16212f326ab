package repositories

import (
	"context"
	"strings"

	"github.com/abdojat/fbcloneapi/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
	ListExcluding(ctx context.Context, exclude []uint, limit int) ([]models.User, error)
	AddPasswordHistory(ctx context.Context, userID uint, hash string, keep int) error
	RecentPasswordHashes(ctx context.Context, userID uint, n int) ([]string, error)
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("firebase_uid = ?", firebaseUID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUsersByIDs returns the users that exist among ids, in no particular order.
func (r *PostgresUserRepository) GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *PostgresUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// SearchUsers matches username, first or last name, case-insensitively
func (r *PostgresUserRepository) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	var users []models.User
	like := "%" + strings.ToLower(query) + "%"
	err := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *PostgresUserRepository) ListExcluding(ctx context.Context, exclude []uint, limit int) ([]models.User, error) {
	var users []models.User
	q := r.db.WithContext(ctx).Order("id ASC").Limit(limit)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// AddPasswordHistory records hash and trims the history to the newest keep entries.
func (r *PostgresUserRepository) AddPasswordHistory(ctx context.Context, userID uint, hash string, keep int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.PasswordHistory{UserID: userID, Hash: hash}).Error; err != nil {
			return err
		}
		var stale []uint
		err := tx.Model(&models.PasswordHistory{}).
			Where("user_id = ?", userID).
			Order("created_at DESC, id DESC").
			Offset(keep).
			Pluck("id", &stale).Error
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}
		return tx.Where("id IN ?", stale).Delete(&models.PasswordHistory{}).Error
	})
}

func (r *PostgresUserRepository) RecentPasswordHashes(ctx context.Context, userID uint, n int) ([]string, error) {
	var hashes []string
	err := r.db.WithContext(ctx).Model(&models.PasswordHistory{}).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(n).
		Pluck("hash", &hashes).Error
	return hashes, err
}
