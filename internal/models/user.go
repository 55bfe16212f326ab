package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type User struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	FirstName   string         `json:"firstName" gorm:"size:50"`
	LastName    string         `json:"lastName" gorm:"size:50"`
	Username    string         `json:"username" gorm:"size:50;uniqueIndex"`
	Email       string         `json:"email" gorm:"size:100;uniqueIndex"`
	Password    string         `json:"-"`
	Bio         string         `json:"bio"`
	PicturePath string         `json:"picturePath"`
	FirebaseUID *string        `json:"-" gorm:"uniqueIndex"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// UserSummary is the display subset embedded in notifications, requests and chat lists.
type UserSummary struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PicturePath string `json:"picturePath"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PicturePath: u.PicturePath,
	}
}

// PasswordHistory keeps previous password hashes so they cannot be reused.
type PasswordHistory struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Hash      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
}

// RevokedToken blacklists a JWT after logout until it would have expired anyway.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey"`
	Token     string    `gorm:"uniqueIndex;not null"`
	UserID    uint      `gorm:"index"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}

type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Username  string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Bio       string `json:"bio" validate:"max=500"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateUserRequest struct {
	FirstName   string `json:"firstName,omitempty" validate:"omitempty,min=2,max=50"`
	LastName    string `json:"lastName,omitempty" validate:"omitempty,min=2,max=50"`
	Bio         string `json:"bio,omitempty" validate:"omitempty,max=500"`
	PicturePath string `json:"picturePath,omitempty" validate:"omitempty,max=500"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
