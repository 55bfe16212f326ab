package models

import "time"

const (
	NotificationFriendRequest  = "friendRequest"
	NotificationFriendAccepted = "friendAccepted"
	NotificationFriendRejected = "friendRejected"
	NotificationCanceled       = "canceled"
	NotificationFriendRemoved  = "friendRemoved"
	NotificationMessage        = "message"
	NotificationLike           = "like"
	NotificationComment        = "comment"
)

// Notification represents a user notification (PostgreSQL)
type Notification struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	RecipientID uint       `json:"recipient" gorm:"index;not null"`
	SenderID    uint       `json:"sender" gorm:"index;not null"`
	Type        string     `json:"type" gorm:"size:30;index"`
	PostID      *string    `json:"postId,omitempty" gorm:"size:24"`
	Content     string     `json:"content"`
	IsRead      bool       `json:"isRead" gorm:"default:false;index"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"index"`
}

// NotificationView is a notification enriched for display.
type NotificationView struct {
	Notification
	Sender *UserSummary `json:"senderInfo,omitempty"`
	Post   *PostSummary `json:"post,omitempty"`
}

// DeviceToken is a push registration for one device.
type DeviceToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"index;not null"`
	Token     string    `json:"-" gorm:"uniqueIndex;not null"`
	Platform  string    `json:"platform" gorm:"size:20"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RegisterTokenRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"omitempty,oneof=android ios web"`
}
