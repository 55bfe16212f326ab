package models

import "time"

const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusSeen      = "seen"
)

type Message struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	SenderID    uint       `json:"sender" gorm:"index:idx_message_pair;not null"`
	RecipientID uint       `json:"recipient" gorm:"index:idx_message_pair;index;not null"`
	Text        string     `json:"text" gorm:"type:text;not null"`
	Status      string     `json:"status" gorm:"type:varchar(10);default:'sent'"`
	Read        bool       `json:"read" gorm:"column:is_read;default:false;index"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	Edited      bool       `json:"edited" gorm:"default:false"`
	EditedAt    *time.Time `json:"editedAt,omitempty"`
	Timestamp   time.Time  `json:"timestamp" gorm:"column:sent_at;index"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type SendMessageRequest struct {
	Recipient uint      `json:"recipient" validate:"required"`
	Text      string    `json:"text" validate:"required,notblank,max=5000"`
	Timestamp time.Time `json:"timestamp"`
}

type EditMessageRequest struct {
	Text string `json:"text"`
}

// Conversation summarizes one chat partner for the recent conversations list.
type Conversation struct {
	PartnerID     uint      `json:"_id"`
	Username      string    `json:"username"`
	PicturePath   string    `json:"picturePath"`
	LastMessage   string    `json:"lastMessage"`
	LastTimestamp time.Time `json:"timestamp"`
	UnreadCount   int64     `json:"unreadCount"`
}

// ReadReceipt tells the original sender that a thread was read.
type ReadReceipt struct {
	Sender    uint `json:"sender"`
	Recipient uint `json:"recipient"`
}
