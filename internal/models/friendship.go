package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RequestDirectionIncoming = "incoming"
	RequestDirectionOutgoing = "outgoing"

	RequestStatusPending  = "pending"
	RequestStatusAccepted = "accepted"
	RequestStatusRejected = "rejected"
	RequestStatusCanceled = "canceled"
)

// FriendRequest is one side of a mirrored request pair. A pending request from A to B
// is an outgoing row owned by A and an incoming row owned by B.
// Consumed rows keep their final status and are soft-deleted.
type FriendRequest struct {
	gorm.Model
	UserID    uint   `json:"userId" gorm:"index;not null"`
	PeerID    uint   `json:"peerId" gorm:"index;not null"`
	Direction string `json:"direction" gorm:"type:varchar(10);not null"`
	Status    string `json:"status" gorm:"type:varchar(20);default:'pending'"`
}

// Friendship is one direction of an accepted friendship; both directions always exist together.
type Friendship struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"uniqueIndex:idx_friend_pair;not null"`
	FriendID  uint      `json:"friendId" gorm:"uniqueIndex:idx_friend_pair;index;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// FriendActionRequest drives the friend state machine.
type FriendActionRequest struct {
	TargetUserID uint   `json:"targetUserId"`
	Action       string `json:"action" validate:"required,oneof=add cancel accept reject remove"`
	RequestID    uint   `json:"requestId"`
}

// FriendRequestView is a request row with the other party's display fields.
type FriendRequestView struct {
	ID        uint        `json:"id"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	User      UserSummary `json:"user"`
}
