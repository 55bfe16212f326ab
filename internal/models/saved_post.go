package models

import "time"

// SavedPost is a bookmark from a user to a post document.
type SavedPost struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"index;uniqueIndex:idx_user_post_save"`
	PostID    string    `json:"postId" gorm:"size:24;uniqueIndex:idx_user_post_save"`
	CreatedAt time.Time `json:"createdAt"`
}
