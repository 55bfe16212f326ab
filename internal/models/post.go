package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a social media post stored in MongoDB
type Post struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID      uint               `json:"userId" bson:"user_id"`
	Content     string             `json:"content" bson:"content"`
	PicturePath string             `json:"picturePath,omitempty" bson:"picture_path,omitempty"`
	Likes       []uint             `json:"likes" bson:"likes"`
	Comments    []Comment          `json:"comments" bson:"comments"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updated_at"`
}

// Comment is embedded in its post.
type Comment struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	UserID    uint               `json:"userId" bson:"user_id"`
	Text      string             `json:"text" bson:"text"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}

// PostSummary is the post subset attached to notifications.
type PostSummary struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	UserID    uint      `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Post) Summary() PostSummary {
	return PostSummary{
		ID:        p.ID.Hex(),
		Content:   p.Content,
		UserID:    p.UserID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (p *Post) LikedBy(userID uint) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Content     string `json:"content" validate:"required,notblank,max=2000"`
	PicturePath string `json:"picturePath,omitempty" validate:"omitempty,max=500"`
}

// UpdatePostRequest defines the request body for updating an existing post
type UpdatePostRequest struct {
	Content     string `json:"content" validate:"required,notblank,max=2000"`
	PicturePath string `json:"picturePath,omitempty" validate:"omitempty,max=500"`
}

type CreateCommentRequest struct {
	Text string `json:"text" validate:"required,notblank,max=1000"`
}
