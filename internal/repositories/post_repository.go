package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdojat/fbcloneapi/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrPostNotFound is returned for unknown or malformed post ids.
var ErrPostNotFound = errors.New("post not found")

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []string) ([]models.Post, error)
	GetPostsByUserID(ctx context.Context, userID uint, skip, limit int64) ([]models.Post, error)
	GetPostsByUserIDs(ctx context.Context, userIDs []uint, skip, limit int64) ([]models.Post, error)
	GetAllPosts(ctx context.Context, skip, limit int64) ([]models.Post, error)
	CountPostsByUser(ctx context.Context, userID uint) (int64, error)
	UpdatePost(ctx context.Context, id string, content, picturePath string) (*models.Post, error)
	DeletePost(ctx context.Context, id string) error
	// AddLike reports added=false when userID had already liked the post.
	AddLike(ctx context.Context, postID string, userID uint) (post *models.Post, added bool, err error)
	RemoveLike(ctx context.Context, postID string, userID uint) (*models.Post, error)
	AddComment(ctx context.Context, postID string, comment models.Comment) (*models.Post, error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

func parsePostID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid id %q", ErrPostNotFound, id)
	}
	return objID, nil
}

func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	now := time.Now()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []uint{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := parsePostID(id)
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// GetPostsByIDs skips malformed and missing ids.
func (r *MongoPostRepository) GetPostsByIDs(ctx context.Context, ids []string) ([]models.Post, error) {
	objIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if objID, err := primitive.ObjectIDFromHex(id); err == nil {
			objIDs = append(objIDs, objID)
		}
	}
	if len(objIDs) == 0 {
		return []models.Post{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": objIDs}}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *MongoPostRepository) GetPostsByUserID(ctx context.Context, userID uint, skip, limit int64) ([]models.Post, error) {
	opts := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

func (r *MongoPostRepository) GetPostsByUserIDs(ctx context.Context, userIDs []uint, skip, limit int64) ([]models.Post, error) {
	if len(userIDs) == 0 {
		return []models.Post{}, nil
	}
	opts := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{"user_id": bson.M{"$in": userIDs}}, opts)
}

func (r *MongoPostRepository) GetAllPosts(ctx context.Context, skip, limit int64) ([]models.Post, error) {
	opts := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.D{}, opts)
}

func (r *MongoPostRepository) CountPostsByUser(ctx context.Context, userID uint) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
}

func (r *MongoPostRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]models.Post, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *MongoPostRepository) UpdatePost(ctx context.Context, id string, content, picturePath string) (*models.Post, error) {
	set := bson.M{"content": content, "updated_at": time.Now()}
	if picturePath != "" {
		set["picture_path"] = picturePath
	}
	return r.updateOne(ctx, id, bson.M{"$set": set})
}

func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	objID, err := parsePostID(id)
	if err != nil {
		return err
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

// AddLike only matches posts the user has not liked yet, so of several concurrent
// likes exactly one reports added.
func (r *MongoPostRepository) AddLike(ctx context.Context, postID string, userID uint) (*models.Post, bool, error) {
	objID, err := parsePostID(postID)
	if err != nil {
		return nil, false, err
	}

	filter := bson.M{"_id": objID, "likes": bson.M{"$ne": userID}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post models.Post
	err = r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$push": bson.M{"likes": userID}}, opts).Decode(&post)
	if err == nil {
		return &post, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	// missing post, or already liked
	existing, err := r.GetPostByID(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *MongoPostRepository) RemoveLike(ctx context.Context, postID string, userID uint) (*models.Post, error) {
	return r.updateOne(ctx, postID, bson.M{"$pull": bson.M{"likes": userID}})
}

func (r *MongoPostRepository) AddComment(ctx context.Context, postID string, comment models.Comment) (*models.Post, error) {
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	return r.updateOne(ctx, postID, bson.M{"$push": bson.M{"comments": comment}})
}

// updateOne applies update and returns the post as it is afterwards.
func (r *MongoPostRepository) updateOne(ctx context.Context, id string, update bson.M) (*models.Post, error) {
	objID, err := parsePostID(id)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post models.Post
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objID}, update, opts).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}
