package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrPostNotFound indicates no post exists for the given ID.
var ErrPostNotFound = errors.New("post not found")

const (
	postKeyPrefix = "whisper:posts:"     // JSON document per post ID
	postIndexKey  = "whisper:posts:feed" // newest-first list of post IDs
)

func postKey(id string) string { return postKeyPrefix + id }

// Post is a persisted post document.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// PostRepository provides Redis-backed CRUD for posts.
type PostRepository struct {
	log    *zap.Logger
	client *RedisClient
}

func newPostRepository(log *zap.Logger, client *RedisClient) *PostRepository {
	return &PostRepository{log: log.Named("posts"), client: client}
}

// Create stores the post and pushes it onto the feed index.
func (r *PostRepository) Create(ctx context.Context, p *Post) error {
	if p == nil || p.ID == "" || p.AuthorID == "" {
		return fmt.Errorf("invalid post")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode post: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, postKey(p.ID), payload, 0)
	pipe.LPush(ctx, postIndexKey, p.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set %s: %w", postKey(p.ID), err)
	}
	return nil
}

// List returns up to limit posts, newest first. IDs lingering in the index
// after a delete are skipped.
func (r *PostRepository) List(ctx context.Context, limit int64) ([]*Post, error) {
	ids, err := r.client.LRange(ctx, postIndexKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", postIndexKey, err)
	}

	posts := make([]*Post, 0, len(ids))
	for _, id := range ids {
		raw, err := r.client.Get(ctx, postKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("get %s: %w", postKey(id), err)
		}
		var p Post
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode post %s: %w", id, err)
		}
		posts = append(posts, &p)
	}
	return posts, nil
}

// Delete removes the post document and its index entry (idempotent on the
// document, so a repeated moderation delete is harmless).
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, postKey(id)).Result()
	if err != nil {
		return fmt.Errorf("del %s: %w", postKey(id), err)
	}
	if n == 0 {
		return ErrPostNotFound
	}
	if err := r.client.LRem(ctx, postIndexKey, 0, id).Err(); err != nil {
		return fmt.Errorf("lrem %s: %w", postIndexKey, err)
	}
	return nil
}
