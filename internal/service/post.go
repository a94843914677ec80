package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/whisperecho/whisper-server/internal/domain/principal"
	"github.com/whisperecho/whisper-server/internal/repo"
	"go.uber.org/zap"
)

// PostService owns the post surface consuming the resolved identity.
type PostService struct {
	log   *zap.Logger
	posts *repo.PostRepository
}

func NewPostService(log *zap.Logger, posts *repo.PostRepository) *PostService {
	return &PostService{log: log.Named("post"), posts: posts}
}

// Feed returns the newest posts, visible to anonymous requests.
func (s *PostService) Feed(ctx context.Context, limit int64) ([]*repo.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.posts.List(ctx, limit)
}

// Create stores a post authored by the given principal.
func (s *PostService) Create(ctx context.Context, author *principal.Principal, body string) (*repo.Post, error) {
	p := &repo.Post{
		ID:        uuid.NewString(),
		AuthorID:  author.ID,
		Body:      strings.TrimSpace(body),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.posts.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Remove deletes a post (moderation; admin-gated at the route).
func (s *PostService) Remove(ctx context.Context, id string) error {
	return s.posts.Delete(ctx, id)
}
