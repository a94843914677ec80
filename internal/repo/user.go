package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrUserNotFound indicates no user record exists for the given key.
var ErrUserNotFound = errors.New("user not found")

const (
	userKeyPrefix     = "whisper:users:"        // JSON document per user ID
	usernameKeyPrefix = "whisper:users:byname:" // username -> user ID
)

func userKey(id string) string           { return userKeyPrefix + id }
func usernameKey(username string) string { return usernameKeyPrefix + username }

// User is the persisted user record. PasswordHash is hex SHA-256 and must be
// stripped before the record shapes any response or principal.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"` // "user" | "admin"
	PasswordHash string `json:"password_hash,omitempty"`
}

// UserRepository provides Redis-backed access to user records. The auth
// subsystem only reads; Upsert exists for provisioning and tests.
type UserRepository struct {
	log    *zap.Logger
	client *RedisClient
}

func newUserRepository(log *zap.Logger, client *RedisClient) *UserRepository {
	return &UserRepository{log: log.Named("users"), client: client}
}

// GetByID fetches and decodes the user stored at whisper:users:<id>.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	raw, err := r.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get %s: %w", userKey(id), err)
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	return &u, nil
}

// GetByUsername resolves the username index, then fetches the record.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	id, err := r.client.Get(ctx, usernameKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get %s: %w", usernameKey(username), err)
	}
	return r.GetByID(ctx, id)
}

// Upsert stores the user document and maintains the username index.
func (r *UserRepository) Upsert(ctx context.Context, u *User) error {
	if u == nil || u.ID == "" || u.Username == "" {
		return fmt.Errorf("invalid user")
	}
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, userKey(u.ID), payload, 0)
	pipe.Set(ctx, usernameKey(u.Username), u.ID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set %s: %w", userKey(u.ID), err)
	}
	return nil
}
