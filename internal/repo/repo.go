package repo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Repository bundles the Redis-backed stores.
type Repository struct {
	log    *zap.Logger
	client *RedisClient

	Users *UserRepository
	Posts *PostRepository
}

// NewRepository constructs the store bundle on a shared Redis client.
func NewRepository(log *zap.Logger, addr string) *Repository {
	log = log.Named("repo")
	client := newRedisClient(addr, 0, log)

	return &Repository{
		log:    log,
		client: client,
		Users:  newUserRepository(log, client),
		Posts:  newPostRepository(log, client),
	}
}

// Close releases the underlying Redis connection pool.
func (r *Repository) Close() error { return r.client.Close() }

// RedisClient wraps the Redis client with connection diagnostics.
type RedisClient struct {
	*redis.Client
	log *zap.Logger
}

func newRedisClient(addr string, db int, log *zap.Logger) *RedisClient {
	opts := &redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	}

	client := &RedisClient{
		Client: redis.NewClient(opts),
		log:    log.Named("redis"),
	}
	client.ping(context.Background())

	return client
}

// ping logs connection diagnostics at startup; a dead Redis is reported but
// not fatal here, individual operations carry their own timeouts.
func (c *RedisClient) ping(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	log := c.log.With(zap.String("addr", c.Options().Addr), zap.Int("db", c.Options().DB))
	if err := c.Client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable", zap.Error(err))
		return
	}
	log.Info("redis connected")
}
