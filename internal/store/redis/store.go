package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultUpdateTTL is how long a delivered update id is remembered.
	// Telegram stops redelivering long before that.
	DefaultUpdateTTL = 24 * time.Hour
)

// Store handles Redis operations for update de-duplication and counters.
// It never holds scraped results or rate-limit state.
type Store struct {
	client    *redis.Client
	updateTTL time.Duration
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client:    client,
		updateTTL: DefaultUpdateTTL,
	}
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// MarkUpdate records a Telegram update id and reports whether it is new
func (s *Store) MarkUpdate(ctx context.Context, id int64) (bool, error) {
	ok, err := s.client.SetNX(ctx, UpdateKey(id), 1, s.updateTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark update %d: %w", id, err)
	}
	return ok, nil
}

// ForgetUpdate drops the mark of an update that was not handed to a worker
func (s *Store) ForgetUpdate(ctx context.Context, id int64) error {
	if err := s.client.Del(ctx, UpdateKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to forget update %d: %w", id, err)
	}
	return nil
}
