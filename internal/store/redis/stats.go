package redis

import (
	"context"
	"fmt"
	"strconv"
)

// IncrStat increments a lifetime counter
func (s *Store) IncrStat(ctx context.Context, name string) error {
	if err := s.client.HIncrBy(ctx, KeyStats, name, 1).Err(); err != nil {
		return fmt.Errorf("failed to increment %s: %w", name, err)
	}
	return nil
}

// IncrPlatform increments the extraction counter of a platform and method
func (s *Store) IncrPlatform(ctx context.Context, platform, method string) error {
	field := PlatformField(platform, method)
	if err := s.client.HIncrBy(ctx, KeyPlatformStats, field, 1).Err(); err != nil {
		return fmt.Errorf("failed to increment %s: %w", field, err)
	}
	return nil
}

// Stats returns the lifetime counters and the per-platform counters
func (s *Store) Stats(ctx context.Context) (map[string]int64, map[string]int64, error) {
	pipe := s.client.Pipeline()
	totals := pipe.HGetAll(ctx, KeyStats)
	platforms := pipe.HGetAll(ctx, KeyPlatformStats)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to read stats: %w", err)
	}

	t, err := toCounts(totals.Val())
	if err != nil {
		return nil, nil, err
	}
	p, err := toCounts(platforms.Val())
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

// ResetStats removes every counter
func (s *Store) ResetStats(ctx context.Context) error {
	if err := s.client.Del(ctx, KeyStats, KeyPlatformStats).Err(); err != nil {
		return fmt.Errorf("failed to reset stats: %w", err)
	}
	return nil
}

func toCounts(raw map[string]string) (map[string]int64, error) {
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid counter %s=%q: %w", k, v, err)
		}
		out[k] = n
	}
	return out, nil
}
