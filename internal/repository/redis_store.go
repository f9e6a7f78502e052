package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iconidentify/clipbatch/internal/domain"
)

const (
	keyPrefix    = "clipbatch"
	keyOutcomes  = "outcomes" // LIST of JSON outcomes per session
	keyLinks     = "links"    // LIST of URLs per session
	keySeparator = ":"
)

// RedisStore implements Store on Redis lists. Every key expires ttl after
// its last write.
type RedisStore struct {
	cl  *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// NewRedisStore connects to the server at url and verifies it responds.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration, log *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	cl := redis.NewClient(opt)
	if _, err := cl.Ping(ctx).Result(); err != nil {
		cl.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{
		cl:  cl,
		ttl: ttl,
		log: log.With(slog.String("item", "RedisStore")),
	}, nil
}

// InsertOutcome appends one outcome to its session's history.
func (s *RedisStore) InsertOutcome(ctx context.Context, o domain.Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}

	key := getKey(keyOutcomes, o.SessionID.String())
	pipe := s.cl.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns a session's history in insertion order.
func (s *RedisStore) ListOutcomes(ctx context.Context, session domain.SessionID) ([]domain.Outcome, error) {
	items, err := s.cl.LRange(ctx, getKey(keyOutcomes, session.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}

	result := make([]domain.Outcome, 0, len(items))
	for _, item := range items {
		var o domain.Outcome
		if err := json.Unmarshal([]byte(item), &o); err != nil {
			s.log.Error("cannot decode outcome", slog.String("session_id", session.String()), slog.Any("error", err))
			continue
		}
		result = append(result, o)
	}
	return result, nil
}

// ClearOutcomes deletes a session's history.
func (s *RedisStore) ClearOutcomes(ctx context.Context, session domain.SessionID) error {
	if err := s.cl.Del(ctx, getKey(keyOutcomes, session.String())).Err(); err != nil {
		return fmt.Errorf("clear outcomes: %w", err)
	}
	return nil
}

// ReplaceLinks swaps a session's link set atomically.
func (s *RedisStore) ReplaceLinks(ctx context.Context, session domain.SessionID, links []string) error {
	key := getKey(keyLinks, session.String())

	_, err := s.cl.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(links) == 0 {
			return nil
		}
		values := make([]any, len(links))
		for i, l := range links {
			values[i] = l
		}
		pipe.RPush(ctx, key, values...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace links: %w", err)
	}
	return nil
}

// ListLinks returns a session's link set in upload order.
func (s *RedisStore) ListLinks(ctx context.Context, session domain.SessionID) ([]string, error) {
	links, err := s.cl.LRange(ctx, getKey(keyLinks, session.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.cl.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.cl.Close()
}

func getKey(keys ...string) string {
	return keyPrefix + keySeparator + strings.Join(keys, keySeparator)
}
