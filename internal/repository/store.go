package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iconidentify/clipbatch/internal/config"
)

// NewStore opens the backend selected by cfg.Driver. ttl bounds how long
// Redis keeps a session's records after its last write.
func NewStore(ctx context.Context, cfg config.StoreConfig, ttl time.Duration, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return NewInMemoryStore(), nil
	case config.StoreSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case config.StoreRedis:
		return NewRedisStore(ctx, cfg.RedisURL, ttl, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
