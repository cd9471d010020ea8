package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erain9/runebook/pkg/backend/memory"
	"github.com/erain9/runebook/pkg/backend/redis"
	"github.com/erain9/runebook/pkg/core"
	"github.com/erain9/runebook/pkg/logging"
)

// Store backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// StoreOptions selects and configures the order store
type StoreOptions struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// OrderStore is an opened order store plus whatever must be released with it
type OrderStore struct {
	core.OrderStore
	Backend string

	closeFn func() error
}

// Close releases the store's connections
func (s *OrderStore) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// OpenOrderStore creates the configured backend. A Redis backend is pinged
// before it is returned.
func OpenOrderStore(ctx context.Context, opts StoreOptions, zlog *zap.Logger) (*OrderStore, error) {
	logger := logging.FromContext(ctx).With().Str("backend", opts.Backend).Logger()

	switch opts.Backend {
	case "", BackendMemory:
		logger.Info().Msg("Using in-memory order store")
		return &OrderStore{OrderStore: memory.NewMemoryBackend(), Backend: BackendMemory}, nil

	case BackendRedis:
		addr := opts.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		prefix := opts.RedisPrefix
		if prefix == "" {
			prefix = "runebook"
		}

		client := redis.NewClient(&redis.RedisOptions{
			Addr:     addr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		backend := redis.NewRedisBackend(client, prefix, zlog)
		if err := backend.Ping(ctx); err != nil {
			_ = client.Close()
			logger.Error().Err(err).Str("addr", addr).Msg("Failed to connect to Redis")
			return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
		}

		logger.Info().
			Str("addr", addr).
			Int("db", opts.RedisDB).
			Str("prefix", prefix).
			Msg("Using Redis order store")
		return &OrderStore{OrderStore: backend, Backend: BackendRedis, closeFn: client.Close}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
