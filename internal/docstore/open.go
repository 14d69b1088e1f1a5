package docstore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-status-board/internal/config"
	"github.com/hackgods/clinic-status-board/internal/db"
	redisclient "github.com/hackgods/clinic-status-board/internal/redis"
)

// Backend is an opened document store plus the health checks of whatever it connects to.
type Backend struct {
	Name   string
	Store  DocumentStore
	Checks map[string]func(context.Context) error
	Close  func()
}

// Open connects the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Backend, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))
		return &Backend{
			Name:  config.BackendRedis,
			Store: NewRedisStore(rdb, log),
			Checks: map[string]func(context.Context) error{
				"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			},
			Close: func() {
				if err := rdb.Close(); err != nil {
					log.Warn("error closing redis", zap.Error(err))
				}
			},
		}, nil

	case config.BackendPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		store := NewPostgresStore(pool, log)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("connected to Postgres")
		return &Backend{
			Name:  config.BackendPostgres,
			Store: store,
			Checks: map[string]func(context.Context) error{
				"postgres": pool.Ping,
			},
			Close: pool.Close,
		}, nil

	default:
		log.Info("using in-process document store")
		return &Backend{
			Name:   config.BackendMemory,
			Store:  NewMemoryStore(),
			Checks: map[string]func(context.Context) error{},
			Close:  func() {},
		}, nil
	}
}
