package storage

import (
	"context"

	"moveout/pkg/config"
	"moveout/pkg/errors"
)

// Open returns the store backend selected by cfg
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		s, err := OpenFileStore(cfg.DataPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendRedis:
		s, err := OpenRedisStore(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.ErrConfigInvalid.WithContext("backend", cfg.Backend)
	}
}
