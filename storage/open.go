package storage

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"todo-list/config"
)

// Open builds the backend selected by cfg. When rc is non-nil and the cache
// TTL is positive, the backend is wrapped in a CachedBackend.
func Open(cfg config.Storage, rc *redis.Client) (Backend, error) {
	var backend Backend
	switch cfg.Backend {
	case config.BackendRemote:
		backend = NewRemote(cfg.RemoteURL, nil)
	case config.BackendLocal:
		backend = NewLocal(cfg.LocalPath)
	case config.BackendTable:
		t, err := NewTable(cfg.ConnectionString, cfg.Table)
		if err != nil {
			return nil, fmt.Errorf("table backend: %w", err)
		}
		backend = t
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if rc != nil && cfg.CacheTTL > 0 {
		backend = NewCachedBackend(backend, rc, cfg.CacheTTL)
	}
	return backend, nil
}

// Close releases resources held by b, if any.
func Close(b Backend) error {
	switch v := b.(type) {
	case *CachedBackend:
		return Close(v.base)
	case interface{ Close() error }:
		return v.Close()
	}
	return nil
}
