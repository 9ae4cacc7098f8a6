package storage

import (
	"fmt"
	"path/filepath"

	"weboptimizer-backend/internal/config"
	"weboptimizer-backend/pkg/logger"
)

// New builds the configured backend without initializing it.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "disk":
		return NewDiskStorage(cfg.DataDir), nil
	case "sqlite":
		path := cfg.DSN
		if path == "" {
			path = filepath.Join(cfg.DataDir, "weboptimizer.sqlite")
		}
		return NewSQLiteStorage(path, filepath.Join(cfg.DataDir, "backup")), nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage.dsn is required for postgres")
		}
		return NewPostgresStorage(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// Open builds and initializes the configured backend, falling back to
// memory storage when it cannot be used.
func Open(cfg config.StorageConfig) Storage {
	store, err := New(cfg)
	if err == nil {
		err = store.Init()
	}
	if err != nil {
		logger.Errorf("Failed to initialize %s storage, using memory: %v", cfg.Type, err)
		store = NewMemoryStorage()
		_ = store.Init()
	}
	return store
}
