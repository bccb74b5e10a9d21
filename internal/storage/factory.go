package storage

import (
	"strings"

	"github.com/stylusops/stylus-cache-monitor/internal/config"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// NewStore creates a store instance based on configuration
func NewStore(cfg *config.StorageConfig) (Store, error) {
	storeConfig := &Config{
		Type:             cfg.Type,
		ConnectionString: cfg.ConnectionString,
		MaxConnections:   cfg.MaxConnections,
		MaxIdleTime:      cfg.MaxIdleTime,
	}

	switch strings.ToLower(cfg.Type) {
	case "sqlite":
		return NewSQLiteStore(storeConfig), nil
	case "postgres", "postgresql":
		return NewPostgresStore(storeConfig), nil
	default:
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "unsupported storage type", cfg.Type)
	}
}
