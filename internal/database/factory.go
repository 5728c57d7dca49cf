package database

import (
	"fmt"
	"path/filepath"

	"photosync/internal/config"
	"photosync/internal/photosync"
)

// NewHistoryFromConfig creates a History implementation based on the database config type.
func NewHistoryFromConfig(cfg config.DatabaseConfig, deviceID string) (photosync.History, error) {
	var (
		h   *SQLiteHistory
		err error
	)
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		h, err = NewSQLiteHistory(filepath.Join(cfg.DataDir, deviceID+".db"), nil, nil)
	case "memory":
		h, err = NewSQLiteHistory(":memory:", nil, nil)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}
