package database

import (
	"fmt"
	"os"
	"path/filepath"

	"closet-go/internal/config"
)

// FileName is the database file created inside the session data dir.
const FileName = "closet.db"

// NewDatabaseFromConfig opens the local database described by cfg.
func NewDatabaseFromConfig(cfg config.SessionConfig) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite session store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, FileName))
	case "memory":
		return NewSQLiteDatabase(":memory:")
	default:
		return nil, fmt.Errorf("unknown session type: %s", cfg.Type)
	}
}
