package sessionstore

import (
	"fmt"

	"closet-go/internal/closet"
	"closet-go/internal/config"
	"closet-go/internal/database"
	"closet-go/internal/encryption"
)

// NewStorageFromConfig picks the session storage for cfg.Type. db and enc
// are only used by the sqlite storage.
func NewStorageFromConfig(cfg config.SessionConfig, db *database.SQLiteDatabase, enc encryption.Encryptor) (closet.SessionStorage, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStorage(), nil
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("sqlite session storage requires a database")
		}
		if enc == nil {
			return nil, fmt.Errorf("sqlite session storage requires an encryptor")
		}
		return NewSQLiteStorage(db, enc), nil
	default:
		return nil, fmt.Errorf("unknown session type: %s", cfg.Type)
	}
}
