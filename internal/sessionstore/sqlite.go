package sessionstore

import (
	"context"
	"fmt"

	"closet-go/internal/closet"
	"closet-go/internal/database"
	"closet-go/internal/encryption"
	"closet-go/internal/model"
)

// SQLiteStorage persists the session in the local database with the token
// sealed by an Encryptor.
type SQLiteStorage struct {
	db  *database.SQLiteDatabase
	enc encryption.Encryptor
}

var _ closet.SessionStorage = (*SQLiteStorage)(nil)

// NewSQLiteStorage creates a storage over an open database. The caller
// keeps ownership of db.
func NewSQLiteStorage(db *database.SQLiteDatabase, enc encryption.Encryptor) *SQLiteStorage {
	return &SQLiteStorage{db: db, enc: enc}
}

// Load returns the stored session. A token that no longer opens (for
// example after the key file was replaced) fails with
// closet.ErrUnreadableSession and the decrypt error.
func (s *SQLiteStorage) Load(ctx context.Context) (*model.Session, error) {
	rec, err := s.db.LoadSession(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	sess := &model.Session{
		UserID:    rec.UserID,
		Email:     rec.Email,
		CreatedAt: rec.CreatedAt,
	}
	if len(rec.SealedToken) > 0 {
		token, err := s.enc.Open(rec.SealedToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", closet.ErrUnreadableSession, err)
		}
		sess.Token = string(token)
	}
	return sess, nil
}

func (s *SQLiteStorage) Save(ctx context.Context, sess *model.Session) error {
	sealed, err := s.enc.Seal([]byte(sess.Token))
	if err != nil {
		return fmt.Errorf("sealing token: %w", err)
	}
	return s.db.SaveSession(ctx, &database.SessionRecord{
		UserID:      sess.UserID,
		Email:       sess.Email,
		SealedToken: sealed,
		CreatedAt:   sess.CreatedAt,
	})
}

func (s *SQLiteStorage) Clear(ctx context.Context) error {
	return s.db.ClearSession(ctx)
}
