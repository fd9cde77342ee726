package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rtuszik/discogsdash/internal/domain"
)

// GetCredential returns the stored access credential, or nil if none.
func (db *DB) GetCredential(ctx context.Context) (*domain.Credential, error) {
	cred := &domain.Credential{}
	err := db.GetContext(ctx, cred, "SELECT token, secret, created_at FROM credentials WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// SaveCredential replaces the single stored credential.
func (db *DB) SaveCredential(ctx context.Context, cred *domain.Credential) error {
	createdAt := cred.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO credentials (id, token, secret, created_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, secret = excluded.secret, created_at = excluded.created_at
	`, cred.Token, cred.Secret, createdAt)
	return err
}

func (db *DB) DeleteCredential(ctx context.Context) error {
	_, err := db.ExecContext(ctx, "DELETE FROM credentials")
	return err
}
