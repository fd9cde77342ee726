package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func (db *DB) GetCache(key string) ([]byte, error) {
	type cacheRow struct {
		ExpiresAt sql.NullTime `db:"expires_at"`
		Data      []byte       `db:"data"`
	}

	var row cacheRow
	err := db.Get(&row, "SELECT data, expires_at FROM cache WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if row.ExpiresAt.Valid && !time.Now().Before(row.ExpiresAt.Time) {
		_, _ = db.Exec("DELETE FROM cache WHERE key = ?", key)
		return nil, nil
	}

	return row.Data, nil
}

func (db *DB) SetCache(key string, data []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().UTC().Add(ttl)
		expiresAt = &t
	}

	_, err := db.Exec(`
		INSERT INTO cache (key, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at
	`, key, data, expiresAt)
	return err
}

func (db *DB) DeleteCache(key string) error {
	_, err := db.Exec("DELETE FROM cache WHERE key = ?", key)
	return err
}

// PurgeExpiredCache drops every expired entry and reports how many went.
func (db *DB) PurgeExpiredCache() (int64, error) {
	res, err := db.Exec("DELETE FROM cache WHERE expires_at IS NOT NULL AND expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const ticketKeyPrefix = "oauth:ticket:"

// TicketCache stores handshake ticket secrets in the expiring cache table.
type TicketCache struct {
	db *DB
}

func NewTicketCache(db *DB) *TicketCache {
	return &TicketCache{db: db}
}

func (c *TicketCache) PutTicket(_ context.Context, token, secret string, ttl time.Duration) error {
	if _, err := c.db.PurgeExpiredCache(); err != nil {
		return err
	}
	return c.db.SetCache(ticketKeyPrefix+token, []byte(secret), ttl)
}

func (c *TicketCache) GetTicket(_ context.Context, token string) (string, bool, error) {
	data, err := c.db.GetCache(ticketKeyPrefix + token)
	if err != nil {
		return "", false, err
	}
	if data == nil {
		return "", false, nil
	}
	return string(data), true, nil
}

func (c *TicketCache) DeleteTicket(_ context.Context, token string) error {
	return c.db.DeleteCache(ticketKeyPrefix + token)
}

// HasPendingTicket reports whether any unexpired handshake ticket exists.
func (c *TicketCache) HasPendingTicket(_ context.Context) (bool, error) {
	var expiries []sql.NullTime
	if err := c.db.Select(&expiries, "SELECT expires_at FROM cache WHERE key LIKE ?", ticketKeyPrefix+"%"); err != nil {
		return false, err
	}
	now := time.Now()
	for _, exp := range expiries {
		if !exp.Valid || now.Before(exp.Time) {
			return true, nil
		}
	}
	return false, nil
}
