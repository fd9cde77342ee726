package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rtuszik/discogsdash/internal/domain"
)

// ListSnapshots returns the newest snapshots first.
func (db *DB) ListSnapshots(ctx context.Context, limit int) ([]*domain.ValueSnapshot, error) {
	query := `SELECT id, timestamp, item_count, min_value, mean_value, max_value FROM value_snapshots ORDER BY timestamp DESC LIMIT ?`

	var snapshots []*domain.ValueSnapshot
	err := db.SelectContext(ctx, &snapshots, query, limit)
	return snapshots, err
}

// LatestSnapshot returns nil when no run has completed yet.
func (db *DB) LatestSnapshot(ctx context.Context) (*domain.ValueSnapshot, error) {
	s := &domain.ValueSnapshot{}
	err := db.GetContext(ctx, s, `SELECT id, timestamp, item_count, min_value, mean_value, max_value FROM value_snapshots ORDER BY timestamp DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) CountSnapshots(ctx context.Context) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM value_snapshots")
	return n, err
}
