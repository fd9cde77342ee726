package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rtuszik/discogsdash/internal/domain"
)

const itemColumns = `instance_id, release_id, artist, title, year, format, genres, styles, cover_image_url,
	date_added, folder_id, rating, notes, condition, suggested_value, last_value_check`

// ReplaceCollection swaps the stored item set for items and appends snapshot,
// all in one transaction. On any error nothing changes.
func (db *DB) ReplaceCollection(ctx context.Context, items []*domain.CollectionItem, snapshot *domain.ValueSnapshot) error {
	return db.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM collection_items"); err != nil {
			return fmt.Errorf("clear items: %w", err)
		}

		stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO collection_items (`+itemColumns+`)
			VALUES (:instance_id, :release_id, :artist, :title, :year, :format, :genres, :styles, :cover_image_url,
			:date_added, :folder_id, :rating, :notes, :condition, :suggested_value, :last_value_check)`)
		if err != nil {
			return fmt.Errorf("prepare item insert: %w", err)
		}
		defer stmt.Close()

		for _, item := range items {
			if _, err := stmt.ExecContext(ctx, item); err != nil {
				return fmt.Errorf("insert item %d: %w", item.InstanceID, err)
			}
		}

		if snapshot != nil {
			res, err := tx.NamedExecContext(ctx, `INSERT INTO value_snapshots (timestamp, item_count, min_value, mean_value, max_value)
				VALUES (:timestamp, :item_count, :min_value, :mean_value, :max_value)`, snapshot)
			if err != nil {
				return fmt.Errorf("insert snapshot: %w", err)
			}
			if id, err := res.LastInsertId(); err == nil {
				snapshot.ID = id
			}
		}
		return nil
	})
}

// ListItems returns stored items, most recently added first.
func (db *DB) ListItems(ctx context.Context, limit int) ([]*domain.CollectionItem, error) {
	query := `SELECT ` + itemColumns + ` FROM collection_items ORDER BY date_added DESC, instance_id DESC LIMIT ?`

	var items []*domain.CollectionItem
	err := db.SelectContext(ctx, &items, query, limit)
	return items, err
}

func (db *DB) GetItem(ctx context.Context, instanceID int64) (*domain.CollectionItem, error) {
	item := &domain.CollectionItem{}
	err := db.GetContext(ctx, item, `SELECT `+itemColumns+` FROM collection_items WHERE instance_id = ?`, instanceID)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (db *DB) CountItems(ctx context.Context) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM collection_items")
	return n, err
}
