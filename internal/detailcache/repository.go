package detailcache

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteRepository stores cache entries in the item_details table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns every stored entry.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, nbt, label, max_size FROM item_details`)
	if err != nil {
		return nil, fmt.Errorf("querying item details: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key.Name, &e.Key.NBT, &e.Detail.Label, &e.Detail.MaxSize); err != nil {
			return nil, fmt.Errorf("scanning item detail: %w", err)
		}
		e.Detail.Name = e.Key.Name
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating item details: %w", err)
	}
	return entries, nil
}

// Put inserts or replaces an entry.
func (r *SQLiteRepository) Put(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO item_details (name, nbt, label, max_size, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name, nbt) DO UPDATE SET
			label = excluded.label,
			max_size = excluded.max_size,
			updated_at = excluded.updated_at`,
		e.Key.Name, e.Key.NBT, e.Detail.Label, e.Detail.MaxSize,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing item detail %s: %w", e.Key, err)
	}
	return nil
}

// Compile-time check.
var _ Repository = (*SQLiteRepository)(nil)
