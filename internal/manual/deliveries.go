package manual

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Delivery records the outcome of one request.
type Delivery struct {
	ID          string    `json:"id"`
	Station     string    `json:"station"`
	Item        string    `json:"item"`
	Requested   int       `json:"requested"`
	Delivered   int       `json:"delivered"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Recorder persists deliveries.
type Recorder interface {
	Record(ctx context.Context, d Delivery) error
	Recent(ctx context.Context, limit int) ([]Delivery, error)
}

// SQLiteRecorder stores deliveries in the manual_deliveries table.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder creates a recorder over an open, migrated database.
func NewSQLiteRecorder(db *sql.DB) *SQLiteRecorder {
	return &SQLiteRecorder{db: db}
}

// Record inserts a delivery.
func (r *SQLiteRecorder) Record(ctx context.Context, d Delivery) error {
	if d.DeliveredAt.IsZero() {
		d.DeliveredAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO manual_deliveries (id, station, filter, requested, delivered, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Station, d.Item, d.Requested, d.Delivered,
		d.DeliveredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording delivery %s: %w", d.ID, err)
	}
	return nil
}

// Recent returns the newest deliveries first.
func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, station, filter, requested, delivered, delivered_at
		FROM manual_deliveries
		ORDER BY delivered_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		var at string
		if err := rows.Scan(&d.ID, &d.Station, &d.Item, &d.Requested, &d.Delivered, &at); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		d.DeliveredAt, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parsing delivered_at %q: %w", at, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deliveries: %w", err)
	}
	return out, nil
}

// Compile-time check.
var _ Recorder = (*SQLiteRecorder)(nil)
