package store

import (
	"context"
	"fmt"
	"time"
)

// MirrorItem is one row of the local cart mirror. UnitPrice is stored
// as its decimal string form; SQLite REAL would reintroduce the float
// drift the money package exists to avoid.
type MirrorItem struct {
	ProductID  int64
	CartItemID int64
	Name       string
	Category   string
	ImageURL   string
	UnitPrice  string
	Quantity   int
}

// ReadMirror returns the mirrored cart, ordered by product id for
// stable rendering.
func (s *Store) ReadMirror(ctx context.Context) ([]MirrorItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, cart_item_id, name, category, image_url, unit_price, quantity
		FROM cart_mirror
		ORDER BY product_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read mirror: %w", err)
	}
	defer rows.Close()

	var items []MirrorItem
	for rows.Next() {
		var m MirrorItem
		if err := rows.Scan(&m.ProductID, &m.CartItemID, &m.Name, &m.Category, &m.ImageURL, &m.UnitPrice, &m.Quantity); err != nil {
			return nil, fmt.Errorf("scan mirror row: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read mirror: %w", err)
	}
	return items, nil
}

// ReplaceMirror overwrites the whole mirror with a fresh snapshot.
// Runs in one transaction so a concurrent reader never sees a
// half-written cart.
func (s *Store) ReplaceMirror(ctx context.Context, items []MirrorItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace mirror: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_mirror`); err != nil {
		return fmt.Errorf("replace mirror: clear: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, m := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_mirror (product_id, cart_item_id, name, category, image_url, unit_price, quantity, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ProductID, m.CartItemID, m.Name, m.Category, m.ImageURL, m.UnitPrice, m.Quantity, now)
		if err != nil {
			return fmt.Errorf("replace mirror: insert product %d: %w", m.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace mirror: commit: %w", err)
	}
	return nil
}

// UpsertMirrorItem writes one mirror row, replacing any existing row
// for the same product. Used for offline best-effort mutations.
func (s *Store) UpsertMirrorItem(ctx context.Context, m MirrorItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_mirror (product_id, cart_item_id, name, category, image_url, unit_price, quantity, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			cart_item_id = excluded.cart_item_id,
			name = excluded.name,
			category = excluded.category,
			image_url = excluded.image_url,
			unit_price = excluded.unit_price,
			quantity = excluded.quantity,
			updated_at = excluded.updated_at
	`, m.ProductID, m.CartItemID, m.Name, m.Category, m.ImageURL, m.UnitPrice, m.Quantity,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert mirror product %d: %w", m.ProductID, err)
	}
	return nil
}

// DeleteMirrorItem removes one product's row. Missing rows are not an
// error; offline deletes are best-effort.
func (s *Store) DeleteMirrorItem(ctx context.Context, productID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_mirror WHERE product_id = ?`, productID); err != nil {
		return fmt.Errorf("delete mirror product %d: %w", productID, err)
	}
	return nil
}

// ClearMirror empties the mirror. Called after checkout clears the
// server cart.
func (s *Store) ClearMirror(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_mirror`); err != nil {
		return fmt.Errorf("clear mirror: %w", err)
	}
	return nil
}
