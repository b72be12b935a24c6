package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Load returns the owner's cart, or a cart with no items when the owner
// has never written one. The absence of a row is not an error.
func Load(ctx context.Context, db sqlx.ExtContext, owner string) (Cart, error) {
	const q = `SELECT * FROM carts WHERE user_id = $1`

	var c Cart
	if err := sqlx.GetContext(ctx, db, &c, q, owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cart{UserID: owner, Items: Items{}}, nil
		}
		return Cart{}, fmt.Errorf("selecting cart of user[%s]: %w", owner, err)
	}

	return c, nil
}

// Overwrite replaces the owner's whole item list, creating the cart row
// on first use. One statement, so there is never a partial write.
func Overwrite(ctx context.Context, db sqlx.ExtContext, owner string, items []Item) error {
	const q = `
	INSERT INTO carts (user_id, items, created_at, updated_at)
	VALUES ($1, $2, $3, $3)
	ON CONFLICT (user_id) DO UPDATE SET
		items = EXCLUDED.items,
		updated_at = EXCLUDED.updated_at`

	if _, err := db.ExecContext(ctx, q, owner, Items(items), time.Now().UTC()); err != nil {
		return fmt.Errorf("overwriting cart of user[%s]: %w", owner, err)
	}

	return nil
}

// SaveMerged folds incoming into the owner's stored items and persists
// the result, returning the merged list. Last write wins on a race with
// another writer of the same row.
func SaveMerged(ctx context.Context, db sqlx.ExtContext, owner string, incoming []Item) ([]Item, error) {
	c, err := Load(ctx, db, owner)
	if err != nil {
		return nil, fmt.Errorf("loading cart before merge: %w", err)
	}

	merged := Merge(c.Items, incoming)
	if err := Overwrite(ctx, db, owner, merged); err != nil {
		return nil, fmt.Errorf("persisting merged cart: %w", err)
	}

	return merged, nil
}

// Delete removes the owner's cart row. Deleting a missing cart is a
// no-op, so fulfillment can always flush.
func Delete(ctx context.Context, db sqlx.ExtContext, owner string) error {
	const q = `DELETE FROM carts WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, owner); err != nil {
		return fmt.Errorf("deleting cart of user[%s]: %w", owner, err)
	}

	return nil
}
