package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, c Coupon) error {
	const q = `
	INSERT INTO coupons (coupon_id, code, discount, expires_at, usage_limit, status, created_at, updated_at)
	VALUES (:coupon_id, :code, :discount, :expires_at, :usage_limit, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting coupon[%s]: %w", c.Code, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Coupon, error) {
	const q = `SELECT * FROM coupons WHERE coupon_id = $1`

	var c Coupon
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("selecting coupon[%s]: %w", id, err)
	}

	return c, nil
}

func FetchByCode(ctx context.Context, db sqlx.ExtContext, code string) (Coupon, error) {
	const q = `SELECT * FROM coupons WHERE code = $1`

	var c Coupon
	if err := sqlx.GetContext(ctx, db, &c, q, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("selecting coupon by code: %w", err)
	}

	return c, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Coupon, error) {
	const q = `SELECT * FROM coupons ORDER BY created_at DESC`

	cs := []Coupon{}
	if err := sqlx.SelectContext(ctx, db, &cs, q); err != nil {
		return nil, fmt.Errorf("selecting coupons: %w", err)
	}

	for i := range cs {
		used, err := FetchUsers(ctx, db, cs[i].ID)
		if err != nil {
			return nil, err
		}
		cs[i].UsedBy = used
	}

	return cs, nil
}

func CountUsages(ctx context.Context, db sqlx.ExtContext, couponID string) (int, error) {
	const q = `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, couponID); err != nil {
		return 0, fmt.Errorf("counting usages of coupon[%s]: %w", couponID, err)
	}

	return n, nil
}

func HasUsed(ctx context.Context, db sqlx.ExtContext, couponID string, userID string) (bool, error) {
	const q = `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, couponID, userID); err != nil {
		return false, fmt.Errorf("checking usage of coupon[%s] by user[%s]: %w", couponID, userID, err)
	}

	return n > 0, nil
}

func MarkUsed(ctx context.Context, db sqlx.ExtContext, couponID string, userID string) error {
	const q = `INSERT INTO coupon_usages (coupon_id, user_id, used_at) VALUES ($1, $2, $3)`

	if _, err := db.ExecContext(ctx, q, couponID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("marking coupon[%s] used by user[%s]: %w", couponID, userID, err)
	}

	return nil
}

// RevokeUsage removes one user from the coupon's used set, making the
// coupon usable again by that user. Completed orders are not touched.
func RevokeUsage(ctx context.Context, db sqlx.ExtContext, couponID string, userID string) error {
	const q = `DELETE FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`

	if _, err := db.ExecContext(ctx, q, couponID, userID); err != nil {
		return fmt.Errorf("revoking usage of coupon[%s] by user[%s]: %w", couponID, userID, err)
	}

	return nil
}

func FetchUsers(ctx context.Context, db sqlx.ExtContext, couponID string) ([]string, error) {
	const q = `SELECT user_id FROM coupon_usages WHERE coupon_id = $1 ORDER BY used_at`

	users := []string{}
	if err := sqlx.SelectContext(ctx, db, &users, q, couponID); err != nil {
		return nil, fmt.Errorf("selecting users of coupon[%s]: %w", couponID, err)
	}

	return users, nil
}
