package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Apply validates code for userID and, on success, records the usage and
// returns the coupon. The rejection reasons are the package sentinels;
// anything else is a store failure.
//
// Usage is recorded at apply time, so a second apply for the same user
// is rejected until an admin revokes the usage.
func Apply(ctx context.Context, db sqlx.ExtContext, code string, userID string) (Coupon, error) {
	c, err := FetchByCode(ctx, db, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("fetching coupon for apply: %w", err)
	}

	used, err := HasUsed(ctx, db, c.ID, userID)
	if err != nil {
		return Coupon{}, err
	}
	if used {
		return Coupon{}, ErrAlreadyUsed
	}

	usages, err := CountUsages(ctx, db, c.ID)
	if err != nil {
		return Coupon{}, err
	}

	if err := c.checkUsable(time.Now().UTC(), usages); err != nil {
		return Coupon{}, err
	}

	if err := MarkUsed(ctx, db, c.ID, userID); err != nil {
		return Coupon{}, err
	}

	return c, nil
}

// Revalidate re-checks a previously applied coupon right before its
// discount is charged. The user's usage slot was secured at apply time,
// so the usage limit is not counted again; what can still change is the
// coupon being deleted, deactivated, expired, or the usage revoked by an
// admin. Any of those returns the matching sentinel.
func Revalidate(ctx context.Context, db sqlx.ExtContext, code string, userID string) (Coupon, error) {
	c, err := FetchByCode(ctx, db, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("fetching coupon for revalidation: %w", err)
	}

	used, err := HasUsed(ctx, db, c.ID, userID)
	if err != nil {
		return Coupon{}, err
	}
	if !used {
		return Coupon{}, ErrRevoked
	}

	if err := c.checkUsable(time.Now().UTC(), 0); err != nil {
		return Coupon{}, err
	}

	return c, nil
}
