package coupon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/moroshop/storefront/api/web"
	"github.com/moroshop/storefront/api/weberr"
	"github.com/moroshop/storefront/core/auth"
	"github.com/moroshop/storefront/core/claims"
	"github.com/moroshop/storefront/random"
	"github.com/moroshop/storefront/validate"
)

// HandleApply validates a submitted code for the logged-in user and, on
// success, attaches the discount to the checkout session. The session
// identity is authoritative; a userId in the payload is ignored so one
// user cannot burn another user's coupon allowance.
func HandleApply(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in struct {
			Code   string `json:"code" validate:"required"`
			UserID string `json:"userId"`
		}
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := Apply(ctx, db, in.Code, clm.UserID)
		if err != nil {
			if Rejected(err) {
				return weberr.NewError(err, err.Error(), http.StatusBadRequest)
			}
			return fmt.Errorf("applying coupon[%s]: %w", in.Code, err)
		}

		// The applied discount is checkout-session state, not a cart
		// property: it does not survive a cart reload unless re-applied.
		session.Put(ctx, auth.CouponCodeKey, c.Code)
		session.Put(ctx, auth.CouponDiscountKey, c.Discount)

		return web.Respond(ctx, w, struct {
			Code     string  `json:"code"`
			Discount float64 `json:"discount"`
		}{c.Code, c.Discount}, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CouponNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		code := cn.Code
		if code == "" {
			code = strings.ToUpper(random.String(10))
		}

		if _, err := FetchByCode(ctx, db, code); err == nil {
			err := errors.New("coupon code already exists")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		now := time.Now().UTC()
		c := Coupon{
			ID:         validate.GenerateID(),
			Code:       code,
			Discount:   cn.Discount,
			ExpiresAt:  cn.ExpiresAt,
			UsageLimit: cn.UsageLimit,
			Status:     StatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := Create(ctx, db, c); err != nil {
			return fmt.Errorf("creating coupon: %w", err)
		}

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cs, err := FetchAll(ctx, db)
		if err != nil {
			return fmt.Errorf("fetching coupons: %w", err)
		}

		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

func HandleRevoke(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		userID := web.Param(r, "user_id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}
		if err := validate.CheckID(userID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := Fetch(ctx, db, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if err := RevokeUsage(ctx, db, id, userID); err != nil {
			return fmt.Errorf("revoking coupon usage: %w", err)
		}

		return web.Respond(ctx, w, struct {
			Success bool `json:"success"`
		}{true}, http.StatusOK)
	}
}
