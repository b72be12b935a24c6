package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/moroshop/storefront/api/web"
	"github.com/moroshop/storefront/api/weberr"
	"github.com/moroshop/storefront/core/claims"
)

// Session keys. The coupon keys hold checkout-session state: an applied
// coupon belongs to the in-progress checkout, not to the persisted cart.
const (
	userIDKey         = "user_id"
	userRoleKey       = "user_role"
	CouponCodeKey     = "coupon_code"
	CouponDiscountKey = "coupon_discount"
)

// LoadAndSave adapts the scs middleware to this service's handler shape.
// It must be the outermost middleware so every other layer sees the
// session-aware context.
func LoadAndSave(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error

			sh := session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = handler(r.Context(), w, r)
			}))

			sh.ServeHTTP(w, r)
			return err
		}
		return h
	}
	return m
}

// Authenticate rejects requests without a logged-in session and exposes
// the identity as explicit claims on the context.
func Authenticate(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			userID := session.GetString(ctx, userIDKey)
			if userID == "" {
				return weberr.NotAuthorized(errors.New("no authenticated user in session"))
			}

			c := claims.Claims{
				UserID: userID,
				Role:   session.GetString(ctx, userRoleKey),
			}

			return handler(claims.Set(ctx, c), w, r)
		}
		return h
	}
	return m
}

// Admin allows only authenticated admins through.
func Admin(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			userID := session.GetString(ctx, userIDKey)
			if userID == "" {
				return weberr.NotAuthorized(errors.New("no authenticated user in session"))
			}

			role := session.GetString(ctx, userRoleKey)
			if role != claims.RoleAdmin {
				err := errors.New("user is not an admin")
				return weberr.NewError(err, "forbidden", http.StatusForbidden)
			}

			c := claims.Claims{UserID: userID, Role: role}
			return handler(claims.Set(ctx, c), w, r)
		}
		return h
	}
	return m
}
