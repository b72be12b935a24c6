package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/moroshop/storefront/api/web"
	"github.com/moroshop/storefront/api/weberr"
	"github.com/moroshop/storefront/rate"
)

// RateLimit rejects clients that exceed the limiter's budget, keyed by
// remote IP. Used on endpoints worth brute-forcing: login and coupon
// application.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !lim.Check(host) {
				err := errors.New("rate limit exceeded")
				return weberr.NewError(err, "too many requests", http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
