package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/moroshop/storefront/api/middleware"
	"github.com/moroshop/storefront/api/web"
	"github.com/moroshop/storefront/config"
	"github.com/moroshop/storefront/core/auth"
	"github.com/moroshop/storefront/core/cart"
	"github.com/moroshop/storefront/core/checkout"
	"github.com/moroshop/storefront/core/coupon"
	"github.com/moroshop/storefront/core/order"
	"github.com/moroshop/storefront/core/product"
	"github.com/moroshop/storefront/core/shipping"
	"github.com/moroshop/storefront/core/user"
	"github.com/moroshop/storefront/rate"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin    string
	Log           logrus.FieldLogger
	DB            *sqlx.DB
	Session       *scs.SessionManager
	CartCache     *cart.Cache
	Shipper       shipping.Provider
	Paypal        *paypal.Client
	Stripe        *stripecl.API
	StripeCfg     config.Stripe
	LoginLimiter  *rate.Limiter
	CouponLimiter *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)
	loginRate := middleware.RateLimit(cfg.LoginLimiter)
	couponRate := middleware.RateLimit(cfg.CouponLimiter)

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session), loginRate)
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session), loginRate)
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)

	a.Handle(http.MethodGet, "/products/{id}", product.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/products", product.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/products", product.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/products/{id}", product.HandleUpdate(cfg.DB), admin)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.DB, cfg.CartCache), authen)
	a.Handle(http.MethodPost, "/cart/sync", cart.HandleSync(cfg.DB, cfg.CartCache, cfg.Log), authen)
	a.Handle(http.MethodPost, "/cart/merge", cart.HandleMerge(cfg.DB, cfg.CartCache, cfg.Log), authen)
	a.Handle(http.MethodDelete, "/cart", cart.HandleDelete(cfg.DB, cfg.CartCache, cfg.Log), authen)

	a.Handle(http.MethodPost, "/coupons/apply", coupon.HandleApply(cfg.DB, cfg.Session), authen, couponRate)
	a.Handle(http.MethodPost, "/coupons", coupon.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodGet, "/coupons", coupon.HandleList(cfg.DB), admin)
	a.Handle(http.MethodDelete, "/coupons/{id}/usages/{user_id}", coupon.HandleRevoke(cfg.DB), admin)

	a.Handle(http.MethodGet, "/checkout", checkout.HandleShowSnapshot(cfg.DB, cfg.Session, cfg.Shipper), authen)
	a.Handle(http.MethodPost, "/checkout/paypal", checkout.HandlePaypalCheckout(cfg.DB, cfg.Paypal, cfg.Session, cfg.Shipper), authen)
	a.Handle(http.MethodPost, "/checkout/paypal/{id}/capture", checkout.HandlePaypalCapture(cfg.DB, cfg.Paypal, cfg.CartCache, cfg.Log), authen)
	a.Handle(http.MethodPost, "/checkout/stripe", checkout.HandleStripeCheckout(cfg.DB, cfg.Stripe, cfg.StripeCfg, cfg.Session, cfg.Shipper), authen)
	a.Handle(http.MethodPost, "/checkout/stripe/capture", checkout.HandleStripeCapture(cfg.DB, cfg.StripeCfg, cfg.CartCache, cfg.Log))

	a.Handle(http.MethodGet, "/orders", order.HandleListOwn(cfg.DB), authen)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
