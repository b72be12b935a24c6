package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/moroshop/storefront/api/web"
	"github.com/moroshop/storefront/api/weberr"
	"github.com/moroshop/storefront/config"
	"github.com/moroshop/storefront/core/auth"
	"github.com/moroshop/storefront/core/cart"
	"github.com/moroshop/storefront/core/claims"
	"github.com/moroshop/storefront/core/coupon"
	"github.com/moroshop/storefront/core/order"
	"github.com/moroshop/storefront/core/shipping"
	"github.com/moroshop/storefront/database"
	"github.com/moroshop/storefront/validate"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// snapshot loads the user's cart straight from the store (never the
// display cache), projects it, and runs the totals pipeline with the
// session's applied coupon and a server-side shipping quote. The coupon
// is re-validated against the store here: a session carries only the
// code, never an authoritative discount.
func snapshot(ctx context.Context, db *sqlx.DB, session *scs.SessionManager, shipper shipping.Provider, userID string) ([]cart.View, Snapshot, error) {
	c, err := cart.Load(ctx, db, userID)
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("loading cart: %w", err)
	}

	views, err := cart.Project(ctx, db, c.Items)
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("projecting cart: %w", err)
	}

	var couponCode string
	var discount float64
	if code := session.GetString(ctx, auth.CouponCodeKey); code != "" {
		cp, err := coupon.Revalidate(ctx, db, code, userID)
		switch {
		case err == nil:
			couponCode, discount = cp.Code, cp.Discount
		case coupon.Rejected(err):
			// The coupon stopped being valid since it was applied
			// (expired, deactivated, usage revoked): checkout
			// proceeds undiscounted.
			session.Remove(ctx, auth.CouponCodeKey)
			session.Remove(ctx, auth.CouponDiscountKey)
		default:
			return nil, Snapshot{}, fmt.Errorf("revalidating coupon[%s]: %w", code, err)
		}
	}

	// First pass without shipping and tax to learn the discounted total
	// the quote is based on.
	pre, err := Compute(views, discount, 0, 0)
	if err != nil {
		return nil, Snapshot{}, err
	}

	quote, err := shipper.Quote(ctx, pre.DiscountedTotal)
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("quoting shipping: %w", err)
	}

	snap, err := Compute(views, discount, quote.ShippingPrice, quote.TaxPrice)
	if err != nil {
		return nil, Snapshot{}, err
	}
	snap.CouponCode = couponCode

	return views, snap, nil
}

// consumeCoupon detaches the applied coupon from the session once its
// discount is frozen on an order. Stripe confirms payment through a
// webhook that has no user session, so consumption must happen here, at
// order creation, for both providers. An abandoned payment does not give
// the coupon back; an admin revocation does.
func consumeCoupon(ctx context.Context, session *scs.SessionManager) {
	session.Remove(ctx, auth.CouponCodeKey)
	session.Remove(ctx, auth.CouponDiscountKey)
}

// prepare freezes the order and its priced lines in one transaction,
// bound to the payment provider's id for later capture.
func prepare(ctx context.Context, db *sqlx.DB, userID string, providerID string, views []cart.View, snap Snapshot) error {
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		now := time.Now().UTC()
		ord := order.Order{
			ID:            validate.GenerateID(),
			UserID:        userID,
			ProviderID:    providerID,
			Status:        order.Pending,
			ItemsPrice:    snap.ItemsPrice,
			CouponCode:    snap.CouponCode,
			Discount:      snap.DiscountAmount,
			ShippingPrice: snap.ShippingPrice,
			TaxPrice:      snap.TaxPrice,
			TotalPrice:    snap.PayableTotal,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := order.Create(ctx, tx, ord); err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		for _, v := range views {
			it := order.Item{
				OrderID:   ord.ID,
				ProductID: v.ProductID,
				Name:      v.Name,
				UnitPrice: v.Price,
				Quantity:  v.Quantity,
				Variant:   (*order.Variant)(v.Variant),
				CreatedAt: now,
			}

			if err := order.CreateItem(ctx, tx, it); err != nil {
				return fmt.Errorf("creating item: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("creating the order bound to payment[%s] for user[%s]: %w", providerID, userID, err)
	}
	return nil
}

// fulfill marks the order paid and flushes the cart in one transaction.
func fulfill(ctx context.Context, db *sqlx.DB, cache *cart.Cache, log logrus.FieldLogger, providerID string) error {
	ord, err := order.FetchByProviderID(ctx, db, providerID)
	if err != nil {
		return fmt.Errorf("fetching the order bound to payment[%s]: %w", providerID, err)
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		up := order.StatusUp{
			ID:        ord.ID,
			Status:    order.Success,
			UpdatedAt: time.Now().UTC(),
		}

		if err = order.UpdateStatus(ctx, tx, up); err != nil {
			return fmt.Errorf("updating status: %w", err)
		}

		if err = cart.Delete(ctx, tx, ord.UserID); err != nil {
			return fmt.Errorf("flushing cart: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("fulfilling the order[%s] bound to payment[%s]: %w", ord.ID, providerID, err)
	}

	if err := cache.Invalidate(ctx, ord.UserID); err != nil && log != nil {
		log.WithField("user_id", ord.UserID).Warnf("cart cache invalidation failed: %v", err)
	}

	return nil
}

// HandleShowSnapshot exposes the server-side totals so the client can
// display exactly what will be charged. The client may recompute for
// rendering, but this is the number the payment consumes.
func HandleShowSnapshot(db *sqlx.DB, session *scs.SessionManager, shipper shipping.Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		_, snap, err := snapshot(ctx, db, session, shipper, clm.UserID)
		if err != nil {
			if errors.Is(err, ErrEmptyCart) {
				return weberr.Unprocessable(err)
			}
			return err
		}

		return web.Respond(ctx, w, snap, http.StatusOK)
	}
}

func HandlePaypalCheckout(db *sqlx.DB, pp *paypal.Client, session *scs.SessionManager, shipper shipping.Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		views, snap, err := snapshot(ctx, db, session, shipper, clm.UserID)
		if err != nil {
			if errors.Is(err, ErrEmptyCart) {
				return weberr.Unprocessable(err)
			}
			return fmt.Errorf("computing checkout snapshot: %w", err)
		}

		units := []paypal.PurchaseUnitRequest{{
			Amount: &paypal.PurchaseUnitAmount{
				Currency: "USD",
				Value:    fmt.Sprintf("%.2f", snap.PayableTotal),
			},
		}}

		app := &paypal.ApplicationContext{}

		ord, err := pp.CreateOrder(ctx, "CAPTURE", units, nil, app)
		if err != nil {
			return fmt.Errorf("creating paypal order: %w", err)
		}

		if err := prepare(ctx, db, clm.UserID, ord.ID, views, snap); err != nil {
			return fmt.Errorf("creating the order on the database: %w", err)
		}

		consumeCoupon(ctx, session)

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func HandlePaypalCapture(db *sqlx.DB, pp *paypal.Client, cache *cart.Cache, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		providerID := web.Param(r, "id")

		resp, err := pp.CaptureOrder(ctx, providerID, paypal.CaptureOrderRequest{})
		if err != nil {
			return fmt.Errorf("capturing paypal order[%s]: %w", providerID, err)
		}

		if resp.Status != "COMPLETED" {
			return fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", providerID, resp.Status)
		}

		if err := fulfill(ctx, db, cache, log, providerID); err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleStripeCheckout(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe, session *scs.SessionManager, shipper shipping.Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		views, snap, err := snapshot(ctx, db, session, shipper, clm.UserID)
		if err != nil {
			if errors.Is(err, ErrEmptyCart) {
				return weberr.Unprocessable(err)
			}
			return fmt.Errorf("computing checkout snapshot: %w", err)
		}

		// The provider consumes the payable total only; the per-item
		// breakdown lives on the stored order.
		li := []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),

			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String("usd"),
				TaxBehavior: stripe.String("inclusive"),
				UnitAmount:  stripe.Int64(int64(math.Round(snap.PayableTotal * 100))),

				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Order total"),
				},
			},
		}}

		params := &stripe.CheckoutSessionParams{
			SuccessURL: stripe.String(cfg.SuccessURL),
			CancelURL:  stripe.String(cfg.CancelURL),
			Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
			LineItems:  li,
		}

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return fmt.Errorf("creating stripe session: %w", err)
		}

		if err := prepare(ctx, db, clm.UserID, s.ID, views, snap); err != nil {
			return fmt.Errorf("creating the order on the database: %w", err)
		}

		consumeCoupon(ctx, session)

		return web.Respond(ctx, w, s.URL, http.StatusOK)
	}
}

func HandleStripeCapture(db *sqlx.DB, cfg config.Stripe, cache *cart.Cache, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if event.Type != "checkout.session.completed" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var session stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		if session.Mode != stripe.CheckoutSessionModePayment {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if err := fulfill(ctx, db, cache, log, session.ID); err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
