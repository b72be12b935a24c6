package test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"testing"
	"time"

	"github.com/moroshop/storefront/core/checkout"
	"github.com/moroshop/storefront/core/order"
	"github.com/moroshop/storefront/core/product"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

type checkoutTest struct {
	*TestEnv
}

type ownedOrder struct {
	order.Order
	Items []order.Item `json:"items"`
}

func (ot *checkoutTest) snapshotOK(t *testing.T) checkout.Snapshot {
	t.Helper()

	var snap checkout.Snapshot
	w := ot.getJSON(t, "/checkout", &snap)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't fetch checkout snapshot: status code %s", w.Status)
	}
	return snap
}

func (ot *checkoutTest) listOrdersOK(t *testing.T) []ownedOrder {
	t.Helper()

	var ords []ownedOrder
	w := ot.getJSON(t, "/orders", &ords)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't fetch orders: status code %s", w.Status)
	}
	return ords
}

func (ot *checkoutTest) payWithPaypal(t *testing.T) {
	t.Helper()

	w := ot.postJSON(t, "/checkout/paypal", nil)
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't create paypal checkout: status code %s", w.Status)
	}

	var ord paypal.Order
	if err := json.NewDecoder(w.Body).Decode(&ord); err != nil {
		t.Fatalf("cannot unmarshal paypal order: %v", err)
	}

	cw := ot.postJSON(t, "/checkout/paypal/"+ord.ID+"/capture", nil)
	defer cw.Body.Close()

	if cw.StatusCode != http.StatusNoContent {
		t.Fatalf("can't capture paypal checkout: status code %s", cw.Status)
	}
}

func (ot *checkoutTest) payWithStripe(t *testing.T) {
	t.Helper()

	w := ot.postJSON(t, "/checkout/stripe", nil)
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't create stripe checkout: status code %s", w.Status)
	}

	urlBytes, err := io.ReadAll(w.Body)
	if err != nil {
		t.Fatal(err)
	}

	var url string
	if err := json.Unmarshal(urlBytes, &url); err != nil {
		t.Fatal(err)
	}

	obj := map[string]any{
		"id":   path.Base(url),
		"mode": stripe.CheckoutSessionModePayment,
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatal(err)
	}

	evt := stripe.Event{
		APIVersion: "2022-11-15",
		Type:       "checkout.session.completed",
		Data: &stripe.EventData{
			Raw: json.RawMessage(raw),
		},
	}
	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   b,
		Secret:    ot.WebhookSecret,
		Timestamp: time.Now(),
	})

	r, err := http.NewRequest(http.MethodPost, ot.URL+"/checkout/stripe/capture", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Stripe-Signature", signed.Header)

	cw, err := ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer cw.Body.Close()

	if cw.StatusCode != http.StatusNoContent {
		t.Fatalf("can't trigger stripe webhook: status code %s", cw.Status)
	}
}

func TestCheckout(t *testing.T) {
	env, err := NewTestEnv(t, "checkout_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &catalogTest{env}
	rt := &cartTest{env}
	pt := &couponTest{env}
	ot := &checkoutTest{env}

	env.Login(t, env.AdminEmail, env.AdminPass)
	first := ct.createProductOK(t, product.ProductNew{Name: "First", Price: 100, Quantity: 5})
	second := ct.createProductOK(t, product.ProductNew{Name: "Second", Price: 50, Quantity: 5})
	future := time.Now().Add(24 * time.Hour).UTC()
	pt.createCouponOK(t, map[string]any{
		"code":      "TENOFF",
		"discount":  10,
		"expiresAt": future,
	})
	fleeting := pt.createCouponOK(t, map[string]any{
		"code":      "FLEETING",
		"discount":  20,
		"expiresAt": future,
	})
	env.Logout(t)

	env.Login(t, env.UserEmail, env.UserPass)
	defer env.Logout(t)

	// An empty cart has no total and cannot reach a provider.
	w := ot.getJSON(t, "/checkout", nil)
	if w.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected empty-cart rejection, got status code %s", w.Status)
	}

	rt.syncOK(t, []itemPayload{
		{Product: first.ID, Quantity: 2},
		{Product: second.ID, Quantity: 1},
	})
	pt.applyOK(t, "TENOFF", 10)

	snap := ot.snapshotOK(t)
	want := checkout.Snapshot{
		ItemsPrice:      250,
		CouponCode:      "TENOFF",
		DiscountPercent: 10,
		DiscountAmount:  25,
		DiscountedTotal: 225,
		ShippingPrice:   20,
		TaxPrice:        5,
		PayableTotal:    250,
	}
	if snap != want {
		t.Fatalf("snapshot mismatch:\nwant %+v\ngot  %+v", want, snap)
	}

	env.Stripe.expectedTotal = snap.PayableTotal
	ot.payWithStripe(t)

	if left := rt.showOK(t); len(left) != 0 {
		t.Fatalf("expected cart flushed after payment, got %d lines", len(left))
	}

	ords := ot.listOrdersOK(t)
	if len(ords) != 1 {
		t.Fatalf("expected 1 order, got %d", len(ords))
	}
	paid := ords[0]
	if paid.Status != order.Success {
		t.Fatalf("expected paid order status %q, got %q", order.Success, paid.Status)
	}
	if paid.TotalPrice != 250 || paid.Discount != 25 || paid.CouponCode != "TENOFF" {
		t.Fatalf("unexpected frozen totals: %+v", paid.Order)
	}
	if len(paid.Items) != 2 {
		t.Fatalf("expected 2 frozen lines, got %d", len(paid.Items))
	}

	// The coupon was consumed when the order was frozen, so even after a
	// webhook-confirmed payment the next checkout runs without a discount
	// until a coupon is applied again.
	rt.syncOK(t, []itemPayload{{Product: second.ID, Quantity: 1}})

	snap = ot.snapshotOK(t)
	if snap.CouponCode != "" || snap.DiscountAmount != 0 || snap.PayableTotal != 75 {
		t.Fatalf("expected undiscounted payable 75, got %+v", snap)
	}

	env.Paypal.expectedTotal = snap.PayableTotal
	ot.payWithPaypal(t)

	if left := rt.showOK(t); len(left) != 0 {
		t.Fatalf("expected cart flushed after paypal payment, got %d lines", len(left))
	}

	if ords = ot.listOrdersOK(t); len(ords) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(ords))
	}

	// An applied coupon is re-validated at every snapshot: revoking the
	// usage between apply and checkout drops the discount.
	rt.syncOK(t, []itemPayload{{Product: second.ID, Quantity: 1}})
	pt.applyOK(t, "FLEETING", 20)

	if snap = ot.snapshotOK(t); snap.PayableTotal != 65 || snap.CouponCode != "FLEETING" {
		t.Fatalf("expected discounted payable 65, got %+v", snap)
	}

	if _, err := env.DB.Exec("DELETE FROM coupon_usages WHERE coupon_id = $1", fleeting.ID); err != nil {
		t.Fatalf("revoking coupon usage: %v", err)
	}

	if snap = ot.snapshotOK(t); snap.CouponCode != "" || snap.PayableTotal != 75 {
		t.Fatalf("expected revoked coupon dropped from checkout, got %+v", snap)
	}

	// Same for a coupon deactivated after apply.
	pt.applyOK(t, "FLEETING", 20)

	if snap = ot.snapshotOK(t); snap.PayableTotal != 65 {
		t.Fatalf("expected discounted payable 65, got %+v", snap)
	}

	if _, err := env.DB.Exec("UPDATE coupons SET status = 'inactive' WHERE coupon_id = $1", fleeting.ID); err != nil {
		t.Fatalf("deactivating coupon: %v", err)
	}

	if snap = ot.snapshotOK(t); snap.CouponCode != "" || snap.PayableTotal != 75 {
		t.Fatalf("expected deactivated coupon dropped from checkout, got %+v", snap)
	}
}
