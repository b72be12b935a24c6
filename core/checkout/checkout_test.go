package checkout

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/moroshop/storefront/core/cart"
)

func TestCompute(t *testing.T) {
	items := []cart.View{
		{ProductID: "p1", Price: 100, Quantity: 2},
		{ProductID: "p2", Price: 50, Quantity: 1},
	}

	got, err := Compute(items, 10, 20, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Snapshot{
		ItemsPrice:      250,
		DiscountPercent: 10,
		DiscountAmount:  25,
		DiscountedTotal: 225,
		ShippingPrice:   20,
		TaxPrice:        5,
		PayableTotal:    250,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeWithoutDiscount(t *testing.T) {
	items := []cart.View{{ProductID: "p1", Price: 99.99, Quantity: 1}}

	got, err := Compute(items, 0, 10, 2.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.DiscountAmount != 0 {
		t.Fatalf("expected no discount, got %v", got.DiscountAmount)
	}
	if got.PayableTotal != 112.49 {
		t.Fatalf("expected payable 112.49, got %v", got.PayableTotal)
	}
}

func TestComputeRoundsDiscountAndTotal(t *testing.T) {
	// 33.33 * 3 = 99.99; 15% of it is 14.9985 and must round to 15.00
	// before it is subtracted.
	items := []cart.View{{ProductID: "p1", Price: 33.33, Quantity: 3}}

	got, err := Compute(items, 15, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.DiscountAmount != 15 {
		t.Fatalf("expected rounded discount 15, got %v", got.DiscountAmount)
	}
	if got.PayableTotal != 84.99 {
		t.Fatalf("expected payable 84.99, got %v", got.PayableTotal)
	}
}

func TestComputeRejectsEmptyCart(t *testing.T) {
	if _, err := Compute(nil, 10, 20, 5); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

// Lines clamped to zero quantity contribute nothing; a cart made only of
// such lines cannot be checked out.
func TestComputeRejectsAllOutOfStock(t *testing.T) {
	items := []cart.View{{ProductID: "p1", Price: 100, Quantity: 0}}

	if _, err := Compute(items, 0, 20, 5); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestItemsTotalPrefersDiscountFigure(t *testing.T) {
	disc := 40.0
	items := []cart.View{
		{ProductID: "p1", Price: 50, DiscountPrice: &disc, Quantity: 2},
		{ProductID: "p2", Price: 10, Quantity: 1},
	}

	if got := ItemsTotal(items); got != 90 {
		t.Fatalf("expected items total 90, got %v", got)
	}
}

func TestItemsTotalIgnoresZeroDiscountFigure(t *testing.T) {
	zero := 0.0
	items := []cart.View{{ProductID: "p1", Price: 50, DiscountPrice: &zero, Quantity: 1}}

	if got := ItemsTotal(items); got != 50 {
		t.Fatalf("expected items total 50, got %v", got)
	}
}
