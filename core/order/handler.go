package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/moroshop/storefront/api/web"
	"github.com/moroshop/storefront/api/weberr"
	"github.com/moroshop/storefront/core/claims"
)

// HandleListOwn returns the caller's orders with their frozen line items.
func HandleListOwn(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ords, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching orders: %w", err)
		}

		type orderFull struct {
			Order
			Items []Item `json:"items"`
		}

		full := make([]orderFull, 0, len(ords))
		for _, ord := range ords {
			items, err := FetchItems(ctx, db, ord.ID)
			if err != nil {
				return err
			}
			full = append(full, orderFull{Order: ord, Items: items})
		}

		return web.Respond(ctx, w, full, http.StatusOK)
	}
}
