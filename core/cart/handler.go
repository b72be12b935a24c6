package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/moroshop/storefront/api/web"
	"github.com/moroshop/storefront/api/weberr"
	"github.com/moroshop/storefront/core/claims"
	"github.com/moroshop/storefront/validate"
	"github.com/sirupsen/logrus"
)

type itemsPayload struct {
	Items []ItemNew `json:"items"`
}

type itemsResponse struct {
	Items []View `json:"items"`
}

// HandleShow returns the projected cart. An owner without a cart row
// gets an empty item list, not an error.
func HandleShow(db *sqlx.DB, cache *Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		views, err := cache.Views(ctx, clm.UserID, func(ctx context.Context) ([]View, error) {
			c, err := Load(ctx, db, clm.UserID)
			if err != nil {
				return nil, err
			}
			return Project(ctx, db, c.Items)
		})
		if err != nil {
			return fmt.Errorf("projecting cart of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, itemsResponse{Items: views}, http.StatusOK)
	}
}

// HandleSync overwrites the stored cart with the client's item list.
// The client is the source of truth for which items and quantities
// exist, never for prices.
func HandleSync(db *sqlx.DB, cache *Cache, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in itemsPayload
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		items, err := toItems(in.Items)
		if err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if err := Overwrite(ctx, db, clm.UserID, items); err != nil {
			return fmt.Errorf("syncing cart of user[%s]: %w", clm.UserID, err)
		}

		invalidate(ctx, cache, clm.UserID, log)

		return web.Respond(ctx, w, struct {
			Success bool `json:"success"`
		}{true}, http.StatusOK)
	}
}

// HandleMerge folds a guest cart into the stored cart on login and
// returns the already-projected result. Callers trigger this once per
// login: merging is additive and running it twice doubles quantities.
func HandleMerge(db *sqlx.DB, cache *Cache, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in itemsPayload
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		items, err := toItems(in.Items)
		if err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		merged, err := SaveMerged(ctx, db, clm.UserID, items)
		if err != nil {
			return fmt.Errorf("merging cart of user[%s]: %w", clm.UserID, err)
		}

		invalidate(ctx, cache, clm.UserID, log)

		views, err := Project(ctx, db, merged)
		if err != nil {
			return fmt.Errorf("projecting merged cart of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, itemsResponse{Items: views}, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB, cache *Cache, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		if err := Delete(ctx, db, clm.UserID); err != nil {
			return fmt.Errorf("clearing cart of user[%s]: %w", clm.UserID, err)
		}

		invalidate(ctx, cache, clm.UserID, log)

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// toItems validates client lines at the store boundary and converts them
// to storable items. The variant snapshot, when present, must carry a
// full identity/price/stock shape so merge and projection can rely on it.
func toItems(in []ItemNew) ([]Item, error) {
	items := make([]Item, 0, len(in))
	for _, n := range in {
		if err := validate.CheckID(n.ProductID); err != nil {
			return nil, fmt.Errorf("item product ref: %w", err)
		}
		if err := validate.Check(n); err != nil {
			return nil, err
		}

		items = append(items, Item{
			ProductID: n.ProductID,
			Quantity:  n.Quantity,
			Variant:   n.Variant,
		})
	}
	return items, nil
}

// A failed invalidation must not fail the request that already wrote the
// cart; the entry expires by TTL anyway.
func invalidate(ctx context.Context, cache *Cache, owner string, log logrus.FieldLogger) {
	if err := cache.Invalidate(ctx, owner); err != nil && log != nil {
		log.WithField("user_id", owner).Warnf("cart cache invalidation failed: %v", err)
	}
}
