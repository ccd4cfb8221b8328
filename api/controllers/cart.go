package controllers

import (
	"context"
	"net/http"

	"github.com/merchshop/storefront-backend/api/middleware"
	"github.com/merchshop/storefront-backend/api/responses"
	"github.com/merchshop/storefront-backend/api/validators"
	"github.com/merchshop/storefront-backend/internal/cart"
	pkgerrors "github.com/merchshop/storefront-backend/pkg/errors"
	"github.com/merchshop/storefront-backend/pkg/logger"
)

type cartAddResponse struct {
	Notice cart.Notice `json:"notice"`
	Cart   cart.View   `json:"cart"`
}

type buyNowResponse struct {
	BuyNow bool `json:"buy_now"`
}

// CartGet returns the session's cart lines and totals.
func CartGet(carts CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		writeCartView(r.Context(), w, carts, middleware.CartSessionFromContext(r.Context()), logg)
	}
}

// CartAddItem resolves the product from the catalog and adds it to the cart.
func CartAddItem(carts CartService, products ProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil || products == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var req cartItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, err := products.GetProduct(r.Context(), req.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID := middleware.CartSessionFromContext(r.Context())
		notice, err := carts.AddItem(r.Context(), sessionID, *p, req.Size, req.quantity(), req.Color)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := carts.View(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartAddResponse{Notice: notice, Cart: view})
	}
}

// CartUpdateQuantity sets a line's quantity; zero removes the line.
func CartUpdateQuantity(carts CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var req cartQuantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID := middleware.CartSessionFromContext(r.Context())
		if err := carts.UpdateQuantity(r.Context(), sessionID, req.ProductID, req.Size, *req.Quantity, req.Color); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCartView(r.Context(), w, carts, sessionID, logg)
	}
}

// CartRemoveItem drops the line named by the product_id, size and color query parameters.
func CartRemoveItem(carts CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		query := r.URL.Query()
		productID := validators.SanitizeString(query.Get("product_id"), 64)
		if productID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required"))
			return
		}

		sessionID := middleware.CartSessionFromContext(r.Context())
		size := validators.SanitizeString(query.Get("size"), 32)
		color := validators.SanitizeString(query.Get("color"), 32)
		if err := carts.RemoveItem(r.Context(), sessionID, productID, size, color); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCartView(r.Context(), w, carts, sessionID, logg)
	}
}

// CartClear empties the cart and drops any applied coupon.
func CartClear(carts CartService, checkout CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil || checkout == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		sessionID := middleware.CartSessionFromContext(r.Context())
		if err := checkout.ClearCart(r.Context(), sessionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCartView(r.Context(), w, carts, sessionID, logg)
	}
}

// CartBuyNow replaces the cart with a single line and flags buy-now mode.
func CartBuyNow(carts CartService, products ProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil || products == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var req cartItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, err := products.GetProduct(r.Context(), req.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID := middleware.CartSessionFromContext(r.Context())
		if err := carts.BuyNow(r.Context(), sessionID, *p, req.Size, req.quantity(), req.Color); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCartView(r.Context(), w, carts, sessionID, logg)
	}
}

// CartBuyNowGet reports whether the cart is in buy-now mode.
func CartBuyNowGet(carts CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		view, err := carts.View(r.Context(), middleware.CartSessionFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, buyNowResponse{BuyNow: view.BuyNowActive})
	}
}

func writeCartView(ctx context.Context, w http.ResponseWriter, carts CartService, sessionID string, logg *logger.Logger) {
	view, err := carts.View(ctx, sessionID)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	responses.WriteSuccess(w, view)
}
