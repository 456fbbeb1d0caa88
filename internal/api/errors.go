package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/ec-storefront/internal/checkout"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/coupon"
	"github.com/example/ec-storefront/internal/domain/discount"
	"github.com/example/ec-storefront/internal/domain/flashsale"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/domain/wallet"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/query"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var (
	notFound = []error{
		query.ErrNotFound,
		order.ErrOrderNotFound,
		product.ErrProductNotFound,
		coupon.ErrCouponNotFound,
		flashsale.ErrSaleNotFound,
		cart.ErrItemNotInCart,
	}
	conflict = []error{
		order.ErrInvalidTransition,
		order.ErrTerminalStatus,
		order.ErrOrderDelivered,
		order.ErrOrderExists,
		coupon.ErrCouponExists,
		flashsale.ErrSaleEnded,
		wallet.ErrAlreadyDebited,
		coupon.ErrNotRedeemed,
		order.ErrCreditReleased,
		store.ErrConcurrentAppend,
	}
	badRequest = []error{
		checkout.ErrEmptyCart,
		order.ErrUnknownStatus,
		order.ErrEmptyOrder,
		order.ErrInvalidItem,
		cart.ErrInvalidQuantity,
		cart.ErrInvalidProduct,
		cart.ErrInvalidPrice,
		product.ErrInvalidPrice,
		product.ErrInvalidName,
		product.ErrInvalidStock,
		coupon.ErrInvalidCode,
		coupon.ErrInvalidType,
		coupon.ErrInvalidValue,
		flashsale.ErrNoProducts,
		flashsale.ErrInvalidDiscount,
		flashsale.ErrInvalidSaleTimes,
		wallet.ErrInvalidAmount,
	}
	unprocessable = []error{
		wallet.ErrInsufficientBalance,
		coupon.ErrCouponUnavailable,
		order.ErrInvalidTotals,
	}
)

func matches(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// writeError maps domain errors to HTTP statuses. Anything unmapped is a 500
// and is logged; its text is not returned to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		discErr   *discount.Error
		couponErr *checkout.CouponError
	)
	switch {
	case errors.As(err, &discErr):
		respondJSON(w, http.StatusUnprocessableEntity, errorBody{Error: string(discErr.Kind), Message: discErr.Message})
	case errors.As(err, &couponErr):
		respondJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "COUPON_REJECTED", Message: couponErr.Message})
	case matches(err, notFound):
		respondError(w, http.StatusNotFound, err.Error())
	case matches(err, conflict):
		respondError(w, http.StatusConflict, err.Error())
	case matches(err, badRequest):
		respondError(w, http.StatusBadRequest, err.Error())
	case matches(err, unprocessable):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}
