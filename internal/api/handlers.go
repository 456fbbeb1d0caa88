package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/domain/flashsale"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/query"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	cmdHandler    *command.Handler
	queryHandler  *query.Handler
	resolver      *flashsale.Resolver
	webhookSecret []byte
	logger        *slog.Logger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, resolver *flashsale.Resolver, webhookSecret string, logger *slog.Logger) *Handlers {
	return &Handlers{
		cmdHandler:    cmdHandler,
		queryHandler:  queryHandler,
		resolver:      resolver,
		webhookSecret: []byte(webhookSecret),
		logger:        logger.With("component", "api"),
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.logger, err)
}

// Product Handlers

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.queryHandler.ListProducts()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.queryHandler.GetProduct(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateProduct
	if !decodeJSON(w, r, &cmd) {
		return
	}

	product, err := h.cmdHandler.CreateProduct(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateProduct
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.ProductID = chi.URLParam(r, "id")

	if err := h.cmdHandler.UpdateProduct(r.Context(), cmd); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Product updated"})
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.cmdHandler.DeleteProduct(r.Context(), command.DeleteProduct{ProductID: chi.URLParam(r, "id")}); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.queryHandler.GetCart(middleware.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddToCart
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.UserID = middleware.UserID(r.Context())

	if err := h.cmdHandler.AddToCart(r.Context(), cmd); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	cmd := command.RemoveFromCart{
		UserID:    middleware.UserID(r.Context()),
		ProductID: chi.URLParam(r, "productID"),
	}
	if err := h.cmdHandler.RemoveFromCart(r.Context(), cmd); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Checkout Handlers

func (h *Handlers) checkoutCommand(w http.ResponseWriter, r *http.Request) (command.PlaceOrder, bool) {
	var cmd command.PlaceOrder
	if r.ContentLength != 0 && !decodeJSON(w, r, &cmd) {
		return cmd, false
	}
	claims, _ := middleware.ClaimsFrom(r.Context())
	cmd.UserID = claims.UserID
	cmd.Email = claims.Email
	return cmd, true
}

func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.checkoutCommand(w, r)
	if !ok {
		return
	}

	q, err := h.cmdHandler.Quote(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.checkoutCommand(w, r)
	if !ok {
		return
	}

	o, _, err := h.cmdHandler.PlaceOrder(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

// Order Handlers

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queryHandler.ListOrdersByUser(middleware.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(orders))
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.queryHandler.GetOrder(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	claims, _ := middleware.ClaimsFrom(r.Context())
	if o.UserID != claims.UserID && claims.Role != auth.RoleAdmin {
		h.fail(w, r, order.ErrOrderNotFound)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.cmdHandler.CancelOrder(r.Context(), command.CancelOrder{
		OrderID: chi.URLParam(r, "id"),
		UserID:  middleware.UserID(r.Context()),
		Reason:  req.Reason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Wallet, coupon and flash sale handlers

func (h *Handlers) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.queryHandler.GetWallet(middleware.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

func (h *Handlers) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string          `json:"code"`
		Subtotal decimal.Decimal `json:"subtotal"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.cmdHandler.ValidateCoupon(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Eligibility answers whether coupons and CrashCash may be used with the given
// products. Source failures resolve to allowed.
func (h *Handlers) Eligibility(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("productIds"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	respondJSON(w, http.StatusOK, h.resolver.Resolve(r.Context(), ids))
}

// Admin Handlers

func (h *Handlers) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queryHandler.ListAllOrders(r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(orders))
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateOrderStatus
	if !decodeJSON(w, r, &cmd) {
		return
	}
	if cmd.OrderID == "" {
		respondError(w, http.StatusBadRequest, "orderId is required")
		return
	}
	cmd.Source = command.SourceAdmin

	o, err := h.cmdHandler.UpdateOrderStatus(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) ListFlashSales(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("isActive"))
	sales, err := h.queryHandler.ListFlashSales(activeOnly)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(sales))
}

func (h *Handlers) CreateFlashSale(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateFlashSale
	if !decodeJSON(w, r, &cmd) {
		return
	}

	sale, err := h.cmdHandler.CreateFlashSale(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sale.View())
}

func (h *Handlers) EndFlashSale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	err := h.cmdHandler.EndFlashSale(r.Context(), command.EndFlashSale{SaleID: chi.URLParam(r, "id"), Reason: req.Reason})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Flash sale ended"})
}

func (h *Handlers) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateCoupon
	if !decodeJSON(w, r, &cmd) {
		return
	}

	c, err := h.cmdHandler.CreateCoupon(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handlers) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.queryHandler.ListCoupons()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(coupons))
}

func (h *Handlers) DeactivateCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.cmdHandler.DeactivateCoupon(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AddCredit(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddCredit
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.UserID = chi.URLParam(r, "userID")

	wallet, err := h.cmdHandler.AddCredit(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, wallet)
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// nonNil keeps empty listings encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
