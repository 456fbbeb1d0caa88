package api

import (
	"net/http"
	"time"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(handlers *Handlers, tokens middleware.TokenValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", handlers.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", handlers.GetProducts)
		r.Get("/products/{id}", handlers.GetProduct)
		r.Get("/flash-sales/eligibility", handlers.Eligibility)
		r.Post("/webhooks/payment", handlers.PaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(tokens))

			r.Get("/cart", handlers.GetCart)
			r.Post("/cart/items", handlers.AddToCart)
			r.Delete("/cart/items/{productID}", handlers.RemoveFromCart)

			r.Post("/checkout/quote", handlers.Quote)
			r.Post("/orders", handlers.PlaceOrder)
			r.Get("/orders", handlers.GetOrders)
			r.Get("/orders/{id}", handlers.GetOrder)
			r.Post("/orders/{id}/cancel", handlers.CancelOrder)

			r.Get("/wallet", handlers.GetWallet)
			r.Post("/coupons/validate", handlers.ValidateCoupon)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/orders", handlers.ListAllOrders)
				r.Put("/orders", handlers.UpdateOrderStatus)

				r.Get("/flash-sales", handlers.ListFlashSales)
				r.Post("/flash-sales", handlers.CreateFlashSale)
				r.Post("/flash-sales/{id}/end", handlers.EndFlashSale)

				r.Post("/products", handlers.CreateProduct)
				r.Put("/products/{id}", handlers.UpdateProduct)
				r.Delete("/products/{id}", handlers.DeleteProduct)

				r.Get("/coupons", handlers.ListCoupons)
				r.Post("/coupons", handlers.CreateCoupon)
				r.Delete("/coupons/{code}", handlers.DeactivateCoupon)
				r.Post("/wallets/{userID}/credits", handlers.AddCredit)
			})
		})
	})

	return r
}
