package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Cart      *CartHandler
	Checkout  *CheckoutHandler
	Catalog   *CatalogHandler
	Status    *StatusHandler
	Detection http.Handler
}

func NewRouter(h Handlers, requestTimeout time.Duration) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// The websocket endpoint lives outside the timeout middleware: the
	// connection is long-lived by design.
	r.Get("/ws/detection", h.Detection.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Route("/api", func(r chi.Router) {
			r.Get("/cart", h.Cart.GetCart)
			r.Post("/add-to-cart", h.Cart.AddToCart)
			r.Post("/add-batch-to-cart", h.Cart.AddBatchToCart)
			r.Delete("/cart/{product_id}", h.Cart.RemoveItem)
			r.Delete("/cart", h.Cart.ClearCart)

			r.Post("/checkout-cart", h.Checkout.CheckoutCart)
			r.Post("/confirm-payment/{payment_id}", h.Checkout.ConfirmPayment)
			r.Post("/cancel-payment/{payment_id}", h.Checkout.CancelPayment)

			r.Get("/products", h.Catalog.ListProducts)
			r.Post("/restock/{product_id}", h.Catalog.Restock)
			r.Get("/sales", h.Catalog.ListSales)
			r.Get("/analytics", h.Catalog.GetAnalytics)

			r.Get("/system-status", h.Status.SystemStatus)
		})
	})

	return r
}
