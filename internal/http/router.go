package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups the route handlers. Admin is nil when the checkout journal
// is disabled.
type Handlers struct {
	Products *ProductHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Admin    *AdminHandler
}

type RouterConfig struct {
	RequestTimeout time.Duration
	AdminToken     string
}

func NewRouter(h Handlers, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/search", h.Products.Search)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", h.Products.List)
		r.Get("/products/featured", h.Products.Featured)
		r.Post("/catalog/refresh", h.Products.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware)

			r.Get("/page", h.Cart.GetPage)
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Patch("/items/{product_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			})
			r.Post("/checkout", h.Checkout.Checkout)
		})

		if h.Admin != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(AdminAuthMiddleware(cfg.AdminToken))
				r.Get("/reconciliation", h.Admin.PendingReconciliation)
			})
		}
	})

	return r
}
