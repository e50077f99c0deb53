package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/view"
)

// Catalog is the read side of the catalog cache used by the product routes.
type Catalog interface {
	Load(ctx context.Context) error
	Products() []domain.Product
	Featured(n int) []domain.Product
	Search(term string) []domain.Product
	Len() int
	LoadedAt() time.Time
}

type ProductHandler struct {
	catalog       Catalog
	featuredCount int
	searchPage    string
	timeout       time.Duration
}

func NewProductHandler(c Catalog, featuredCount int, searchPage string, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog:       c,
		featuredCount: featuredCount,
		searchPage:    searchPage,
		timeout:       timeout,
	}
}

type ProductsResponse struct {
	Products []view.ProductCard `json:"products"`
	Count    int                `json:"count"`
}

type RefreshResponse struct {
	Products int       `json:"products"`
	LoadedAt time.Time `json:"loaded_at"`
}

// GET /api/v1/products?search=term
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.Products()
	if term := r.URL.Query().Get("search"); term != "" {
		products = h.catalog.Search(term)
	}

	cards := view.Cards(products)
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: cards, Count: len(cards)})
}

// GET /api/v1/products/featured
func (h *ProductHandler) Featured(w http.ResponseWriter, r *http.Request) {
	cards := view.Cards(h.catalog.Featured(h.featuredCount))
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: cards, Count: len(cards)})
}

// POST /api/v1/catalog/refresh
func (h *ProductHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.catalog.Load(ctx); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("manual catalog refresh failed")
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &RefreshResponse{
		Products: h.catalog.Len(),
		LoadedAt: h.catalog.LoadedAt(),
	})
}

// GET /search?q=term redirects to the catalog page with the term applied.
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, catalog.SearchURL(h.searchPage, r.URL.Query().Get("q")), http.StatusFound)
}
