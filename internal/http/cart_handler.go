package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/view"
	"github.com/go-chi/chi/v5"
)

// Sessions resolves the cart engine owned by a session. Cart serves reads
// without keeping an engine around.
type Sessions interface {
	Engine(ctx context.Context, sessionID string) (*cart.Engine, error)
	Cart(ctx context.Context, sessionID string) (domain.Cart, error)
}

type CartHandler struct {
	sessions Sessions
	catalog  Catalog
	featured int
}

func NewCartHandler(sessions Sessions, c Catalog, featuredCount int) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		catalog:  c,
		featured: featuredCount,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
}

type UpdateQuantityRequestDTO struct {
	Delta int `json:"delta"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.sessions.Cart(r.Context(), getSessionID(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view.BuildCart(c))
}

// GET /api/v1/page renders products, featured products and the cart together.
func (h *CartHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	c, err := h.sessions.Cart(r.Context(), getSessionID(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	page := view.Build(h.catalog.Products(), h.catalog.Featured(h.featured), c)
	respondJSON(w, http.StatusOK, page)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	c, err := engine.Add(r.Context(), req.ProductID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, view.BuildCart(c))
}

// PATCH /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Delta == 0 {
		respondError(w, http.StatusBadRequest, "invalid_delta", "delta must not be zero")
		return
	}

	c, err := engine.SetQuantity(r.Context(), chi.URLParam(r, "product_id"), req.Delta)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view.BuildCart(c))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	c, err := engine.Remove(r.Context(), chi.URLParam(r, "product_id"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view.BuildCart(c))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	engine.Clear(r.Context())
	respondJSON(w, http.StatusOK, view.BuildCart(engine.Snapshot()))
}

func (h *CartHandler) engine(w http.ResponseWriter, r *http.Request) (*cart.Engine, bool) {
	engine, err := h.sessions.Engine(r.Context(), getSessionID(r.Context()))
	if err != nil {
		logger.Ctx(r.Context()).Debug().Err(err).Msg("session rejected")
		handleDomainError(w, err)
		return nil, false
	}
	return engine, true
}
