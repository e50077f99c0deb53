package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/view"
)

const partialMessage = "order placed, confirmation pending"

type Orchestrator interface {
	Checkout(ctx context.Context, sessionID string, owner checkout.CartOwner, info domain.CustomerInfo) (*checkout.Attempt, error)
}

type CheckoutHandler struct {
	sessions     Sessions
	orchestrator Orchestrator
	timeout      time.Duration
}

func NewCheckoutHandler(sessions Sessions, orchestrator Orchestrator, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		sessions:     sessions,
		orchestrator: orchestrator,
		timeout:      timeout,
	}
}

type CheckoutRequestDTO struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type CheckoutResponseDTO struct {
	CheckoutID string    `json:"checkout_id"`
	OrderID    string    `json:"order_id,omitempty"`
	Status     string    `json:"status"`
	Total      string    `json:"total"`
	Message    string    `json:"message,omitempty"`
	Count      int       `json:"count"`
	Cart       view.Cart `json:"cart"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(ctx)
	engine, err := h.sessions.Engine(ctx, sessionID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	attempt, err := h.orchestrator.Checkout(ctx, sessionID, engine, domain.CustomerInfo{
		Email: req.Email,
		Name:  req.Name,
		Phone: req.Phone,
	})
	if p, ok := checkout.IsPartial(err); ok {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", p.OrderID).Msg("checkout finished partially")
		respondJSON(w, http.StatusAccepted, responseFor(attempt, engine.Snapshot(), partialMessage))
		return
	}
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, responseFor(attempt, engine.Snapshot(), ""))
}

// responseFor carries the cart left after checkout so the client can reset
// its badge without another request.
func responseFor(a *checkout.Attempt, left domain.Cart, message string) *CheckoutResponseDTO {
	cart := view.BuildCart(left)
	return &CheckoutResponseDTO{
		CheckoutID: a.ID,
		OrderID:    a.OrderID,
		Status:     a.Status.String(),
		Total:      a.Cart.Total().StringFixed(2),
		Message:    message,
		Count:      cart.Count,
		Cart:       cart,
	}
}
