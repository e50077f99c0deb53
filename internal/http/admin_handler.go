package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/storefront/internal/journal"
	"github.com/fjod/storefront/internal/logger"
)

const (
	defaultReconciliationLimit = 50
	maxReconciliationLimit     = 500
)

// Reconciliations lists orders that were placed without a full confirmation.
type Reconciliations interface {
	ListPendingReconciliation(ctx context.Context, limit int) ([]*journal.CheckoutAttempt, error)
}

type AdminHandler struct {
	journal Reconciliations
	timeout time.Duration
}

func NewAdminHandler(j Reconciliations, timeout time.Duration) *AdminHandler {
	return &AdminHandler{journal: j, timeout: timeout}
}

type ReconciliationDTO struct {
	CheckoutID    string          `json:"checkout_id"`
	OrderID       string          `json:"order_id"`
	SessionID     string          `json:"session_id"`
	FailedStep    string          `json:"failed_step"`
	Reason        string          `json:"reason"`
	Total         string          `json:"total"`
	CustomerEmail string          `json:"customer_email"`
	Items         json.RawMessage `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ReconciliationsResponse struct {
	Pending []ReconciliationDTO `json:"pending"`
}

// GET /api/v1/admin/reconciliation?limit=n
func (h *AdminHandler) PendingReconciliation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := defaultReconciliationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxReconciliationLimit {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	attempts, err := h.journal.ListPendingReconciliation(ctx, limit)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to list pending reconciliations")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	pending := make([]ReconciliationDTO, 0, len(attempts))
	for _, a := range attempts {
		dto := ReconciliationDTO{
			CheckoutID:    a.ID,
			OrderID:       a.OrderID,
			SessionID:     a.SessionID,
			FailedStep:    a.FailedStep,
			Reason:        a.FailureReason,
			Total:         a.Total.StringFixed(2),
			CustomerEmail: a.CustomerEmail,
			CreatedAt:     a.CreatedAt,
		}
		if json.Valid(a.CartSnapshot) {
			dto.Items = a.CartSnapshot
		}
		pending = append(pending, dto)
	}

	respondJSON(w, http.StatusOK, &ReconciliationsResponse{Pending: pending})
}
