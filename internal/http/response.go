package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/session"
	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleDomainError maps cart and checkout errors to HTTP statuses.
func handleDomainError(w http.ResponseWriter, err error) {
	var (
		httpStatus int
		code       string
	)

	switch {
	case errors.Is(err, session.ErrInvalidSession):
		httpStatus, code = http.StatusBadRequest, "invalid_session"
	case errors.Is(err, domain.ErrUnknownProduct):
		httpStatus, code = http.StatusNotFound, "unknown_product"
	case errors.Is(err, domain.ErrOutOfStock):
		httpStatus, code = http.StatusConflict, "out_of_stock"
	case errors.Is(err, domain.ErrStockLimitReached):
		httpStatus, code = http.StatusConflict, "stock_limit_reached"
	case errors.Is(err, domain.ErrEmptyCart):
		httpStatus, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, domain.ErrCheckoutInProgress):
		httpStatus, code = http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, domain.ErrCheckoutCancelled):
		httpStatus, code = http.StatusUnprocessableEntity, "checkout_cancelled"
	case errors.Is(err, domain.ErrOrderCreationFailed):
		httpStatus, code = http.StatusBadGateway, "order_creation_failed"
	case errors.Is(err, domain.ErrCatalogLoadFailed):
		httpStatus, code = http.StatusServiceUnavailable, "catalog_unavailable"
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
