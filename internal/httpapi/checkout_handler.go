package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TheKaito2/Hybrid-complete/internal/checkout"
)

type CheckoutHandler struct {
	service *checkout.Service
}

func NewCheckoutHandler(service *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

func (h *CheckoutHandler) CheckoutCart(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.CreatePayment(r.Context())
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			respondError(w, http.StatusBadRequest, "Cart is empty")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create payment")
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (h *CheckoutHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "payment_id")

	sale, err := h.service.ConfirmPayment(r.Context(), paymentID)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrSessionNotFound):
			respondError(w, http.StatusNotFound, "Payment not found")
		case errors.Is(err, checkout.ErrSessionExpired):
			respondError(w, http.StatusBadRequest, "Payment session expired")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to process payment")
		}
		return
	}

	respondJSON(w, http.StatusOK, sale)
}

func (h *CheckoutHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "payment_id")

	if err := h.service.CancelPayment(paymentID); err != nil {
		respondError(w, http.StatusNotFound, "Payment not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"payment_id": paymentID,
	})
}
