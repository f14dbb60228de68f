package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TheKaito2/Hybrid-complete/internal/cart"
	"github.com/TheKaito2/Hybrid-complete/internal/catalog"
	"github.com/TheKaito2/Hybrid-complete/internal/repository"
	"github.com/TheKaito2/Hybrid-complete/internal/ws"
)

type CatalogHandler struct {
	catalog *catalog.Service
	sales   repository.SaleRepository
}

func NewCatalogHandler(catalog *catalog.Service, sales repository.SaleRepository) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		sales:   sales,
	}
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) Restock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "quantity must be an integer")
		return
	}

	if err := h.catalog.Restock(r.Context(), productID, quantity); err != nil {
		switch {
		case errors.Is(err, catalog.ErrInvalidQuantity):
			respondError(w, http.StatusBadRequest, "quantity must be greater than 0")
		case errors.Is(err, repository.ErrProductNotFound):
			respondError(w, http.StatusNotFound, "Product not found")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to restock")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Product restocked successfully"})
}

func (h *CatalogHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	sales, err := h.sales.ListSales(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list sales")
		return
	}
	respondJSON(w, http.StatusOK, sales)
}

func (h *CatalogHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.sales.GetAnalytics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute analytics")
		return
	}
	respondJSON(w, http.StatusOK, analytics)
}

// StatusHandler reports liveness details for the monitor page.
type StatusHandler struct {
	hub   *ws.Hub
	store *cart.Store
}

func NewStatusHandler(hub *ws.Hub, store *cart.Store) *StatusHandler {
	return &StatusHandler{hub: hub, store: store}
}

func (h *StatusHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "online",
		"timestamp":          time.Now().Format(time.RFC3339),
		"active_connections": h.hub.Count(),
		"cart_items":         h.store.Summary().TotalItems,
	})
}
