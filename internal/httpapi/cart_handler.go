package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TheKaito2/Hybrid-complete/internal/cart"
	"github.com/TheKaito2/Hybrid-complete/internal/catalog"
	"github.com/TheKaito2/Hybrid-complete/internal/domain"
	"github.com/TheKaito2/Hybrid-complete/internal/repository"
)

type CartHandler struct {
	store   *cart.Store
	catalog *catalog.Service
}

func NewCartHandler(store *cart.Store, catalog *catalog.Service) *CartHandler {
	return &CartHandler{
		store:   store,
		catalog: catalog,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type BatchRequestDTO struct {
	Items []AddItemRequestDTO `json:"items"`
}

type CartMutationResponse struct {
	Success     bool               `json:"success"`
	Message     string             `json:"message,omitempty"`
	ItemsAdded  int                `json:"items_added,omitempty"`
	Errors      []string           `json:"errors,omitempty"`
	CartSummary domain.CartSummary `json:"cart_summary"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.store.Summary())
}

func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "product_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "quantity must be greater than 0")
		return
	}

	product, err := h.catalog.Lookup(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("Product %s not found", req.ProductID))
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to look up product")
		return
	}

	if err := h.catalog.CheckStock(product, req.Quantity); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.store.Add(*product, req.Quantity)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, CartMutationResponse{
		Success:     true,
		Message:     fmt.Sprintf("Added %dx %s to cart", req.Quantity, product.Name),
		ItemsAdded:  req.Quantity,
		CartSummary: summary,
	})
}

func (h *CartHandler) AddBatchToCart(w http.ResponseWriter, r *http.Request) {
	var req BatchRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var resolved []cart.BatchItem
	var itemErrors []string
	for _, item := range req.Items {
		quantity := item.Quantity
		if quantity == 0 {
			quantity = 1
		}
		if quantity < 0 {
			itemErrors = append(itemErrors, fmt.Sprintf("invalid quantity for %s", item.ProductID))
			continue
		}

		product, err := h.catalog.Lookup(r.Context(), item.ProductID)
		if err != nil {
			itemErrors = append(itemErrors, fmt.Sprintf("Product %s not found", item.ProductID))
			continue
		}
		if err := h.catalog.CheckStock(product, quantity); err != nil {
			itemErrors = append(itemErrors, err.Error())
			continue
		}
		resolved = append(resolved, cart.BatchItem{Product: *product, Quantity: quantity})
	}

	summary, added := h.store.AddBatch(resolved)
	respondJSON(w, http.StatusOK, CartMutationResponse{
		Success:     added > 0,
		ItemsAdded:  added,
		Errors:      itemErrors,
		CartSummary: summary,
	})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	// Removing an absent item is an idempotent no-op, not an error.
	summary, _ := h.store.RemoveOne(productID)
	respondJSON(w, http.StatusOK, CartMutationResponse{
		Success:     true,
		Message:     "Removed item from cart",
		CartSummary: summary,
	})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	respondJSON(w, http.StatusOK, CartMutationResponse{
		Success:     true,
		Message:     "Cart cleared",
		CartSummary: h.store.Summary(),
	})
}
