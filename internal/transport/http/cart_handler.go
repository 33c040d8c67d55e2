package http

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
)

// CartHandler обслуживает эндпоинты корзины. Пользователь берётся из
// контекста, положенного RequireUser.
type CartHandler struct {
	svc    *cart.Service
	logger *log.Entry
}

func NewCartHandler(svc *cart.Service, logger *log.Entry) *CartHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http-cart")
	}
	return &CartHandler{svc: svc, logger: logger}
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
}

type cartResponse struct {
	Cart cart.View `json:"cart"`
}

// Get обрабатывает GET /cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: view})
}

// Add обрабатывает POST /cart/add.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeItem(w, r)
	if !ok {
		return
	}

	view, err := h.svc.AddItem(r.Context(), userIDFromContext(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse{Cart: view})
}

// Update обрабатывает PATCH /cart/update.
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeItem(w, r)
	if !ok {
		return
	}

	view, err := h.svc.UpdateItem(r.Context(), userIDFromContext(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: view})
}

// Remove обрабатывает DELETE /cart/remove.
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeItem(w, r)
	if !ok {
		return
	}

	view, err := h.svc.RemoveItem(r.Context(), userIDFromContext(r.Context()), req.ProductID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: view})
}

// Clear обрабатывает DELETE /cart/clear.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Clear(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: view})
}

func (h *CartHandler) decodeItem(w http.ResponseWriter, r *http.Request) (cartItemRequest, bool) {
	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation", "invalid request body")
		return cartItemRequest{}, false
	}
	if req.ProductID == "" {
		writeDomainError(w, h.logger, &domain.ValidationError{Field: "productId", Reason: "is required"})
		return cartItemRequest{}, false
	}
	return req, true
}
