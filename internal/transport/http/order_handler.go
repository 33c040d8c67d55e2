package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

const idempotencyKeyHeader = "Idempotency-Key"

const defaultOrderListLimit = 50

// OrderHandler обслуживает оформление и жизненный цикл заказов.
type OrderHandler struct {
	asm    *checkout.Assembler
	logger *log.Entry
}

func NewOrderHandler(asm *checkout.Assembler, logger *log.Entry) *OrderHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http-order")
	}
	return &OrderHandler{asm: asm, logger: logger}
}

type placeOrderRequest struct {
	Items []struct {
		ProductID string `json:"productId"`
		Quantity  int32  `json:"quantity"`
	} `json:"items"`
	ShippingAddress string `json:"shippingAddress"`
	PaymentMethod   string `json:"paymentMethod"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderLineDTO struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Price       int64  `json:"price"`
	Quantity    int32  `json:"quantity"`
	Subtotal    int64  `json:"subtotal"`
}

type orderDTO struct {
	ID              string         `json:"id"`
	UserID          string         `json:"userId"`
	Items           []orderLineDTO `json:"items"`
	SubtotalAmount  int64          `json:"subtotalAmount"`
	DeliveryCharge  int64          `json:"deliveryCharge"`
	TotalAmount     int64          `json:"totalAmount"`
	Status          string         `json:"status"`
	ShippingAddress string         `json:"shippingAddress"`
	PaymentMethod   string         `json:"paymentMethod"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type orderResponse struct {
	Order orderDTO `json:"order"`
}

type ordersResponse struct {
	Orders []orderDTO `json:"orders"`
}

// Create обрабатывает POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	items := make([]checkout.LineRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, checkout.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := h.asm.PlaceOrder(
		r.Context(),
		userIDFromContext(r.Context()),
		items,
		req.ShippingAddress,
		req.PaymentMethod,
		r.Header.Get(idempotencyKeyHeader),
	)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, orderResponse{Order: toOrderDTO(order)})
}

// List обрабатывает GET /orders — заказы текущего пользователя, новые первыми.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.asm.ListByUser(r.Context(), userIDFromContext(r.Context()), defaultOrderListLimit)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	dtos := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, toOrderDTO(o))
	}
	respondJSON(w, http.StatusOK, ordersResponse{Orders: dtos})
}

// Get обрабатывает GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.asm.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orderResponse{Order: toOrderDTO(order)})
}

// UpdateStatus обрабатывает PATCH /orders/{id}.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	order, err := h.asm.UpdateStatus(r.Context(), chi.URLParam(r, "id"), domain.OrderStatus(req.Status))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orderResponse{Order: toOrderDTO(order)})
}

// Delete обрабатывает DELETE /orders/{id} — физическое удаление заказа.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.asm.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "order removed"})
}

func toOrderDTO(o domain.Order) orderDTO {
	items := make([]orderLineDTO, 0, len(o.Lines))
	for _, line := range o.Lines {
		items = append(items, orderLineDTO{
			ID:          line.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Price:       line.UnitPriceMinor,
			Quantity:    line.Quantity,
			Subtotal:    line.SubtotalMinor,
		})
	}
	return orderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		SubtotalAmount:  o.SubtotalAmountMinor,
		DeliveryCharge:  o.DeliveryChargeMinor,
		TotalAmount:     o.TotalAmountMinor,
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
