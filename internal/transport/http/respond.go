package http

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/idempotency"
)

// errorPayload — единый формат тела ошибки. Бизнес-ошибки несут детали,
// инфраструктурные — только общий текст.
type errorPayload struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Available *int32 `json:"available,omitempty"`
	Requested *int32 `json:"requested,omitempty"`
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, errorBody{Error: errorPayload{Kind: kind, Message: message}})
}

// writeDomainError отображает таксономию ошибок ядра на HTTP-статусы:
// not found → 404, бизнес-правила → 400, проигранная гонка → 409,
// хранилище → 503 (детали только в логах).
func writeDomainError(w http.ResponseWriter, logger *log.Entry, err error) {
	var (
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
		stock      *domain.InsufficientStockError
		inactive   *domain.InactiveProductError
		concurrent *domain.ConcurrentModificationError
		storage    *domain.StorageError
	)

	switch {
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, "not_found", notFound.Error())
	case errors.As(err, &stock):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: errorPayload{
			Kind:      "insufficient_stock",
			Message:   stock.Error(),
			ProductID: stock.ProductID,
			Available: &stock.Available,
			Requested: &stock.Requested,
		}})
	case errors.As(err, &inactive):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: errorPayload{
			Kind:      "inactive_product",
			Message:   inactive.Error(),
			ProductID: inactive.ProductID,
		}})
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: errorPayload{
			Kind:    "validation",
			Message: validation.Error(),
			Field:   validation.Field,
		}})
	case errors.As(err, &concurrent):
		respondError(w, http.StatusConflict, "conflict", concurrent.Error())
	case errors.Is(err, idempotency.ErrDuplicateRequest):
		respondError(w, http.StatusConflict, "duplicate_request", "request with this idempotency key was already accepted")
	case errors.As(err, &storage):
		logger.WithError(err).Error("storage failure")
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage is temporarily unavailable")
	default:
		logger.WithError(err).Error("unhandled error")
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
