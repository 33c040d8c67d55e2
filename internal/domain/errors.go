package domain

import (
	"errors"
	"fmt"
)

// ErrVersionConflict сигнализирует о проигранной optimistic-гонке при сохранении.
var ErrVersionConflict = errors.New("version conflict")

// NotFoundError возвращается, когда сущность не найдена в хранилище или каталоге.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError описывает нарушение бизнес-правила во входных данных.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InsufficientStockError возвращается, когда остатка товара не хватает на запрошенное количество.
type InsufficientStockError struct {
	ProductID string
	Available int32
	Requested int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// InactiveProductError возвращается при попытке заказать снятый с продажи товар.
type InactiveProductError struct {
	ProductID string
}

func (e *InactiveProductError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

// ConcurrentModificationError — конкурентное обновление обогнало текущий запрос.
// Вызывающая сторона может повторить попытку.
type ConcurrentModificationError struct {
	Entity string
	ID     string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}

func (e *ConcurrentModificationError) Unwrap() error {
	return ErrVersionConflict
}

// StorageError оборачивает инфраструктурную ошибку хранилища. Наружу уходит
// только общий текст; причина остаётся в логах. Ядро такие ошибки не ретраит:
// политика повторов принадлежит вызывающей стороне.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound проверяет, является ли ошибка отсутствием сущности.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInsufficientStock проверяет, является ли ошибка нехваткой остатка.
func IsInsufficientStock(err error) bool {
	var is *InsufficientStockError
	return errors.As(err, &is)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
