// Package checkout собирает неизменяемый заказ из запрошенного списка позиций.
// Хранилище не умеет транзакций на несколько документов, поэтому оформление —
// двухпроходный алгоритм: сначала валидация без мутаций, затем фиксация с
// компенсирующим restock при провале. Частично оформленный заказ не
// сохраняется никогда.
package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
)

// defaultPaymentMethod подставляется, когда клиент не указал способ оплаты.
const defaultPaymentMethod = "Cash on Delivery"

// LineRequest — запрошенная позиция оформления.
type LineRequest struct {
	ProductID string
	Quantity  int32
}

// CartClearer опустошает корзину после успешного оформления. Выделен в
// интерфейс, чтобы тесты могли наблюдать best-effort шаг.
type CartClearer interface {
	Clear(ctx context.Context, userID string) (cart.View, error)
}

// Assembler превращает список позиций в оформленный заказ, координируя
// резервирование остатков через Ledger.
type Assembler struct {
	catalog  domain.ProductCatalog
	ledger   *inventory.Ledger
	orders   domain.OrderRepository
	carts    CartClearer            // best-effort очистка; может быть nil
	producer *kafka.Producer        // опциональный producer событий
	guard    idempotency.Guard      // опциональная защита от дублей
	metrics  *metrics.CommerceMetrics
	logger   *log.Entry
}

// NewAssembler конструирует OrderAssembler. carts, producer, guard и metrics
// могут быть nil.
func NewAssembler(
	catalog domain.ProductCatalog,
	ledger *inventory.Ledger,
	orders domain.OrderRepository,
	carts CartClearer,
	producer *kafka.Producer,
	guard idempotency.Guard,
	m *metrics.CommerceMetrics,
	logger *log.Entry,
) *Assembler {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &Assembler{
		catalog:  catalog,
		ledger:   ledger,
		orders:   orders,
		carts:    carts,
		producer: producer,
		guard:    guard,
		metrics:  m,
		logger:   logger,
	}
}

// validatedLine — результат валидационного прохода по одной позиции.
type validatedLine struct {
	product        domain.Product
	quantity       int32
	unitPriceMinor int64
}

// PlaceOrder оформляет заказ. idemKey — необязательный ключ идемпотентности
// из запроса; пустая строка отключает защиту для этого вызова.
func (a *Assembler) PlaceOrder(
	ctx context.Context,
	userID string,
	items []LineRequest,
	shippingAddress string,
	paymentMethod string,
	idemKey string,
) (domain.Order, error) {
	start := time.Now()
	if a.metrics != nil {
		a.metrics.RecordCheckoutStarted()
		defer func() {
			a.metrics.RecordCheckoutFinished()
			a.metrics.RecordCheckoutDuration(time.Since(start))
		}()
	}

	if len(items) == 0 {
		return domain.Order{}, a.reject("empty_items", &domain.ValidationError{
			Field: "items", Reason: "order must contain at least one item",
		})
	}
	if shippingAddress == "" {
		return domain.Order{}, a.reject("missing_address", &domain.ValidationError{
			Field: "shippingAddress", Reason: "is required",
		})
	}

	if a.guard != nil && idemKey != "" {
		acquired, err := a.guard.Acquire(ctx, idemKey)
		if err != nil {
			// Сбой guard не блокирует оформление: защита от дублей
			// best-effort, как и публикация событий.
			a.logger.WithError(err).Warn("idempotency guard unavailable, proceeding")
		} else if !acquired {
			return domain.Order{}, idempotency.ErrDuplicateRequest
		}
	}

	validated, err := a.validate(ctx, items)
	if err != nil {
		return domain.Order{}, err
	}

	// Фиксация выполняется до конца независимо от отмены запроса: после
	// первого списания каждый выход отсюда — либо заказ, либо полный откат.
	commitCtx := context.WithoutCancel(ctx)

	if err := a.commit(commitCtx, validated); err != nil {
		return domain.Order{}, err
	}

	order := a.buildOrder(userID, validated, shippingAddress, paymentMethod)
	if err := a.orders.Create(commitCtx, order); err != nil {
		a.logger.WithError(err).WithField("user_id", userID).Error("failed to persist order, compensating")
		a.rollback(commitCtx, validated, len(validated))
		return domain.Order{}, &domain.StorageError{Op: "create order", Err: err}
	}

	if a.metrics != nil {
		a.metrics.RecordCheckoutCompleted()
	}
	a.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  userID,
		"lines":    len(order.Lines),
		"total":    order.TotalAmountMinor,
	}).Info("order placed")

	a.publishEvent(kafka.EventTypeOrderCreated, order, map[string]interface{}{
		"total_amount": order.TotalAmountMinor,
		"lines_count":  len(order.Lines),
	})

	// Очистка корзины — отдельный best-effort шаг: её провал не делает заказ
	// недействительным.
	if a.carts != nil {
		if _, err := a.carts.Clear(commitCtx, userID); err != nil {
			a.logger.WithError(err).WithField("user_id", userID).Warn("failed to clear cart after checkout")
		}
	}

	return order, nil
}

// validate — первый проход: только чтение. Любая негодная позиция прерывает
// оформление до каких-либо мутаций.
func (a *Assembler) validate(ctx context.Context, items []LineRequest) ([]validatedLine, error) {
	validated := make([]validatedLine, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, a.reject("invalid_quantity", &domain.ValidationError{
				Field: "quantity", Reason: "must be at least 1",
			})
		}

		product, err := a.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			if domain.IsNotFound(err) {
				return nil, a.reject("product_not_found", err)
			}
			return nil, err
		}
		if !product.IsActive {
			return nil, a.reject("inactive_product", &domain.InactiveProductError{ProductID: product.ID})
		}

		ok, err := a.ledger.CheckAvailability(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, a.reject("insufficient_stock", &domain.InsufficientStockError{
				ProductID: product.ID,
				Available: product.RemainingStock,
				Requested: item.Quantity,
			})
		}

		validated = append(validated, validatedLine{
			product:        product,
			quantity:       item.Quantity,
			unitPriceMinor: pricing.EffectiveUnitPrice(product),
		})
	}
	return validated, nil
}

// commit — второй проход: по одному атомарному списанию на позицию. Если
// какое-то списание проигрывает конкурентному заказу, всё уже списанное в
// этом проходе возвращается компенсирующим restock.
func (a *Assembler) commit(ctx context.Context, validated []validatedLine) error {
	for i, line := range validated {
		if err := a.ledger.ReserveAndDecrement(ctx, line.product.ID, line.quantity); err != nil {
			a.rollback(ctx, validated, i)
			if domain.IsInsufficientStock(err) {
				if a.metrics != nil {
					a.metrics.RecordStockConflict()
				}
				a.logger.WithFields(log.Fields{
					"product_id": line.product.ID,
					"qty":        line.quantity,
				}).Warn("stock consumed by concurrent order, checkout rolled back")
			}
			return err
		}
	}
	return nil
}

// rollback возвращает на склад первые n списанных позиций.
func (a *Assembler) rollback(ctx context.Context, validated []validatedLine, n int) {
	if n == 0 {
		return
	}
	if a.metrics != nil {
		a.metrics.RecordCheckoutRolledBack()
	}
	for _, line := range validated[:n] {
		if err := a.ledger.Restock(ctx, line.product.ID, line.quantity); err != nil {
			// Restock лишь логирует: оставшиеся компенсации всё равно нужны.
			a.logger.WithError(err).WithField("product_id", line.product.ID).Error("compensating restock failed")
		}
	}
}

// buildOrder замораживает снимки позиций: цена и имя фиксируются на момент
// оформления и не пересчитываются при последующих изменениях каталога.
func (a *Assembler) buildOrder(userID string, validated []validatedLine, shippingAddress, paymentMethod string) domain.Order {
	now := time.Now().UTC()
	lines := make([]domain.OrderLine, 0, len(validated))
	var subtotal, delivery int64
	for _, v := range validated {
		lineSubtotal := v.unitPriceMinor * int64(v.quantity)
		subtotal += lineSubtotal
		delivery += v.product.DeliveryChargeMinor
		lines = append(lines, domain.OrderLine{
			ID:             uuid.NewString(),
			ProductID:      v.product.ID,
			ProductName:    v.product.Name,
			UnitPriceMinor: v.unitPriceMinor,
			Quantity:       v.quantity,
			SubtotalMinor:  lineSubtotal,
		})
	}

	if paymentMethod == "" {
		paymentMethod = defaultPaymentMethod
	}

	return domain.Order{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Lines:               lines,
		SubtotalAmountMinor: subtotal,
		DeliveryChargeMinor: delivery,
		TotalAmountMinor:    subtotal + delivery,
		Status:              domain.OrderStatusPending,
		ShippingAddress:     shippingAddress,
		PaymentMethod:       paymentMethod,
		Version:             0,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Get возвращает заказ по id.
func (a *Assembler) Get(ctx context.Context, orderID string) (domain.Order, error) {
	return a.orders.Get(ctx, orderID)
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (a *Assembler) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	return a.orders.ListByUser(ctx, userID, limit)
}

// UpdateStatus переводит заказ в новый статус, следуя машине состояний:
// строго вперёд по одному шагу либо отмена из pending/paid. Отмена НЕ
// возвращает остаток на склад: Restock остаётся компенсацией оформления,
// автоматического restock-on-cancel у витрины нет.
func (a *Assembler) UpdateStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus) (domain.Order, error) {
	if !newStatus.Valid() {
		return domain.Order{}, &domain.ValidationError{Field: "status", Reason: "unknown status"}
	}

	order, err := a.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if !domain.CanTransition(order.Status, newStatus) {
		return domain.Order{}, &domain.ValidationError{
			Field:  "status",
			Reason: "transition from " + string(order.Status) + " to " + string(newStatus) + " is not allowed",
		}
	}

	order.Status = newStatus
	order.UpdatedAt = time.Now().UTC()
	if err := a.orders.Save(ctx, order); err != nil {
		if domain.IsVersionConflict(err) {
			return domain.Order{}, &domain.ConcurrentModificationError{Entity: "order", ID: order.ID}
		}
		return domain.Order{}, err
	}
	order.Version++

	a.publishEvent(kafka.EventTypeOrderStatusChanged, order, nil)
	return order, nil
}

// Remove физически удаляет заказ; доступно только администратору.
func (a *Assembler) Remove(ctx context.Context, orderID string) error {
	order, err := a.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if err := a.orders.Delete(ctx, orderID); err != nil {
		return err
	}
	a.publishEvent(kafka.EventTypeOrderRemoved, order, nil)
	return nil
}

// publishEvent отправляет событие заказа, если producer настроен. Ошибка
// публикации логируется и не влияет на результат операции.
func (a *Assembler) publishEvent(eventType kafka.EventType, order domain.Order, metadata map[string]interface{}) {
	if a.producer == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.UserID, string(order.Status), metadata)
	if err := a.producer.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		a.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

// reject помечает отклонённое оформление в метриках и возвращает исходную ошибку.
func (a *Assembler) reject(reason string, err error) error {
	if a.metrics != nil {
		a.metrics.RecordCheckoutRejected(reason)
	}
	return err
}
