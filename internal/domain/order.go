package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid — оплата подтверждена оператором.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен; терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён до отгрузки; терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid сообщает, известен ли статус.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransition проверяет допустимость перехода статуса: строго вперёд по
// одному шагу (pending → paid → shipped → delivered) либо отмена из
// pending/paid. Из delivered и cancelled выходов нет.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderStatusPending:
		return to == OrderStatusPaid || to == OrderStatusCancelled
	case OrderStatusPaid:
		return to == OrderStatusShipped || to == OrderStatusCancelled
	case OrderStatusShipped:
		return to == OrderStatusDelivered
	}
	return false
}

// OrderLine — снимок позиции на момент оформления. Имя и цена копируются из
// каталога при создании заказа и больше никогда не пересчитываются, даже если
// товар подорожает или будет переименован.
type OrderLine struct {
	ID             string
	ProductID      string
	ProductName    string
	UnitPriceMinor int64
	Quantity       int32
	SubtotalMinor  int64
}

// Order — оформленный заказ. После создания неизменяем, кроме поля Status.
type Order struct {
	ID     string
	UserID string
	// Lines — упорядоченная последовательность снимков позиций.
	Lines               []OrderLine
	SubtotalAmountMinor int64
	DeliveryChargeMinor int64
	// TotalAmountMinor = SubtotalAmountMinor + DeliveryChargeMinor.
	TotalAmountMinor int64
	Status           OrderStatus
	ShippingAddress  string
	PaymentMethod    string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, &ValidationError{Field: "userId", Reason: "is required"})
	}
	if len(o.Lines) == 0 {
		errs = append(errs, &ValidationError{Field: "items", Reason: "order must contain at least one item"})
	}
	if o.ShippingAddress == "" {
		errs = append(errs, &ValidationError{Field: "shippingAddress", Reason: "is required"})
	}
	if !o.Status.Valid() {
		errs = append(errs, &ValidationError{Field: "status", Reason: "unknown status"})
	}

	// Сверяем сумму заказа с суммой позиций: qty * unit price.
	var calc int64
	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, &ValidationError{Field: "quantity", Reason: "must be greater than zero"})
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, &ValidationError{Field: "unitPrice", Reason: "must be non-negative"})
		}
		if line.SubtotalMinor != int64(line.Quantity)*line.UnitPriceMinor {
			errs = append(errs, &ValidationError{Field: "subtotal", Reason: "does not match quantity * unit price"})
		}
		calc += line.SubtotalMinor
	}
	if calc != o.SubtotalAmountMinor {
		errs = append(errs, &ValidationError{Field: "subtotalAmount", Reason: "does not match lines sum"})
	}
	if o.TotalAmountMinor != o.SubtotalAmountMinor+o.DeliveryChargeMinor {
		errs = append(errs, &ValidationError{Field: "totalAmount", Reason: "does not match subtotal + delivery charge"})
	}

	return errs
}
