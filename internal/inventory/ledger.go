// Package inventory владеет складским инвариантом товара:
// 0 <= remaining_stock <= total_stock. Остаток мутируется только здесь и
// только одной условной записью за обращение.
package inventory

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Ledger — единственная точка входа для проверки и изменения остатков.
type Ledger struct {
	catalog domain.ProductCatalog
	stock   domain.StockStore
	logger  *log.Entry
}

// NewLedger создаёт леджер поверх каталога и складского хранилища.
func NewLedger(catalog domain.ProductCatalog, stock domain.StockStore, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "inventory")
	}
	return &Ledger{
		catalog: catalog,
		stock:   stock,
		logger:  logger,
	}
}

// CheckAvailability сообщает, можно ли продать qty единиц товара: товар
// активен и остатка хватает. Ничего не мутирует.
func (l *Ledger) CheckAvailability(ctx context.Context, productID string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, &domain.ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}

	product, err := l.catalog.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}

	return product.IsActive && product.RemainingStock >= qty, nil
}

// ReserveAndDecrement атомарно резервирует qty единиц: остаток уменьшается,
// счётчик проданного растёт, всё одной условной записью хранилища. При
// нехватке возвращается InsufficientStockError, и ничего не меняется.
func (l *Ledger) ReserveAndDecrement(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return &domain.ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}

	if err := l.stock.DecrementStock(ctx, productID, qty); err != nil {
		if domain.IsInsufficientStock(err) {
			l.logger.WithFields(log.Fields{
				"product_id": productID,
				"qty":        qty,
			}).Debug("reserve rejected, insufficient stock")
		}
		return err
	}
	return nil
}

// Restock возвращает qty единиц на склад. Это компенсирующее действие отката
// оформления заказа; пользователям оно не выставляется.
func (l *Ledger) Restock(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return &domain.ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}

	if err := l.stock.Restock(ctx, productID, qty); err != nil {
		l.logger.WithError(err).WithFields(log.Fields{
			"product_id": productID,
			"qty":        qty,
		}).Error("restock failed")
		return err
	}
	return nil
}
