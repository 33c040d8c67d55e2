package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productRepositoryInMemory — in-memory каталог и складское хранилище для
// локальной разработки и тестов. Проверка и запись остатка выполняются под
// одним эксклюзивным r.mu, поэтому условная запись неделима.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// ProductRepository совмещает каталог и складское хранилище.
type ProductRepository interface {
	domain.ProductCatalog
	domain.StockStore
	Put(product domain.Product)
}

// NewProductRepository возвращает in-memory реализацию каталога и склада.
func NewProductRepository() ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Put сохраняет товар; используется сидированием и тестами.
func (r *productRepositoryInMemory) Put(product domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = time.Now().UTC()
	r.items[product.ID] = product
}

// GetProduct возвращает товар или NotFoundError.
func (r *productRepositoryInMemory) GetProduct(_ context.Context, id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, &domain.NotFoundError{Entity: "product", ID: id}
	}
	return product, nil
}

// DecrementStock атомарно проверяет остаток и списывает qty единиц.
// Проверка и запись неразделимы — lost update невозможен.
func (r *productRepositoryInMemory) DecrementStock(_ context.Context, productID string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[productID]
	if !ok {
		return &domain.NotFoundError{Entity: "product", ID: productID}
	}
	if product.RemainingStock < qty {
		return &domain.InsufficientStockError{
			ProductID: productID,
			Available: product.RemainingStock,
			Requested: qty,
		}
	}

	product.RemainingStock -= qty
	product.SoldQuantity += qty
	product.UpdatedAt = time.Now().UTC()
	r.items[productID] = product
	return nil
}

// Restock возвращает qty единиц; остаток не превышает TotalStock, а продажи
// не уходят в минус.
func (r *productRepositoryInMemory) Restock(_ context.Context, productID string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[productID]
	if !ok {
		return &domain.NotFoundError{Entity: "product", ID: productID}
	}

	product.RemainingStock += qty
	if product.RemainingStock > product.TotalStock {
		product.RemainingStock = product.TotalStock
	}
	product.SoldQuantity -= qty
	if product.SoldQuantity < 0 {
		product.SoldQuantity = 0
	}
	product.UpdatedAt = time.Now().UTC()
	r.items[productID] = product
	return nil
}

var _ ProductRepository = (*productRepositoryInMemory)(nil)
