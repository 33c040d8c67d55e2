package domain

import "context"

// ProductCatalog — узкий интерфейс к каталогу товаров. Каталог принадлежит
// внешнему сервису; ядро только читает его.
type ProductCatalog interface {
	// GetProduct возвращает товар или NotFoundError.
	GetProduct(ctx context.Context, id string) (Product, error)
}

// StockStore владеет складскими полями товара. Обе операции обязаны быть
// одной неделимой условной записью в хранилище: никакого read-then-write
// в два обращения.
type StockStore interface {
	// DecrementStock атомарно проверяет remaining_stock >= qty и, если так,
	// уменьшает остаток и увеличивает счётчик проданного. Возвращает
	// InsufficientStockError при нехватке, NotFoundError если товара нет.
	DecrementStock(ctx context.Context, productID string, qty int32) error
	// Restock возвращает qty единиц на склад; используется только как
	// компенсация отката. Остаток не превышает TotalStock, продажи не
	// уходят в минус.
	Restock(ctx context.Context, productID string, qty int32) error
}

// CartRepository хранит корзины, по одной на пользователя.
type CartRepository interface {
	// GetByUser возвращает корзину пользователя или NotFoundError.
	GetByUser(ctx context.Context, userID string) (Cart, error)
	// Create сохраняет новую корзину; повторное создание для того же
	// пользователя возвращает ErrVersionConflict.
	Create(ctx context.Context, cart Cart) error
	// Save перезаписывает состав и сумму корзины.
	Save(ctx context.Context, cart Cart) error
}

// OrderRepository хранит заказы. Заказы append-only: физическое удаление —
// только явное административное действие.
type OrderRepository interface {
	Create(ctx context.Context, order Order) error
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	// Save перезаписывает заказ с проверкой версии (optimistic locking).
	Save(ctx context.Context, order Order) error
	Delete(ctx context.Context, id string) error
}
