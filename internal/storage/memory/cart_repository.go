package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// cartRepositoryInMemory — простая in-memory реализация CartRepository.
// Ключ — userID: корзина одна на пользователя.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Cart
}

// NewCartRepository возвращает in-memory репозиторий корзин.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{
		items: make(map[string]domain.Cart),
	}
}

// GetByUser возвращает корзину пользователя или NotFoundError.
func (r *cartRepositoryInMemory) GetByUser(_ context.Context, userID string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.items[userID]
	if !ok {
		return domain.Cart{}, &domain.NotFoundError{Entity: "cart", ID: userID}
	}
	return cloneCart(cart), nil
}

// Create сохраняет новую корзину, если у пользователя её ещё нет.
func (r *cartRepositoryInMemory) Create(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[cart.UserID]; exists {
		return domain.ErrVersionConflict
	}
	r.items[cart.UserID] = cloneCart(cart)
	return nil
}

// Save перезаписывает состав и сумму корзины.
func (r *cartRepositoryInMemory) Save(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[cart.UserID]; !ok {
		return &domain.NotFoundError{Entity: "cart", ID: cart.UserID}
	}
	r.items[cart.UserID] = cloneCart(cart)
	return nil
}

// cloneCart копирует корзину вместе с позициями, чтобы избежать
// непредсказуемых мутаций извне.
func cloneCart(cart domain.Cart) domain.Cart {
	lines := make([]domain.CartLine, len(cart.Lines))
	copy(lines, cart.Lines)
	cart.Lines = lines
	return cart
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
