// Package cart реализует корзину пользователя. Корзина хранит только пары
// {productId, quantity}; всё остальное — имя, картинка, цены, доставка —
// подтягивается из каталога при каждом чтении, чтобы не отдавать устаревшие
// данные. Сумма корзины всегда пересчитывается по живым ценам.
package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
)

// Service — агрегат корзины. Мутации одного пользователя сериализуются
// per-user замком: две конкурирующие добавки одного товара складываются, а
// не теряются.
type Service struct {
	catalog domain.ProductCatalog
	carts   domain.CartRepository
	ledger  *inventory.Ledger
	locks   *inventory.KeyedMutex
	logger  *log.Entry
	metrics *metrics.CommerceMetrics
}

// NewService конструирует сервис корзины. metrics может быть nil (тесты).
func NewService(
	catalog domain.ProductCatalog,
	carts domain.CartRepository,
	ledger *inventory.Ledger,
	m *metrics.CommerceMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "cart")
	}
	return &Service{
		catalog: catalog,
		carts:   carts,
		ledger:  ledger,
		locks:   inventory.NewKeyedMutex(),
		logger:  logger,
		metrics: m,
	}
}

// View — корзина, гидратированная текущими данными каталога.
type View struct {
	ID               string     `json:"id"`
	Items            []LineView `json:"items"`
	TotalAmountMinor int64      `json:"totalAmount"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// LineView — позиция корзины с живой раскладкой цены.
type LineView struct {
	ProductID            string `json:"productId"`
	ProductName          string `json:"productName"`
	ImageURL             string `json:"image,omitempty"`
	Quantity             int32  `json:"quantity"`
	UnitPriceMinor       int64  `json:"price"`
	OriginalPriceMinor   int64  `json:"originalPrice"`
	DiscountedPriceMinor int64  `json:"discountedPrice"`
	DeliveryChargeMinor  int64  `json:"deliveryCharge"`
	LineTotalMinor       int64  `json:"totalPrice"`
}

// GetOrCreate возвращает корзину пользователя, лениво создавая её при первом
// обращении. Идемпотентно: повторные вызовы никогда не создают вторую корзину.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := s.carts.GetByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !domain.IsNotFound(err) {
		return domain.Cart{}, err
	}

	now := time.Now().UTC()
	cart = domain.Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		Lines:     []domain.CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.carts.Create(ctx, cart); err != nil {
		// Проиграли гонку ленивого создания — корзина уже есть.
		if domain.IsVersionConflict(err) {
			return s.carts.GetByUser(ctx, userID)
		}
		return domain.Cart{}, err
	}
	return cart, nil
}

// Get возвращает гидратированное представление корзины.
func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return s.hydrate(ctx, cart)
}

// AddItem добавляет qty единиц товара, сливая с существующей позицией.
// Доступность проверяется против итогового количества в корзине.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int32) (View, error) {
	if qty < 1 {
		return View{}, &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return View{}, err
	}

	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return View{}, err
	}

	merged := qty
	if line := cart.Line(productID); line != nil {
		merged += line.Quantity
	}

	ok, err := s.ledger.CheckAvailability(ctx, productID, merged)
	if err != nil {
		return View{}, err
	}
	if !ok {
		return View{}, &domain.InsufficientStockError{
			ProductID: productID,
			Available: product.RemainingStock,
			Requested: merged,
		}
	}

	if line := cart.Line(productID); line != nil {
		line.Quantity = merged
	} else {
		cart.Lines = append(cart.Lines, domain.CartLine{ProductID: productID, Quantity: qty})
	}

	view, err := s.persist(ctx, cart)
	if err != nil {
		return View{}, err
	}
	s.recordMutation("add")
	return view, nil
}

// UpdateItem заменяет количество существующей позиции.
func (s *Service) UpdateItem(ctx context.Context, userID, productID string, qty int32) (View, error) {
	if qty < 1 {
		return View{}, &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return View{}, err
	}

	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return View{}, err
	}

	line := cart.Line(productID)
	if line == nil {
		return View{}, &domain.NotFoundError{Entity: "cart item", ID: productID}
	}

	ok, err := s.ledger.CheckAvailability(ctx, productID, qty)
	if err != nil {
		return View{}, err
	}
	if !ok {
		return View{}, &domain.InsufficientStockError{
			ProductID: productID,
			Available: product.RemainingStock,
			Requested: qty,
		}
	}

	line.Quantity = qty

	view, err := s.persist(ctx, cart)
	if err != nil {
		return View{}, err
	}
	s.recordMutation("update")
	return view, nil
}

// RemoveItem удаляет позицию и пересчитывает сумму по оставшимся.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (View, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return View{}, err
	}

	if !cart.RemoveLine(productID) {
		return View{}, &domain.NotFoundError{Entity: "cart item", ID: productID}
	}

	view, err := s.persist(ctx, cart)
	if err != nil {
		return View{}, err
	}
	s.recordMutation("remove")
	return view, nil
}

// Clear опустошает корзину и обнуляет сумму.
func (s *Service) Clear(ctx context.Context, userID string) (View, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return View{}, err
	}

	cart.Lines = []domain.CartLine{}
	cart.TotalAmountMinor = 0
	cart.UpdatedAt = time.Now().UTC()
	if err := s.carts.Save(ctx, cart); err != nil {
		return View{}, err
	}
	s.recordMutation("clear")

	return View{
		ID:        cart.ID,
		Items:     []LineView{},
		UpdatedAt: cart.UpdatedAt,
	}, nil
}

// persist пересчитывает сумму по живым ценам, сохраняет корзину и возвращает
// гидратированное представление.
func (s *Service) persist(ctx context.Context, cart domain.Cart) (View, error) {
	products, err := s.loadProducts(ctx, cart.Lines)
	if err != nil {
		return View{}, err
	}

	total, err := pricing.CartTotal(cart.Lines, products)
	if err != nil {
		return View{}, err
	}

	cart.TotalAmountMinor = total
	cart.UpdatedAt = time.Now().UTC()
	if err := s.carts.Save(ctx, cart); err != nil {
		return View{}, err
	}

	return buildView(cart, products), nil
}

// hydrate строит представление без сохранения (чистое чтение).
func (s *Service) hydrate(ctx context.Context, cart domain.Cart) (View, error) {
	products, err := s.loadProducts(ctx, cart.Lines)
	if err != nil {
		return View{}, err
	}

	// Сумма считается на лету: документ корзины не источник истины для цен.
	total, err := pricing.CartTotal(cart.Lines, products)
	if err != nil {
		return View{}, err
	}
	cart.TotalAmountMinor = total

	return buildView(cart, products), nil
}

func (s *Service) loadProducts(ctx context.Context, lines []domain.CartLine) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(lines))
	for _, line := range lines {
		p, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		products[line.ProductID] = p
	}
	return products, nil
}

func buildView(cart domain.Cart, products map[string]domain.Product) View {
	items := make([]LineView, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		p := products[line.ProductID]
		unit := pricing.EffectiveUnitPrice(p)
		items = append(items, LineView{
			ProductID:            p.ID,
			ProductName:          p.Name,
			ImageURL:             p.ImageURL,
			Quantity:             line.Quantity,
			UnitPriceMinor:       unit,
			OriginalPriceMinor:   p.OriginalPriceMinor,
			DiscountedPriceMinor: p.DiscountedPriceMinor,
			DeliveryChargeMinor:  p.DeliveryChargeMinor,
			LineTotalMinor:       unit * int64(line.Quantity),
		})
	}

	return View{
		ID:               cart.ID,
		Items:            items,
		TotalAmountMinor: cart.TotalAmountMinor,
		UpdatedAt:        cart.UpdatedAt,
	}
}

func (s *Service) recordMutation(op string) {
	if s.metrics != nil {
		s.metrics.RecordCartMutation(op)
	}
}
