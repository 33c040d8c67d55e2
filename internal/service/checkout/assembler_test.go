package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	asm      *checkout.Assembler
	cartSvc  *cart.Service
	products memory.ProductRepository
	orders   domain.OrderRepository
}

type fixtureOpts struct {
	stock  domain.StockStore
	orders domain.OrderRepository
	guard  idempotency.Guard
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	products := memory.NewProductRepository()
	stock := opts.stock
	if stock == nil {
		stock = products
	}
	orders := opts.orders
	if orders == nil {
		orders = memory.NewOrderRepository()
	}

	ledger := inventory.NewLedger(products, stock, nil)
	cartSvc := cart.NewService(products, memory.NewCartRepository(), ledger, nil, nil)
	asm := checkout.NewAssembler(products, ledger, orders, cartSvc, nil, opts.guard, nil, nil)

	return &fixture{asm: asm, cartSvc: cartSvc, products: products, orders: orders}
}

func (f *fixture) seed(p domain.Product) {
	if p.Name == "" {
		p.Name = "product " + p.ID
	}
	if p.TotalStock == 0 {
		p.TotalStock = p.RemainingStock
	}
	f.products.Put(p)
}

func (f *fixture) remaining(t *testing.T, id string) int32 {
	t.Helper()
	p, err := f.products.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.RemainingStock
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(domain.Product{
		ID:                  "p1",
		OriginalPriceMinor:  2000,
		DeliveryChargeMinor: 500,
		RemainingStock:      5,
		IsActive:            true,
	})
	ctx := context.Background()

	order, err := f.asm.PlaceOrder(ctx, "user-1",
		[]checkout.LineRequest{{ProductID: "p1", Quantity: 3}},
		"12 Main St", "", "")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "Cash on Delivery", order.PaymentMethod)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, int64(2000), order.Lines[0].UnitPriceMinor)
	assert.Equal(t, int64(6000), order.SubtotalAmountMinor)
	assert.Equal(t, int64(500), order.DeliveryChargeMinor)
	assert.Equal(t, int64(6500), order.TotalAmountMinor)
	assert.Empty(t, order.ValidateInvariants())

	// Остаток списан, продажи выросли.
	p, err := f.products.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.RemainingStock)
	assert.Equal(t, int32(3), p.SoldQuantity)

	// Заказ сохранён.
	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.TotalAmountMinor, stored.TotalAmountMinor)
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	_, err := f.asm.PlaceOrder(context.Background(), "user-1", nil, "12 Main St", "", "")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "items", ve.Field)
}

func TestPlaceOrder_MissingAddress(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	_, err := f.asm.PlaceOrder(context.Background(), "user-1",
		[]checkout.LineRequest{{ProductID: "p1", Quantity: 1}}, "", "", "")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "shippingAddress", ve.Field)
}

func TestPlaceOrder_InactiveProduct_NoMutation(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 2000, RemainingStock: 5, IsActive: true})
	f.seed(domain.Product{ID: "p2", OriginalPriceMinor: 1000, RemainingStock: 5, IsActive: false})

	_, err := f.asm.PlaceOrder(context.Background(), "user-1",
		[]checkout.LineRequest{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		}, "12 Main St", "", "")

	var inactive *domain.InactiveProductError
	require.ErrorAs(t, err, &inactive)
	assert.Equal(t, "p2", inactive.ProductID)

	// Валидационный проход ничего не мутирует, даже годные позиции.
	assert.Equal(t, int32(5), f.remaining(t, "p1"))
	assert.Equal(t, int32(5), f.remaining(t, "p2"))
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 2000, RemainingStock: 2, IsActive: true})

	_, err := f.asm.PlaceOrder(context.Background(), "user-1",
		[]checkout.LineRequest{{ProductID: "p1", Quantity: 3}}, "12 Main St", "", "")

	var stock *domain.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, int32(2), stock.Available)
	assert.Equal(t, int32(3), stock.Requested)
	assert.Equal(t, int32(2), f.remaining(t, "p1"))
}

// failingStock пропускает списания до указанного товара, на нём — отказывает.
type failingStock struct {
	domain.StockStore
	failOn string
}

func (s *failingStock) DecrementStock(ctx context.Context, productID string, qty int32) error {
	if productID == s.failOn {
		return &domain.InsufficientStockError{ProductID: productID, Available: 0, Requested: qty}
	}
	return s.StockStore.DecrementStock(ctx, productID, qty)
}

// Провал фиксации на второй позиции компенсируется: первое списание
// возвращается на склад, заказ не сохраняется.
func TestPlaceOrder_RollbackOnCommitFailure(t *testing.T) {
	products := memory.NewProductRepository()
	stock := &failingStock{StockStore: products, failOn: "p2"}
	ledger := inventory.NewLedger(products, stock, nil)
	orders := memory.NewOrderRepository()
	asm := checkout.NewAssembler(products, ledger, orders, nil, nil, nil, nil, nil)

	products.Put(domain.Product{ID: "p1", Name: "a", OriginalPriceMinor: 1000, TotalStock: 5, RemainingStock: 5, IsActive: true})
	products.Put(domain.Product{ID: "p2", Name: "b", OriginalPriceMinor: 1000, TotalStock: 5, RemainingStock: 5, IsActive: true})

	_, err := asm.PlaceOrder(context.Background(), "user-1",
		[]checkout.LineRequest{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		}, "12 Main St", "", "")
	require.Error(t, err)
	assert.True(t, domain.IsInsufficientStock(err))

	// Первое списание откатилось.
	p1, err := products.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int32(5), p1.RemainingStock)
	assert.Equal(t, int32(0), p1.SoldQuantity)

	// Частичный заказ не сохранён.
	list, err := orders.ListByUser(context.Background(), "user-1", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// failingOrders отклоняет сохранение заказа.
type failingOrders struct {
	domain.OrderRepository
}

func (r *failingOrders) Create(context.Context, domain.Order) error {
	return errors.New("disk full")
}

func TestPlaceOrder_RollbackOnPersistFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{orders: &failingOrders{OrderRepository: memory.NewOrderRepository()}})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 1000, RemainingStock: 5, IsActive: true})

	_, err := f.asm.PlaceOrder(context.Background(), "user-1",
		[]checkout.LineRequest{{ProductID: "p1", Quantity: 2}}, "12 Main St", "", "")

	var se *domain.StorageError
	require.ErrorAs(t, err, &se)

	// Всё списанное вернулось.
	assert.Equal(t, int32(5), f.remaining(t, "p1"))
}

// Снимок заказа заморожен: подорожание товара после оформления не меняет заказ.
func TestPlaceOrder_FrozenSnapshot(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 2000, RemainingStock: 5, IsActive: true})
	ctx := context.Background()

	order, err := f.asm.PlaceOrder(ctx, "user-1",
		[]checkout.LineRequest{{ProductID: "p1", Quantity: 1}}, "12 Main St", "", "")
	require.NoError(t, err)

	f.seed(domain.Product{ID: "p1", Name: "renamed", OriginalPriceMinor: 9000, RemainingStock: 4, IsActive: true})

	stored, err := f.asm.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), stored.Lines[0].UnitPriceMinor)
	assert.Equal(t, "product p1", stored.Lines[0].ProductName)
}

func TestPlaceOrder_ClearsCart(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 2000, RemainingStock: 5, IsActive: true})
	ctx := context.Background()

	_, err := f.cartSvc.AddItem(ctx, "user-1", "p1", 2)
	require.NoError(t, err)

	_, err = f.asm.PlaceOrder(ctx, "user-1",
		[]checkout.LineRequest{{ProductID: "p1", Quantity: 2}}, "12 Main St", "", "")
	require.NoError(t, err)

	view, err := f.cartSvc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestPlaceOrder_DuplicateIdempotencyKey(t *testing.T) {
	f := newFixture(t, fixtureOpts{guard: idempotency.NewMemoryGuard(0)})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 2000, RemainingStock: 5, IsActive: true})
	ctx := context.Background()

	_, err := f.asm.PlaceOrder(ctx, "user-1",
		[]checkout.LineRequest{{ProductID: "p1", Quantity: 1}}, "12 Main St", "", "key-1")
	require.NoError(t, err)

	_, err = f.asm.PlaceOrder(ctx, "user-1",
		[]checkout.LineRequest{{ProductID: "p1", Quantity: 1}}, "12 Main St", "", "key-1")
	assert.ErrorIs(t, err, idempotency.ErrDuplicateRequest)

	// Повтор не тронул склад.
	assert.Equal(t, int32(4), f.remaining(t, "p1"))
}

// Двадцать конкурентных оформлений на последнюю единицу: списание ровно одно,
// остальные получают InsufficientStockError, сохраняется один заказ.
func TestPlaceOrder_LastUnitContention(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 2000, RemainingStock: 1, IsActive: true})
	ctx := context.Background()

	const buyers = 20
	var wg sync.WaitGroup
	var successes int32
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.asm.PlaceOrder(ctx, fmt.Sprintf("user-%d", i),
				[]checkout.LineRequest{{ProductID: "p1", Quantity: 1}}, "12 Main St", "", "")
			if err == nil {
				atomic.AddInt32(&successes, 1)
			} else if !domain.IsInsufficientStock(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(0), f.remaining(t, "p1"))

	var persisted int
	for i := 0; i < buyers; i++ {
		list, err := f.orders.ListByUser(ctx, fmt.Sprintf("user-%d", i), 10)
		require.NoError(t, err)
		persisted += len(list)
	}
	assert.Equal(t, 1, persisted)
}

func placeOrder(t *testing.T, f *fixture) domain.Order {
	t.Helper()
	order, err := f.asm.PlaceOrder(context.Background(), "user-1",
		[]checkout.LineRequest{{ProductID: "p1", Quantity: 1}}, "12 Main St", "", "")
	require.NoError(t, err)
	return order
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 2000, RemainingStock: 5, IsActive: true})
	order := placeOrder(t, f)
	ctx := context.Background()

	updated, err := f.asm.UpdateStatus(ctx, order.ID, domain.OrderStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, updated.Status)
	assert.Equal(t, int64(1), updated.Version)

	updated, err = f.asm.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, updated.Status)
}

func TestUpdateStatus_SkippingStepRejected(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 2000, RemainingStock: 5, IsActive: true})
	order := placeOrder(t, f)

	_, err := f.asm.UpdateStatus(context.Background(), order.ID, domain.OrderStatusDelivered)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "status", ve.Field)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	_, err := f.asm.UpdateStatus(context.Background(), "any", domain.OrderStatus("teleported"))
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

// Отмена не возвращает остаток: restock — только компенсация оформления.
func TestUpdateStatus_CancelDoesNotRestock(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 2000, RemainingStock: 5, IsActive: true})
	order := placeOrder(t, f)

	_, err := f.asm.UpdateStatus(context.Background(), order.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, int32(4), f.remaining(t, "p1"))
}

// conflictOnSave всегда сообщает о проигранной optimistic-гонке.
type conflictOnSave struct {
	domain.OrderRepository
}

func (r *conflictOnSave) Save(context.Context, domain.Order) error {
	return domain.ErrVersionConflict
}

func TestUpdateStatus_VersionConflict(t *testing.T) {
	inner := memory.NewOrderRepository()
	f := newFixture(t, fixtureOpts{orders: &conflictOnSave{OrderRepository: inner}})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 2000, RemainingStock: 5, IsActive: true})
	order := placeOrder(t, f)

	_, err := f.asm.UpdateStatus(context.Background(), order.ID, domain.OrderStatusPaid)
	var cme *domain.ConcurrentModificationError
	require.ErrorAs(t, err, &cme)
	assert.Equal(t, order.ID, cme.ID)
}

func TestRemove(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 2000, RemainingStock: 5, IsActive: true})
	order := placeOrder(t, f)
	ctx := context.Background()

	require.NoError(t, f.asm.Remove(ctx, order.ID))

	_, err := f.asm.Get(ctx, order.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestListByUser(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(domain.Product{ID: "p1", OriginalPriceMinor: 2000, RemainingStock: 10, IsActive: true})
	ctx := context.Background()

	first := placeOrder(t, f)
	second := placeOrder(t, f)

	orders, err := f.asm.ListByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	ids := []string{orders[0].ID, orders[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}
