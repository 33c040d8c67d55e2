package app

import (
	"context"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// Dependencies содержит хранилища и внешние клиенты приложения.
type Dependencies struct {
	Catalog domain.ProductCatalog
	Stock   domain.StockStore
	Carts   domain.CartRepository
	Orders  domain.OrderRepository
	Guard   idempotency.Guard

	// Store и Redis — nil, если соответствующий backend не настроен.
	Store  *postgres.Store
	Redis  *redis.Client
	Logger *log.Entry
}

// NewDependencies собирает зависимости по конфигурации: PostgreSQL при
// заданном DSN, иначе in-memory хранилище с демо-каталогом.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.MigrateUp(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}

		products := postgres.NewProductRepository(store)
		deps.Store = store
		deps.Catalog = products
		deps.Stock = products
		deps.Carts = postgres.NewCartRepository(store)
		deps.Orders = postgres.NewOrderRepository(store)
		logger.Info("postgres storage initialized")
	} else {
		products := memory.NewProductRepository()
		seedDemoProducts(products)
		deps.Catalog = products
		deps.Stock = products
		deps.Carts = memory.NewCartRepository()
		deps.Orders = memory.NewOrderRepository()
		logger.Info("in-memory storage initialized with demo catalog")
	}

	deps.Guard = idempotency.NewMemoryGuard(idempotency.DefaultTTL)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			// Guard best-effort: без Redis работаем на in-memory реализации.
			logger.WithError(err).Warn("redis unavailable, falling back to in-memory idempotency guard")
			_ = client.Close()
		} else {
			deps.Redis = client
			deps.Guard = idempotency.NewRedisGuard(client, idempotency.DefaultTTL)
			logger.WithField("addr", cfg.RedisAddr).Info("redis idempotency guard initialized")
		}
	}

	return deps, nil
}

// Close освобождает подключения к внешним системам.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}

// seedDemoProducts наполняет in-memory каталог. Каталогом владеет внешний
// сервис; здесь только данные для локальной разработки.
func seedDemoProducts(products memory.ProductRepository) {
	products.Put(domain.Product{
		ID:                   "prod-espresso-beans",
		Name:                 "Espresso Beans 1kg",
		Description:          "Dark roast arabica blend",
		Unit:                 "bag",
		OriginalPriceMinor:   189900,
		DiscountedPriceMinor: 159900,
		DeliveryChargeMinor:  5000,
		TotalStock:           120,
		RemainingStock:       120,
		IsActive:             true,
	})
	products.Put(domain.Product{
		ID:                 "prod-moka-pot",
		Name:               "Moka Pot 6-cup",
		Description:        "Aluminium stovetop coffee maker",
		Unit:               "pcs",
		OriginalPriceMinor: 349900,
		DiscountPercentage: 15,
		TotalStock:         40,
		RemainingStock:     40,
		IsActive:           true,
	})
	products.Put(domain.Product{
		ID:                  "prod-filter-papers",
		Name:                "Filter Papers x100",
		Unit:                "box",
		OriginalPriceMinor:  49900,
		DeliveryChargeMinor: 2500,
		TotalStock:          500,
		RemainingStock:      500,
		IsActive:            true,
	})
}
