package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// ProductRepository совмещает каталог и складское хранилище поверх PostgreSQL.
type ProductRepository interface {
	domain.ProductCatalog
	domain.StockStore
	Upsert(ctx context.Context, product domain.Product) error
}

// NewProductRepository создаёт PostgreSQL-реализацию каталога и склада.
func NewProductRepository(store *Store) ProductRepository {
	return &productRepository{db: store.DB()}
}

const productColumns = `
	id, name, description, image_url, unit,
	original_price_minor, discounted_price_minor, discount_percentage,
	delivery_charge_minor, total_stock, remaining_stock, sold_quantity,
	is_active, created_at, updated_at`

func (r *productRepository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var p domain.Product
	err := r.db.QueryRowContext(queryCtx, `
		SELECT`+productColumns+`
		FROM products
		WHERE id = $1
	`, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.Unit,
		&p.OriginalPriceMinor, &p.DiscountedPriceMinor, &p.DiscountPercentage,
		&p.DeliveryChargeMinor, &p.TotalStock, &p.RemainingStock, &p.SoldQuantity,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, &domain.NotFoundError{Entity: "product", ID: id}
		}
		return domain.Product{}, &domain.StorageError{Op: "select product", Err: err}
	}
	return p, nil
}

// Upsert сохраняет товар целиком; используется сидированием и тестами.
func (r *productRepository) Upsert(ctx context.Context, p domain.Product) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	_, err := r.db.ExecContext(queryCtx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			unit = EXCLUDED.unit,
			original_price_minor = EXCLUDED.original_price_minor,
			discounted_price_minor = EXCLUDED.discounted_price_minor,
			discount_percentage = EXCLUDED.discount_percentage,
			delivery_charge_minor = EXCLUDED.delivery_charge_minor,
			total_stock = EXCLUDED.total_stock,
			remaining_stock = EXCLUDED.remaining_stock,
			sold_quantity = EXCLUDED.sold_quantity,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`,
		p.ID, p.Name, p.Description, p.ImageURL, p.Unit,
		p.OriginalPriceMinor, p.DiscountedPriceMinor, p.DiscountPercentage,
		p.DeliveryChargeMinor, p.TotalStock, p.RemainingStock, p.SoldQuantity,
		p.IsActive, p.CreatedAt, now,
	)
	if err != nil {
		return &domain.StorageError{Op: "upsert product", Err: err}
	}
	return nil
}

// DecrementStock — единственная условная запись: проверка остатка и списание
// выполняются одним UPDATE, гонка двух заказов разрешается базой.
func (r *productRepository) DecrementStock(ctx context.Context, productID string, qty int32) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(queryCtx, `
		UPDATE products
		SET remaining_stock = remaining_stock - $2,
		    sold_quantity = sold_quantity + $2,
		    updated_at = NOW()
		WHERE id = $1 AND remaining_stock >= $2
	`, productID, qty)
	if err != nil {
		return &domain.StorageError{Op: "decrement stock", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "decrement stock", Err: err}
	}
	if affected > 0 {
		return nil
	}

	// Условие не сработало: различаем отсутствие товара и нехватку остатка.
	var remaining int32
	err = r.db.QueryRowContext(queryCtx, `
		SELECT remaining_stock FROM products WHERE id = $1
	`, productID).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Entity: "product", ID: productID}
	}
	if err != nil {
		return &domain.StorageError{Op: "decrement stock", Err: err}
	}
	return &domain.InsufficientStockError{
		ProductID: productID,
		Available: remaining,
		Requested: qty,
	}
}

// Restock возвращает qty единиц; остаток зажат в [0, total_stock], продажи
// не уходят в минус.
func (r *productRepository) Restock(ctx context.Context, productID string, qty int32) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(queryCtx, `
		UPDATE products
		SET remaining_stock = LEAST(remaining_stock + $2, total_stock),
		    sold_quantity = GREATEST(sold_quantity - $2, 0),
		    updated_at = NOW()
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return &domain.StorageError{Op: "restock", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "restock", Err: err}
	}
	if affected == 0 {
		return &domain.NotFoundError{Entity: "product", ID: productID}
	}
	return nil
}
