package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

const orderColumns = `
	id, user_id, subtotal_amount_minor, delivery_charge_minor, total_amount_minor,
	status, shipping_address, payment_method, version, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(queryCtx, nil)
	if err != nil {
		return &domain.StorageError{Op: "begin tx", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(queryCtx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		order.ID, order.UserID, order.SubtotalAmountMinor, order.DeliveryChargeMinor,
		order.TotalAmountMinor, string(order.Status), order.ShippingAddress,
		order.PaymentMethod, order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return &domain.StorageError{Op: "insert order", Err: err}
	}

	for i, line := range order.Lines {
		if _, err := tx.ExecContext(queryCtx, `
			INSERT INTO order_lines (
				id, order_id, product_id, product_name,
				unit_price_minor, quantity, subtotal_minor, position
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			line.ID, order.ID, line.ProductID, line.ProductName,
			line.UnitPriceMinor, line.Quantity, line.SubtotalMinor, i,
		); err != nil {
			return &domain.StorageError{Op: "insert order line", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StorageError{Op: "commit create order", Err: err}
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := r.scanOrder(r.db.QueryRowContext(queryCtx, `
		SELECT`+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, &domain.NotFoundError{Entity: "order", ID: id}
		}
		return domain.Order{}, &domain.StorageError{Op: "select order", Err: err}
	}

	lines, err := r.loadLines(queryCtx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines
	return order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(queryCtx, query+" LIMIT $2", userID, limit)
	} else {
		rows, err = r.db.QueryContext(queryCtx, query, userID)
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "list orders", Err: err}
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "scan order", Err: err}
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate orders", Err: err}
	}

	for i := range orders {
		lines, err := r.loadLines(queryCtx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

// Save перезаписывает заказ с проверкой версии: UPDATE срабатывает только при
// совпадении version, иначе — ErrVersionConflict.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(queryCtx, `
		UPDATE orders
		SET status = $3,
		    shipping_address = $4,
		    payment_method = $5,
		    version = version + 1,
		    updated_at = $6
		WHERE id = $1 AND version = $2
	`,
		order.ID, order.Version, string(order.Status),
		order.ShippingAddress, order.PaymentMethod, order.UpdatedAt,
	)
	if err != nil {
		return &domain.StorageError{Op: "update order", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "update order", Err: err}
	}
	if affected > 0 {
		return nil
	}

	// Различаем «заказа нет» и «версия ушла вперёд».
	var exists bool
	err = r.db.QueryRowContext(queryCtx, `
		SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)
	`, order.ID).Scan(&exists)
	if err != nil {
		return &domain.StorageError{Op: "update order", Err: err}
	}
	if !exists {
		return &domain.NotFoundError{Entity: "order", ID: order.ID}
	}
	return domain.ErrVersionConflict
}

func (r *orderRepository) Delete(ctx context.Context, id string) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(queryCtx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return &domain.StorageError{Op: "delete order", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "delete order", Err: err}
	}
	if affected == 0 {
		return &domain.NotFoundError{Entity: "order", ID: id}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *orderRepository) scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	err := row.Scan(
		&order.ID, &order.UserID, &order.SubtotalAmountMinor, &order.DeliveryChargeMinor,
		&order.TotalAmountMinor, &status, &order.ShippingAddress,
		&order.PaymentMethod, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	return order, nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, unit_price_minor, quantity, subtotal_minor
		FROM order_lines
		WHERE order_id = $1
		ORDER BY position
	`, orderID)
	if err != nil {
		return nil, &domain.StorageError{Op: "select order lines", Err: err}
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ID, &line.ProductID, &line.ProductName,
			&line.UnitPriceMinor, &line.Quantity, &line.SubtotalMinor,
		); err != nil {
			return nil, &domain.StorageError{Op: "scan order line", Err: err}
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate order lines", Err: err}
	}
	return lines, nil
}
