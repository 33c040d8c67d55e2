package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

func (r *cartRepository) GetByUser(ctx context.Context, userID string) (domain.Cart, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var cart domain.Cart
	err := r.db.QueryRowContext(queryCtx, `
		SELECT id, user_id, total_amount_minor, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&cart.ID, &cart.UserID, &cart.TotalAmountMinor, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, &domain.NotFoundError{Entity: "cart", ID: userID}
		}
		return domain.Cart{}, &domain.StorageError{Op: "select cart", Err: err}
	}

	lines, err := r.loadLines(queryCtx, cart.ID)
	if err != nil {
		return domain.Cart{}, err
	}
	cart.Lines = lines
	return cart, nil
}

func (r *cartRepository) Create(ctx context.Context, cart domain.Cart) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(queryCtx, nil)
	if err != nil {
		return &domain.StorageError{Op: "begin tx", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(queryCtx, `
		INSERT INTO carts (id, user_id, total_amount_minor, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
	`, cart.ID, cart.UserID, cart.TotalAmountMinor, cart.CreatedAt, cart.UpdatedAt)
	if err != nil {
		// Уникальность user_id: вторая корзина того же пользователя — это
		// проигранная гонка ленивого создания.
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return &domain.StorageError{Op: "insert cart", Err: err}
	}

	if err := insertCartLines(queryCtx, tx, cart.ID, cart.Lines); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &domain.StorageError{Op: "commit create cart", Err: err}
	}
	return nil
}

func (r *cartRepository) Save(ctx context.Context, cart domain.Cart) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(queryCtx, nil)
	if err != nil {
		return &domain.StorageError{Op: "begin tx", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(queryCtx, `
		UPDATE carts
		SET total_amount_minor = $2, updated_at = $3
		WHERE id = $1
	`, cart.ID, cart.TotalAmountMinor, cart.UpdatedAt)
	if err != nil {
		return &domain.StorageError{Op: "update cart", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "update cart", Err: err}
	}
	if affected == 0 {
		return &domain.NotFoundError{Entity: "cart", ID: cart.ID}
	}

	// Состав перезаписывается целиком: корзина маленькая, diff не окупается.
	if _, err := tx.ExecContext(queryCtx, `DELETE FROM cart_lines WHERE cart_id = $1`, cart.ID); err != nil {
		return &domain.StorageError{Op: "delete cart lines", Err: err}
	}
	if err := insertCartLines(queryCtx, tx, cart.ID, cart.Lines); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &domain.StorageError{Op: "commit save cart", Err: err}
	}
	return nil
}

func (r *cartRepository) loadLines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY position
	`, cartID)
	if err != nil {
		return nil, &domain.StorageError{Op: "select cart lines", Err: err}
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return nil, &domain.StorageError{Op: "scan cart line", Err: err}
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate cart lines", Err: err}
	}
	return lines, nil
}

func insertCartLines(ctx context.Context, tx *sql.Tx, cartID string, lines []domain.CartLine) error {
	for i, line := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_lines (cart_id, product_id, quantity, position)
			VALUES ($1,$2,$3,$4)
		`, cartID, line.ProductID, line.Quantity, i); err != nil {
			return &domain.StorageError{Op: "insert cart line", Err: err}
		}
	}
	return nil
}
