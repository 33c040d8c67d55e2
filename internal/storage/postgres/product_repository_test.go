package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

func newMockRepo(t *testing.T) (postgres.ProductRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return postgres.NewProductRepository(postgres.NewStoreWithDB(db)), mock
}

func TestDecrementStock_Success(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE products").
		WithArgs("p1", int32(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.DecrementStock(context.Background(), "p1", 2); err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Условие remaining_stock >= qty не сработало: повторное чтение различает
// нехватку остатка и отсутствие товара.
func TestDecrementStock_Insufficient(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE products").
		WithArgs("p1", int32(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT remaining_stock FROM products").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"remaining_stock"}).AddRow(3))

	err := repo.DecrementStock(context.Background(), "p1", 5)
	if !domain.IsInsufficientStock(err) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected typed stock error, got %v", err)
	}
	if stockErr.Available != 3 || stockErr.Requested != 5 {
		t.Fatalf("unexpected details: available=%d requested=%d", stockErr.Available, stockErr.Requested)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDecrementStock_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE products").
		WithArgs("ghost", int32(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT remaining_stock FROM products").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"remaining_stock"}))

	err := repo.DecrementStock(context.Background(), "ghost", 1)
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRestock(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE products").
		WithArgs("p1", int32(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Restock(context.Background(), "p1", 2); err != nil {
		t.Fatalf("restock failed: %v", err)
	}
}

func TestRestock_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE products").
		WithArgs("ghost", int32(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Restock(context.Background(), "ghost", 2)
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
