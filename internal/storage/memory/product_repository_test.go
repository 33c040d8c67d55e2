package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func seedProduct(repo memory.ProductRepository, id string, remaining int32) {
	repo.Put(domain.Product{
		ID:                 id,
		Name:               "test product",
		OriginalPriceMinor: 1000,
		TotalStock:         remaining,
		RemainingStock:     remaining,
		IsActive:           true,
	})
}

func TestProductRepository_GetProduct(t *testing.T) {
	repo := memory.NewProductRepository()
	seedProduct(repo, "p1", 10)

	p, err := repo.GetProduct(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if p.RemainingStock != 10 {
		t.Fatalf("expected remaining 10, got %d", p.RemainingStock)
	}

	if _, err := repo.GetProduct(context.Background(), "ghost"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProductRepository_DecrementStock(t *testing.T) {
	repo := memory.NewProductRepository()
	seedProduct(repo, "p1", 5)
	ctx := context.Background()

	if err := repo.DecrementStock(ctx, "p1", 5); err != nil {
		t.Fatalf("decrement failed: %v", err)
	}

	p, _ := repo.GetProduct(ctx, "p1")
	if p.RemainingStock != 0 || p.SoldQuantity != 5 {
		t.Fatalf("unexpected stock after decrement: remaining=%d sold=%d", p.RemainingStock, p.SoldQuantity)
	}

	if err := repo.DecrementStock(ctx, "p1", 1); !domain.IsInsufficientStock(err) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestProductRepository_DecrementStock_LastUnitRace(t *testing.T) {
	repo := memory.NewProductRepository()
	seedProduct(repo, "p1", 1)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	var successes int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.DecrementStock(ctx, "p1", 1); err == nil {
				atomic.AddInt32(&successes, 1)
			} else if !domain.IsInsufficientStock(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful decrement, got %d", successes)
	}
	p, _ := repo.GetProduct(ctx, "p1")
	if p.RemainingStock != 0 || p.SoldQuantity != 1 {
		t.Fatalf("unexpected stock after race: remaining=%d sold=%d", p.RemainingStock, p.SoldQuantity)
	}
}

func TestProductRepository_Restock(t *testing.T) {
	repo := memory.NewProductRepository()
	seedProduct(repo, "p1", 5)
	ctx := context.Background()

	if err := repo.DecrementStock(ctx, "p1", 3); err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if err := repo.Restock(ctx, "p1", 3); err != nil {
		t.Fatalf("restock failed: %v", err)
	}

	p, _ := repo.GetProduct(ctx, "p1")
	if p.RemainingStock != 5 || p.SoldQuantity != 0 {
		t.Fatalf("unexpected stock after restock: remaining=%d sold=%d", p.RemainingStock, p.SoldQuantity)
	}
}
