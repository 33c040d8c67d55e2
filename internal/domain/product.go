package domain

import "time"

// Product — товар каталога. Ядро читает его целиком, но мутирует только
// складские поля (RemainingStock, SoldQuantity), и только через единственную
// условную запись в StockStore.
//
// Денежные поля хранятся в минимальных единицах (центах).
type Product struct {
	ID          string
	Name        string
	Description string
	ImageURL    string
	Unit        string
	// OriginalPriceMinor — цена без скидки.
	OriginalPriceMinor int64
	// DiscountedPriceMinor — явная цена со скидкой; 0 означает «не задана»,
	// тогда цена выводится из DiscountPercentage.
	DiscountedPriceMinor int64
	// DiscountPercentage — процент скидки в диапазоне [0, 100].
	DiscountPercentage float64
	// DeliveryChargeMinor — доставка за позицию, суммируется в заказе.
	DeliveryChargeMinor int64
	// TotalStock и RemainingStock связаны инвариантом
	// 0 <= RemainingStock <= TotalStock.
	TotalStock     int32
	RemainingStock int32
	SoldQuantity   int32
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
