// Package pricing содержит чистые вычисления цен: ни побочных эффектов, ни
// обращений к хранилищу. Все суммы — в минимальных денежных единицах.
package pricing

import (
	"math"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EffectiveUnitPrice возвращает действующую цену за единицу товара:
// явную цену со скидкой, если она задана, иначе цену, выведенную из процента
// скидки. Результат всегда в диапазоне [0, OriginalPriceMinor].
func EffectiveUnitPrice(p domain.Product) int64 {
	price := p.OriginalPriceMinor
	if p.DiscountedPriceMinor > 0 {
		price = p.DiscountedPriceMinor
	} else if p.DiscountPercentage > 0 {
		price = DiscountedPriceFromPercentage(p.OriginalPriceMinor, p.DiscountPercentage)
	}

	if price < 0 {
		return 0
	}
	if price > p.OriginalPriceMinor {
		return p.OriginalPriceMinor
	}
	return price
}

// DiscountedPriceFromPercentage выводит цену со скидкой из процента:
// round(original * (100 - pct) / 100). Округление до целых центов — это и
// есть округление до двух знаков в десятичной записи.
func DiscountedPriceFromPercentage(originalMinor int64, pct float64) int64 {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return int64(math.Round(float64(originalMinor) * (100 - pct) / 100))
}

// LineSubtotal считает сумму позиции.
func LineSubtotal(p domain.Product, qty int32) int64 {
	return EffectiveUnitPrice(p) * int64(qty)
}

// CartTotal пересчитывает сумму корзины по текущему состоянию каталога.
// Если товара какой-то позиции в каталоге больше нет, возвращается
// NotFoundError: вызывающая сторона обязана прервать операцию, а не молча
// выбросить позицию.
func CartTotal(lines []domain.CartLine, products map[string]domain.Product) (int64, error) {
	var total int64
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			return 0, &domain.NotFoundError{Entity: "product", ID: line.ProductID}
		}
		total += LineSubtotal(p, line.Quantity)
	}
	return total, nil
}
