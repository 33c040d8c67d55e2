package domain

import "time"

// CartLine — одна позиция корзины. Хранится только ссылка на товар и
// количество; имя, цена и прочие поля каталога подтягиваются при чтении,
// чтобы корзина никогда не отдавала устаревшие данные.
type CartLine struct {
	ProductID string
	Quantity  int32
}

// Cart — корзина пользователя. Ровно одна на пользователя (ключ — UserID),
// создаётся лениво при первой мутации и никогда не удаляется.
type Cart struct {
	ID     string
	UserID string
	// Lines уникальны по ProductID; порядок не несёт смысла.
	Lines []CartLine
	// TotalAmountMinor — производная сумма, пересчитывается по живым ценам
	// каталога при каждой мутации. Никогда не кэшируется как источник истины.
	TotalAmountMinor int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Line возвращает указатель на позицию с данным товаром или nil.
func (c *Cart) Line(productID string) *CartLine {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

// RemoveLine удаляет позицию; возвращает false, если её не было.
func (c *Cart) RemoveLine(productID string) bool {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}
