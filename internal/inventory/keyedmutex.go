package inventory

import "sync"

// KeyedMutex выдаёт по мьютексу на ключ: конкурирующие операции над одним
// товаром (или одной корзиной) сериализуются, не задевая чужие ключи.
// Ничего глобального — contention строго в рамках ключа.
type KeyedMutex struct {
	locks sync.Map // map[string]*sync.Mutex
}

// NewKeyedMutex создаёт пустой набор замков.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock захватывает замок ключа и возвращает функцию освобождения.
func (k *KeyedMutex) Lock(key string) func() {
	if v, ok := k.locks.Load(key); ok {
		m := v.(*sync.Mutex)
		m.Lock()
		return m.Unlock
	}

	// LoadOrStore закрывает гонку двух первых обращений к ключу.
	m := &sync.Mutex{}
	actual, _ := k.locks.LoadOrStore(key, m)
	mtx := actual.(*sync.Mutex)
	mtx.Lock()
	return mtx.Unlock
}
