// Package idempotency защищает оформление заказа от дублей: повторный запрос
// с тем же Idempotency-Key отклоняется, пока жив исходный ключ.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDuplicateRequest возвращается при повторе запроса с уже занятым ключом.
var ErrDuplicateRequest = errors.New("duplicate request")

// DefaultTTL — время жизни ключа идемпотентности.
const DefaultTTL = 24 * time.Hour

// Guard резервирует ключ идемпотентности. Acquire возвращает false, если
// ключ уже занят другим запросом.
type Guard interface {
	Acquire(ctx context.Context, key string) (bool, error)
}

// RedisGuard — реализация поверх Redis SETNX; работает корректно при
// нескольких инстансах сервиса.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard создаёт guard поверх готового клиента.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, "checkout:idem:"+key, 1, g.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// MemoryGuard — однопроцессная реализация для разработки и тестов.
type MemoryGuard struct {
	mu   sync.Mutex
	keys map[string]time.Time
	ttl  time.Duration
}

// NewMemoryGuard создаёт in-memory guard.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{
		keys: make(map[string]time.Time),
		ttl:  ttl,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if expires, ok := g.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	g.keys[key] = now.Add(g.ttl)
	return true, nil
}

var _ Guard = (*RedisGuard)(nil)
var _ Guard = (*MemoryGuard)(nil)
