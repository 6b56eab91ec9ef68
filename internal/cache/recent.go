// Package cache — кэши процесса.
//
// Кэши не являются источником истины: потеря при рестарте влияет только на
// число лишних запросов, корректность обеспечивают уникальные индексы в БД.
package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
)

// Значения по умолчанию для Recent.
const (
	DefaultRecentTTL      = 6 * time.Hour
	DefaultRecentCapacity = 100_000
)

// Recent — множество недавно виденных ключей с TTL.
//
// Используется discover'ом, чтобы не вставлять detail-задачи для объявлений,
// уже обработанных этим процессом в пределах TTL.
type Recent struct {
	cache *ristretto.Cache[string, struct{}]
	ttl   time.Duration
}

// NewRecent создаёт кэш на capacity ключей с заданным TTL.
func NewRecent(capacity int64, ttl time.Duration) (*Recent, error) {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}
	if ttl <= 0 {
		ttl = DefaultRecentTTL
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters: capacity * 10,
		MaxCost:     capacity,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("new ristretto cache: %w", err)
	}
	return &Recent{cache: c, ttl: ttl}, nil
}

// Key строит ключ account:id.
func Key(accountID uuid.UUID, id string) string {
	return accountID.String() + ":" + id
}

// Seen возвращает true, если ключ был отмечен в пределах TTL.
func (r *Recent) Seen(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.cache.Get(key)
	return ok
}

// Mark отмечает ключи как виденные.
// Запись асинхронная; Wait дожидается применения.
func (r *Recent) Mark(keys ...string) {
	if r == nil {
		return
	}
	for _, k := range keys {
		r.cache.SetWithTTL(k, struct{}{}, 1, r.ttl)
	}
}

// Wait блокирует до применения всех Mark.
func (r *Recent) Wait() {
	if r == nil {
		return
	}
	r.cache.Wait()
}

// Close освобождает ресурсы кэша.
func (r *Recent) Close() {
	if r == nil {
		return
	}
	r.cache.Close()
}
