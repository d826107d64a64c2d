// Package ratelimit считает действия по ключу в фиксированных окнах.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter хранит счетчики в Redis. INCR и TTL идут одной транзакцией,
// EXPIRE ставится каждый раз, когда у ключа нет срока жизни.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimiter разрешает не более limit действий на ключ за window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "ratelimit:"}
}

// Allow увеличивает счетчик ключа и сообщает, укладывается ли действие в лимит.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	fullKey := l.prefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fullKey)
		ttl = pipe.TTL(ctx, fullKey)
		return nil
	})
	if err != nil {
		return false, err
	}

	// -1: ключ без срока жизни (новый или EXPIRE ранее не дошел до Redis)
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, fullKey, l.window).Err(); err != nil {
			return false, err
		}
	}
	return incr.Val() <= int64(l.limit), nil
}

// NewRedisClient создает клиента и проверяет соединение.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter - тот же фиксированный счетчик в памяти одного процесса.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryLimiter разрешает не более limit действий на ключ за period.
func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  period,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow увеличивает счетчик ключа и сообщает, укладывается ли действие в лимит.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.sweep(now)
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.limit, nil
}

// sweep удаляет истекшие окна.
func (l *MemoryLimiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}
