package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Guard keeps two check-ins of the same identifier from running at once.
// Acquire reports false when another holder has the key; the returned
// release func is a no-op in that case.
type Guard interface {
	Acquire(ctx context.Context, key string) (ok bool, release func(), err error)
}

// RedisGuard holds per-identifier locks with SET NX and a TTL so a crashed
// holder cannot block the identifier forever.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisGuard creates a guard. ttl defaults to 10s.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisGuard{client: client, prefix: "presensi:scan-lock:", ttl: ttl}
}

// releaseLock deletes the key only while it still holds our token, so a
// holder whose TTL ran out cannot drop the next holder's lock.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire sets the lock key to a fresh token. Release only removes the key
// while that token is still stored.
func (g *RedisGuard) Acquire(ctx context.Context, key string) (bool, func(), error) {
	k := g.prefix + key
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, k, token, g.ttl).Result()
	if err != nil || !ok {
		return false, func() {}, err
	}
	return true, func() {
		// fresh context: the request may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseLock.Run(ctx, g.client, []string{k}, token).Err()
	}, nil
}

// MemoryGuard is the single-process guard used with the memory backends.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryGuard creates an empty in-process guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]struct{})}
}

// Acquire marks key as held. Calling release more than once is safe.
func (g *MemoryGuard) Acquire(ctx context.Context, key string) (bool, func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[key]; busy {
		return false, func() {}, nil
	}
	g.held[key] = struct{}{}
	var once sync.Once
	return true, func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}
