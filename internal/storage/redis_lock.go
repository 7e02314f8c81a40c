package storage

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the key only when it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker implements RunLocker with SET NX PX, for deployments whose
// history store has no lock of its own (csv, sqlite).
type RedisLocker struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
}

// RedisLockOptions configure the redis run lock.
type RedisLockOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// NewRedisLocker connects and pings the server.
func NewRedisLocker(ctx context.Context, opts RedisLockOptions) (*RedisLocker, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisLocker(client, opts.Key, opts.TTL), nil
}

func newRedisLocker(client *goredis.Client, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = "pricewatch:run"
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

// TryRunLock sets the lock key when absent. The TTL bounds how long a
// crashed holder can block later runs.
func (r *RedisLocker) TryRunLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctxUnlock, r.client, []string{r.key}, token).Err()
	}
	return unlock, true, nil
}

// Close closes the redis client.
func (r *RedisLocker) Close() error {
	return r.client.Close()
}

var _ RunLocker = (*RedisLocker)(nil)
