package runlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the TTL only while the key still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis takes a SET NX lock with a TTL so a crashed run frees it eventually.
// While held, the TTL is renewed every third of its length.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: "runlock:"}
}

func NewRedisFromURL(addr string, ttl time.Duration) *Redis {
	return NewRedis(redis.NewClient(&redis.Options{Addr: addr}), ttl)
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	name := r.prefix + key
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("runlock: redis setnx: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(name, token, stop, done)

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done
		})
		if err := releaseScript.Run(ctx, r.client, []string{name}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("runlock: redis release: %w", err)
		}
		return nil
	}, nil
}

// keepAlive renews the lock until stop is closed or the key no longer
// holds token.
func (r *Redis) keepAlive(name, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := r.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := refreshScript.Run(ctx, r.client, []string{name}, token, r.ttl.Milliseconds()).Int()
			cancel()
			if err == nil && n == 0 {
				return
			}
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
