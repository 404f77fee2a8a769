package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(1, `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// renewScript extends the lock only if it still carries our token.
var renewScript = redis.NewScript(1, `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisConfig holds the settings of a RedisLocker.
type RedisConfig struct {
	Addr       string
	Prefix     string        // Key prefix (default "laboveda:lock:")
	TTL        time.Duration // Lock expiry, bounds a crashed holder (default 30s); renewed every TTL/3 while held
	RetryDelay time.Duration // Poll interval while waiting (default 25ms)
}

// RedisLocker is a Locker shared between processes through Redis.
// A held lock is renewed while its holder runs and expires after TTL once the
// holder dies.
type RedisLocker struct {
	pool       *redis.Pool
	log        zerolog.Logger
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
}

// NewRedisLocker creates a RedisLocker and verifies the server is reachable.
func NewRedisLocker(cfg RedisConfig, log zerolog.Logger) (*RedisLocker, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "laboveda:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 25 * time.Millisecond
	}

	pool := &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 5 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", cfg.Addr,
				redis.DialConnectTimeout(5*time.Second),
				redis.DialReadTimeout(5*time.Second),
				redis.DialWriteTimeout(5*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	l := &RedisLocker{
		pool:       pool,
		log:        log.With().Str("component", "redis-lock").Logger(),
		prefix:     cfg.Prefix,
		ttl:        cfg.TTL,
		retryDelay: cfg.RetryDelay,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Ping(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return l, nil
}

// Ping checks the connection to Redis.
func (l *RedisLocker) Ping(ctx context.Context) error {
	conn, err := l.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = redis.DoContext(conn, ctx, "PING")
	return err
}

// Lock polls SET NX PX until the key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	name := l.prefix + key
	token := uuid.NewString()
	ttlMillis := l.ttl.Milliseconds()

	ticker := time.NewTicker(l.retryDelay)
	defer ticker.Stop()

	for {
		ok, err := l.tryAcquire(ctx, name, token, ttlMillis)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go l.renew(name, token, ttlMillis, stop, done)

			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-done
					l.release(name, token)
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) tryAcquire(ctx context.Context, name, token string, ttlMillis int64) (bool, error) {
	conn, err := l.pool.GetContext(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	_, err = redis.String(redis.DoContext(conn, ctx, "SET", name, token, "NX", "PX", ttlMillis))
	if errors.Is(err, redis.ErrNil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// renew keeps extending the lock until stop is closed or the lock is lost.
func (l *RedisLocker) renew(name, token string, ttlMillis int64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.renewInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		held, err := l.extend(name, token, ttlMillis)
		if err != nil {
			l.log.Warn().Err(err).Str("key", name).Msg("failed to renew lock")
			continue
		}
		if !held {
			l.log.Error().Str("key", name).Msg("lock lost before release")
			return
		}
	}
}

func (l *RedisLocker) renewInterval() time.Duration {
	if d := l.ttl / 3; d >= time.Millisecond {
		return d
	}
	return time.Millisecond
}

func (l *RedisLocker) extend(name, token string, ttlMillis int64) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.renewInterval())
	defer cancel()

	conn, err := l.pool.GetContext(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	n, err := redis.Int(renewScript.DoContext(ctx, conn, name, token, ttlMillis))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *RedisLocker) release(name, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := l.pool.GetContext(ctx)
	if err != nil {
		l.log.Warn().Err(err).Str("key", name).Msg("failed to release lock, it will expire")
		return
	}
	defer conn.Close()

	if _, err := releaseScript.DoContext(ctx, conn, name, token); err != nil {
		l.log.Warn().Err(err).Str("key", name).Msg("failed to release lock, it will expire")
	}
}

// Close closes the connection pool.
func (l *RedisLocker) Close() error {
	return l.pool.Close()
}
