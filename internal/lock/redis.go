package lock

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/config"
)

var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type redisLocker struct {
	client     *goredis.Client
	ttl        time.Duration
	wait       time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
}

func newRedisLocker(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) *redisLocker {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	l := &redisLocker{
		client:     client,
		ttl:        cfg.Lock.TTL,
		wait:       cfg.Lock.WaitTimeout,
		retryDelay: cfg.Lock.RetryDelay,
		logger:     logger,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return l
}

// Acquire polls SET NX until it wins or the wait timeout elapses. The key
// expires after the TTL so a crashed holder cannot block others forever.
func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := ulid.Make().String()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// release must not depend on a caller context that may be done
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
					l.logger.Warn("lock release failed", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ErrTimeout
		case <-time.After(l.retryDelay):
		}
	}
}
