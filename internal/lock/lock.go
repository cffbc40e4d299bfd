// Package lock serializes mutations per entity key. The local driver covers a
// single process; the redis driver extends the guarantee across replicas.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/config"
)

// ErrTimeout is returned when a lock could not be acquired within the wait timeout.
var ErrTimeout = errors.New("lock wait timed out")

// Locker grants exclusive access to a key until the returned release is called.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Module provides the configured Locker to Fx.
var Module = fx.Provide(NewLocker)

// NewLocker builds the locker selected by LOCK_DRIVER.
func NewLocker(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Locker, error) {
	switch cfg.Lock.Driver {
	case "", "local":
		return NewLocal(cfg.Lock.WaitTimeout), nil
	case "redis":
		return newRedisLocker(lc, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported lock driver: %s", cfg.Lock.Driver)
	}
}

// Key builds a namespaced lock key for an entity.
func Key(kind string, id int64) string {
	return fmt.Sprintf("dialtone:lock:%s:%d", kind, id)
}

type slot struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed mutex.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

// NewLocal returns a Local locker; wait <= 0 waits only on ctx.
func NewLocal(wait time.Duration) *Local {
	return &Local{slots: make(map[string]*slot), wait: wait}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ErrTimeout
	}
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
