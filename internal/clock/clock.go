package clock

import (
	"sync"
	"time"

	"go.uber.org/fx"
)

// Clock supplies the current time; services take it as a dependency so tests
// can pin dates.
type Clock interface {
	Now() time.Time
}

// Module provides the wall clock to Fx.
var Module = fx.Provide(func() Clock { return Real{} })

// Real is the system clock in UTC.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// Fake is a manually advanced clock.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(t time.Time) *Fake {
	return &Fake{now: t.UTC()}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
