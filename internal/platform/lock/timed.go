package lock

import (
	"context"
	"time"
)

// WaitObserver records how long callers waited to enter a critical section.
type WaitObserver interface {
	ObserveLockWait(seconds float64)
}

// Timed wraps a Locker and reports the wait before fn starts.
type Timed struct {
	inner    Locker
	observer WaitObserver
}

func NewTimed(inner Locker, observer WaitObserver) *Timed {
	return &Timed{inner: inner, observer: observer}
}

func (t *Timed) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	start := time.Now()
	return t.inner.WithLock(ctx, key, func(ctx context.Context) error {
		t.observer.ObserveLockWait(time.Since(start).Seconds())
		return fn(ctx)
	})
}
