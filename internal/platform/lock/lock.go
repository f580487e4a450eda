// Package lock provides per-key critical sections. Callers serialize work on
// one key (an import group, a reservation) without blocking other keys.
package lock

import (
	"context"
	"sync"

	dErrors "arsenal/pkg/domain-errors"
)

// Locker runs fn while holding the lock for key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Keyed is an in-process Locker with one mutex per active key. Entries are
// reference counted and dropped once the last holder releases them.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*keyedEntry)}
}

func (k *Keyed) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "lock aborted: context cancelled")
	}

	entry := k.acquireEntry(key)
	defer k.releaseEntry(key, entry)

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "lock wait aborted: "+key)
	}
	defer func() { <-entry.ch }()

	return fn(ctx)
}

func (k *Keyed) acquireEntry(key string) *keyedEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (k *Keyed) releaseEntry(key string, entry *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
}

// active reports the number of keys currently tracked.
func (k *Keyed) active() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// Key helpers keep lock names consistent between services and instances.
// Locks are not reentrant. Nested acquisition always goes group, then
// reservation, then quota, never the reverse.

func GroupKey(groupID string) string           { return "import_group:" + groupID }
func ReservationKey(id string) string          { return "reservation:" + id }
func QuotaKey(groupID string) string           { return "quota:" + groupID }
