package redisclient

import (
	"context"
	"sync"
)

type localLocker struct {
	mu    sync.Mutex
	slots map[string]*keySlot
}

type keySlot struct {
	sem     chan struct{}
	waiters int
}

// NewLocalLocker creates an in-process Locker. Unlike the Redis locker it waits for
// held keys, giving up only when ctx is done.
func NewLocalLocker() Locker {
	return &localLocker{slots: make(map[string]*keySlot)}
}

func (l *localLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	keys = normalizeKeys(keys)

	held := make([]string, 0, len(keys))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}()

	for _, k := range keys {
		if err := l.lock(ctx, k); err != nil {
			return err
		}
		held = append(held, k)
	}

	return fn(ctx)
}

func (l *localLocker) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &keySlot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.waiters++
	l.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		s.waiters--
		if s.waiters == 0 {
			delete(l.slots, key)
		}
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *localLocker) unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.slots[key]
	<-s.sem
	s.waiters--
	if s.waiters == 0 {
		delete(l.slots, key)
	}
}
