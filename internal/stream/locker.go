package stream

import (
	"context"
	"sync"

	"github.com/moby/locker"
)

// Locker gives mutual exclusion per key. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LocalLocker is a keyed mutex for a single process. The Redis locker is
// the default; this one serves single-instance deployments.
type LocalLocker struct {
	locks *locker.Locker
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: locker.New()}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	acquired := make(chan struct{})
	go func() {
		l.locks.Lock(key)
		close(acquired)
	}()

	select {
	case <-acquired:
		var once sync.Once
		return func() {
			once.Do(func() { _ = l.locks.Unlock(key) })
		}, nil
	case <-ctx.Done():
		// the waiter still gets the lock eventually; hand it straight back
		go func() {
			<-acquired
			_ = l.locks.Unlock(key)
		}()
		return nil, ctx.Err()
	}
}
