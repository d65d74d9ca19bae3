package locker

import (
	"context"
	"sync"
)

// MachineLocker serializes mutations against a single machine. Approvals
// re-validate state under the lock, so two racing approvals cannot both see
// the same unit contents.
type MachineLocker interface {
	// Acquire blocks until the machine lock is held or ctx is done. The
	// returned release func is safe to call once.
	Acquire(ctx context.Context, machineID string) (release func(), err error)
}

// keyedLocker is the in-process implementation, one mutex per machine id.
// Sufficient for a single replica; multi-replica deployments use the redis
// locker instead.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*machineLock
}

type machineLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedLocker() MachineLocker {
	return &keyedLocker{locks: make(map[string]*machineLock)}
}

func (l *keyedLocker) Acquire(ctx context.Context, machineID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[machineID]
	if !ok {
		entry = &machineLock{ch: make(chan struct{}, 1)}
		l.locks[machineID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.put(machineID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-entry.ch
			l.put(machineID, entry)
		})
	}
	return release, nil
}

func (l *keyedLocker) put(machineID string, entry *machineLock) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, machineID)
	}
	l.mu.Unlock()
}
