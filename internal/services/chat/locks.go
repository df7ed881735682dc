// File: internal/services/chat/locks.go
package chat

import (
	"context"
	"sync"
)

// conversationLocks serializes turns per conversation. Waiting honours ctx.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[uint]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[uint]*lockEntry)}
}

// Lock blocks until id is free or ctx is done. The returned release is idempotent.
func (l *conversationLocks) Lock(ctx context.Context, id uint) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.drop(id, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.drop(id, entry)
		})
	}, nil
}

func (l *conversationLocks) drop(id uint, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, id)
	}
}

func (l *conversationLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
