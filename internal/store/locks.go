package store

import (
	"context"
	"slices"
	"sync"
)

// recordLock is a channel used as a mutex so waiters can give up on context
// cancellation.
type recordLock struct {
	sem  chan struct{}
	refs int
}

// lockTable serializes writers per lock token within one process.
//
// Entries are created on first use and dropped when the last holder or waiter
// leaves, so the table only grows with concurrent contention.
//
// Thread-safety: lockTable is safe for concurrent use.
type lockTable struct {
	mu    sync.Mutex
	locks map[int64]*recordLock
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[int64]*recordLock)}
}

// acquire blocks until token is held or ctx ends.
func (t *lockTable) acquire(ctx context.Context, token int64) error {
	t.mu.Lock()
	l, ok := t.locks[token]
	if !ok {
		l = &recordLock{sem: make(chan struct{}, 1)}
		t.locks[token] = l
	}
	l.refs++
	t.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		t.leave(token, false)
		return ctx.Err()
	}
}

// release unlocks a held token.
func (t *lockTable) release(token int64) {
	t.leave(token, true)
}

func (t *lockTable) leave(token int64, held bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.locks[token]
	if held {
		<-l.sem
	}
	l.refs--
	if l.refs == 0 {
		delete(t.locks, token)
	}
}

// acquireAll locks every distinct token in ascending order, the same order
// used for backend advisory locks, and returns them sorted with a function
// that releases them all.
func (t *lockTable) acquireAll(ctx context.Context, tokens []int64) ([]int64, func(), error) {
	sorted := slices.Clone(tokens)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]int64, 0, len(sorted))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			t.release(held[i])
		}
	}
	for _, token := range sorted {
		if err := t.acquire(ctx, token); err != nil {
			unlock()
			return nil, nil, err
		}
		held = append(held, token)
	}
	return sorted, unlock, nil
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
