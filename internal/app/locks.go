/**
 * @description
 * Per-account lock table used by the ledger engine to make multi-step
 * operations appear atomic to concurrent callers. Every (userID, accountType)
 * pair is an independently lockable resource; transfers acquire both of
 * their locks before reading either balance.
 *
 * @notes
 * - Locks are always acquired in lexicographic key order, so two transfers
 *   targeting each other's accounts in opposite directions cannot deadlock.
 * - Acquisition waits are bounded; contention past the configured wait
 *   surfaces as ErrLockBusy instead of blocking indefinitely.
 */

package app

import (
	"context"
	"sort"
	"sync"
	"time"
)

type lockTable struct {
	mu      sync.Mutex
	locks   map[string]chan struct{}
	maxWait time.Duration
}

func newLockTable(maxWait time.Duration) *lockTable {
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &lockTable{
		locks:   make(map[string]chan struct{}),
		maxWait: maxWait,
	}
}

func (t *lockTable) lockFor(key string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		t.locks[key] = ch
	}
	return ch
}

// acquire takes the locks for the given keys in lexicographic order and
// returns a release function. On timeout or context cancellation it releases
// everything it already holds and returns ErrLockBusy or the context error.
func (t *lockTable) acquire(ctx context.Context, keys ...string) (func(), error) {
	ordered := append([]string(nil), keys...)
	sort.Strings(ordered)

	deadline := time.NewTimer(t.maxWait)
	defer deadline.Stop()

	var held []chan struct{}
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for i, key := range ordered {
		if i > 0 && key == ordered[i-1] {
			continue
		}
		ch := t.lockFor(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-deadline.C:
			release()
			return nil, ErrLockBusy
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}
