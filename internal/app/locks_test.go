package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLockTableAcquireRelease(t *testing.T) {
	locks := newLockTable(50 * time.Millisecond)
	ctx := context.Background()

	release, err := locks.acquire(ctx, "USER001/SAVINGS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	release()

	// A released lock is immediately reacquirable.
	release, err = locks.acquire(ctx, "USER001/SAVINGS")
	if err != nil {
		t.Fatalf("unexpected error after release: %v", err)
	}
	release()
}

func TestLockTableContentionTimesOut(t *testing.T) {
	locks := newLockTable(20 * time.Millisecond)
	ctx := context.Background()

	release, err := locks.acquire(ctx, "USER001/SAVINGS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer release()

	_, err = locks.acquire(ctx, "USER001/SAVINGS")
	if !errors.Is(err, ErrLockBusy) {
		t.Fatalf("expected ErrLockBusy, got %v", err)
	}
}

func TestLockTableContextCancellation(t *testing.T) {
	locks := newLockTable(time.Second)

	release, err := locks.acquire(context.Background(), "USER001/SAVINGS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locks.acquire(ctx, "USER001/SAVINGS")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLockTableDeduplicatesKeys(t *testing.T) {
	locks := newLockTable(20 * time.Millisecond)

	// The same key twice must not self-deadlock.
	release, err := locks.acquire(context.Background(), "USER001/SAVINGS", "USER001/SAVINGS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	release()
}

func TestLockTableOpposingTransfersDoNotDeadlock(t *testing.T) {
	locks := newLockTable(2 * time.Second)
	keyA := "USER001/SAVINGS"
	keyB := "USER002/CHECKING"

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		keys := []string{keyA, keyB}
		if i == 1 {
			keys = []string{keyB, keyA}
		}
		wg.Add(1)
		go func(keys []string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				release, err := locks.acquire(context.Background(), keys...)
				if err != nil {
					errs <- err
					return
				}
				release()
			}
		}(keys)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error under contention: %v", err)
	}
}
