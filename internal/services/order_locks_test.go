package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	locks := newKeyedMutex()
	ctx := context.Background()

	unlock, err := locks.Lock(ctx, "ord_1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		release, err := locks.Lock(ctx, "ord_1")
		if err != nil {
			return
		}
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatalf("second holder must wait for the first")
	case <-time.After(30 * time.Millisecond):
	}

	other, err := locks.Lock(ctx, "ord_2")
	if err != nil {
		t.Fatalf("different keys must not block: %v", err)
	}
	other()

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second holder never acquired the lock")
	}
	unlock()
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	locks := newKeyedMutex()
	unlock, err := locks.Lock(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locks.Lock(ctx, "ord_1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	unlock()
	if locks.size() != 0 {
		t.Fatalf("expected entries to be dropped, got %d", locks.size())
	}
}
