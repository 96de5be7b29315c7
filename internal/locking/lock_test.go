package locking

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalSerializesSameKey(t *testing.T) {
	locker := NewLocal()
	ctx := context.Background()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := locker.Acquire(ctx, "AcmeCorp")
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("expected exclusive access, saw %d concurrent holders", maxActive)
	}
}

func TestLocalAllowsDifferentKeys(t *testing.T) {
	locker := NewLocal()
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, "AcmeCorp")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := locker.Acquire(ctx, "Globex")
		if err != nil {
			t.Errorf("acquire failed: %v", err)
			return
		}
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key should not block")
	}
}

func TestLocalRejectsEmptyKey(t *testing.T) {
	locker := NewLocal()
	if _, err := locker.Acquire(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}
