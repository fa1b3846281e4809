package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := New(2)
	var inFlight atomic.Int32
	var maxSeen atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func() error {
				n := inFlight.Add(1)
				for {
					cur := maxSeen.Load()
					if n <= cur || maxSeen.CompareAndSwap(cur, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxSeen.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent executions, saw %d", maxSeen.Load())
	}
}

func TestPoolReturnsFnError(t *testing.T) {
	pool := New(1)
	wantErr := context.Canceled
	err := pool.Do(context.Background(), func() error { return wantErr })
	if err != wantErr {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestPoolRespectsContextCancellation(t *testing.T) {
	pool := New(1)
	ctx, cancel := context.WithCancel(context.Background())

	blocked := make(chan struct{})
	go pool.Do(context.Background(), func() error {
		close(blocked)
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	<-blocked
	cancel()

	err := pool.Do(ctx, func() error { return nil })
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
