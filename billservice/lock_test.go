package billservice

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	var running int32
	var maxConcurrent int32

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("bill-1")
			defer unlock()

			cur := atomic.AddInt32(&running, 1)
			if cur > atomic.LoadInt32(&maxConcurrent) {
				atomic.StoreInt32(&maxConcurrent, cur)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	wg.Wait()

	if maxConcurrent != 1 {
		t.Fatalf("expected exclusive access for one key, saw %d concurrent holders", maxConcurrent)
	}
}

func TestKeyedMutexAllowsDifferentKeysConcurrently(t *testing.T) {
	km := newKeyedMutex()
	start := make(chan struct{})
	var wg sync.WaitGroup
	var maxConcurrent int32
	var running int32

	for _, key := range []string{"bill-1", "bill-2"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			<-start
			unlock := km.lock(key)
			defer unlock()
			cur := atomic.AddInt32(&running, 1)
			if cur > atomic.LoadInt32(&maxConcurrent) {
				atomic.StoreInt32(&maxConcurrent, cur)
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}(key)
	}
	close(start)
	wg.Wait()

	if maxConcurrent < 2 {
		t.Fatalf("expected unrelated bills to run concurrently, saw %d", maxConcurrent)
	}
}
