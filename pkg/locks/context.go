package locks

import (
	"context"
	"sync"
)

// lockContext acquires mu, returning ctx.Err() instead of blocking
// forever if ctx is cancelled first. Every call that gets past the
// initial ctx check takes the mutex in one helper goroutine.
func lockContext(ctx context.Context, mu *sync.Mutex) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		mu.Lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// The goroutine above may still be blocked in mu.Lock() and
		// will acquire it later; the goroutine below waits for that
		// and unlocks it, so the late acquisition is released exactly
		// once and the caller never holds it.
		go func() {
			<-done
			mu.Unlock()
		}()
		return ctx.Err()
	}
}
