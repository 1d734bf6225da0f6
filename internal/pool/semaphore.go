package pool

import (
	"context"
	"time"
)

// semaphore is a bounded counting semaphore backed by a buffered channel.
// A leased session holds one permit until it is returned; idle sessions
// hold none, so capacity minus available is the number of leased sessions
// (plus any permit briefly held by maintenance work).
type semaphore chan struct{}

func newSemaphore(capacity int) semaphore {
	s := make(semaphore, capacity)
	for i := 0; i < capacity; i++ {
		s <- struct{}{}
	}
	return s
}

// acquire blocks until a permit is available or ctx is done.
func (s semaphore) acquire(ctx context.Context) error {
	select {
	case <-s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryAcquireTimeout attempts to acquire a permit within d, without
// otherwise observing ctx — used by clean_pool's short opportunistic
// acquire where a saturated pool should just exit, not block.
func (s semaphore) tryAcquireTimeout(d time.Duration) bool {
	// A free permit always wins, even when d is zero and the timer would
	// otherwise be ready at the same moment.
	select {
	case <-s:
		return true
	default:
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s:
		return true
	case <-timer.C:
		return false
	}
}

func (s semaphore) release() {
	select {
	case s <- struct{}{}:
	default:
		panic("pool: semaphore released beyond capacity")
	}
}

// available reports the current permit count — approximate under
// concurrent use, intended for gauges only.
func (s semaphore) available() int {
	return len(s)
}

func (s semaphore) capacity() int {
	return cap(s)
}
