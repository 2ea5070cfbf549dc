package bbsfw

import (
	"sync"
	"time"
)

// slot is a single-outstanding rendezvous pairing one request issued on a
// caller goroutine with one response decoded on the receive goroutine. The
// zero value is an unarmed slot. complete on an unarmed slot is a no-op, so
// late responses arriving after a timeout are dropped on the floor. Only one
// arm/wait pair may be outstanding at a time; arming again while a wait is
// pending leaves the pending waiter behind on the old channel.
type slot[T any] struct {
	mu sync.Mutex
	ch chan T
}

func (s *slot[T]) arm() {
	s.mu.Lock()
	s.ch = make(chan T, 1)
	s.mu.Unlock()
}

func (s *slot[T]) disarm() {
	s.mu.Lock()
	s.ch = nil
	s.mu.Unlock()
}

// complete hands v to the armed waiter, if any, and disarms.
func (s *slot[T]) complete(v T) {
	s.mu.Lock()
	ch := s.ch
	s.ch = nil
	s.mu.Unlock()
	if ch != nil {
		ch <- v
	}
}

// wait blocks until a completion arrives or timeout elapses. The slot is
// disarmed either way. Returns false on timeout or when the slot was never
// armed.
func (s *slot[T]) wait(timeout time.Duration) (T, bool) {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()

	var zero T
	if ch == nil {
		return zero, false
	}

	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
	}

	s.mu.Lock()
	if s.ch == ch {
		s.ch = nil
	}
	s.mu.Unlock()

	// A completion may have raced the timer; the channel is buffered, so it
	// is either already there or lost.
	select {
	case v := <-ch:
		return v, true
	default:
		return zero, false
	}
}
