package bbsfw

import (
	"testing"
	"time"
)

func TestSlotCompleteBeforeWait(t *testing.T) {
	var s slot[int]
	s.arm()
	s.complete(42)
	v, ok := s.wait(time.Second)
	if !ok || v != 42 {
		t.Fatalf("wait = (%v, %v), want (42, true)", v, ok)
	}
}

func TestSlotCompleteWhileWaiting(t *testing.T) {
	var s slot[string]
	s.arm()
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.complete("answer")
	}()
	v, ok := s.wait(time.Second)
	if !ok || v != "answer" {
		t.Fatalf("wait = (%q, %v), want (\"answer\", true)", v, ok)
	}
}

func TestSlotTimeout(t *testing.T) {
	var s slot[int]
	s.arm()
	start := time.Now()
	v, ok := s.wait(20 * time.Millisecond)
	if ok {
		t.Fatalf("wait = (%v, true), want timeout", v)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("wait blocked for %v", time.Since(start))
	}

	// A completion arriving after the timeout is dropped, and the slot can
	// go through another full cycle.
	s.complete(1)
	s.arm()
	s.complete(2)
	v, ok = s.wait(time.Second)
	if !ok || v != 2 {
		t.Fatalf("wait = (%v, %v), want (2, true)", v, ok)
	}
}

func TestSlotCompleteUnarmed(t *testing.T) {
	var s slot[int]
	s.complete(7) // must not panic or block

	if v, ok := s.wait(10 * time.Millisecond); ok {
		t.Fatalf("wait on unarmed slot = (%v, true), want false", v)
	}
}

func TestSlotDisarm(t *testing.T) {
	var s slot[int]
	s.arm()
	s.disarm()
	s.complete(9)
	if v, ok := s.wait(10 * time.Millisecond); ok {
		t.Fatalf("wait after disarm = (%v, true), want false", v)
	}
}
