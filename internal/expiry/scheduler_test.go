package expiry

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskFiresAfterDelay(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	delay := 50 * time.Millisecond
	start := time.Now()
	fired := make(chan time.Duration, 1)

	s.After(delay, func() { fired <- time.Since(start) })

	select {
	case elapsed := <-fired:
		if elapsed < delay {
			t.Fatalf("task fired early: %v < %v", elapsed, delay)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}

	if n := s.Pending(); n != 0 {
		t.Fatalf("pending after firing: got %d, want 0", n)
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired atomic.Bool
	task := s.After(30*time.Millisecond, func() { fired.Store(true) })

	if s.Pending() != 1 {
		t.Fatalf("pending: got %d, want 1", s.Pending())
	}
	if !task.Cancel() {
		t.Fatal("first Cancel should report true")
	}
	if task.Cancel() {
		t.Fatal("second Cancel should report false")
	}

	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Fatal("cancelled task fired")
	}
	if s.Pending() != 0 {
		t.Fatalf("pending: got %d, want 0", s.Pending())
	}
}

func TestCancelAfterFireReportsFalse(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	done := make(chan struct{})
	task := s.After(time.Millisecond, func() { close(done) })
	<-done

	if task.Cancel() {
		t.Fatal("Cancel after firing should report false")
	}
}

// Exactly one of fire or cancel wins, however they interleave.
func TestCancelRacesWithFire(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	for i := 0; i < 200; i++ {
		var fired atomic.Int32
		task := s.After(time.Duration(i%3)*time.Microsecond, func() { fired.Add(1) })
		cancelled := task.Cancel()

		if cancelled {
			time.Sleep(time.Millisecond)
			if fired.Load() != 0 {
				t.Fatalf("iteration %d: task both cancelled and fired", i)
			}
			continue
		}
		deadline := time.Now().Add(time.Second)
		for fired.Load() == 0 && time.Now().Before(deadline) {
			time.Sleep(100 * time.Microsecond)
		}
		if fired.Load() != 1 {
			t.Fatalf("iteration %d: task neither cancelled nor fired once (fired=%d)", i, fired.Load())
		}
	}
}

func TestStopCancelsPending(t *testing.T) {
	s := NewScheduler()

	var fired atomic.Int32
	for i := 0; i < 10; i++ {
		s.After(50*time.Millisecond, func() { fired.Add(1) })
	}
	s.Stop()

	late := s.After(time.Millisecond, func() { fired.Add(1) })
	if late.Cancel() {
		t.Fatal("task scheduled after Stop should already be terminal")
	}

	time.Sleep(100 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Fatalf("fired after Stop: %d", n)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending after Stop: %d", s.Pending())
	}
}

func TestManyConcurrentTasks(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var wg sync.WaitGroup
	var fired atomic.Int32
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := make(chan struct{})
			s.After(5*time.Millisecond, func() {
				fired.Add(1)
				close(done)
			})
			<-done
		}()
	}
	wg.Wait()

	if n := fired.Load(); n != 100 {
		t.Fatalf("fired: got %d, want 100", n)
	}
}
