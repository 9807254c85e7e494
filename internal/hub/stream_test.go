package hub

import (
	"testing"
	"time"
)

func TestStream_Broadcast(t *testing.T) {
	s := NewStream[int]("test", WithBuffer(10))
	defer s.Close()

	a := s.Subscribe()
	b := s.Subscribe()

	s.Publish(1)
	s.Publish(2)

	for _, sub := range []*Subscription[int]{a, b} {
		for want := 1; want <= 2; want++ {
			select {
			case got := <-sub.C:
				if got != want {
					t.Errorf("got %d, want %d", got, want)
				}
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for value")
			}
		}
	}
}

func TestStream_ReplayDeliversOnlyLatest(t *testing.T) {
	s := NewStream[int]("test", WithBuffer(10), WithReplay())
	defer s.Close()

	// N prior emissions with nobody attached.
	for i := 1; i <= 5; i++ {
		s.Publish(i)
	}

	sub := s.Subscribe()

	select {
	case got := <-sub.C:
		if got != 5 {
			t.Errorf("replayed %d, want 5 (most recent)", got)
		}
	case <-time.After(time.Second):
		t.Fatal("late subscriber received nothing")
	}

	// No earlier values may follow.
	s.Publish(6)
	select {
	case got := <-sub.C:
		if got != 6 {
			t.Errorf("after replay got %d, want live value 6", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live value")
	}
}

func TestStream_NoReplayWithoutEmission(t *testing.T) {
	s := NewStream[int]("test", WithReplay())
	defer s.Close()

	sub := s.Subscribe()
	select {
	case v := <-sub.C:
		t.Errorf("received %d before any emission", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStream_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	var drops int
	s := NewStream[int]("test", WithBuffer(1), WithDropHook(func(string) { drops++ }))
	defer s.Close()

	slow := s.Subscribe()
	fast := s.Subscribe()

	// Fill the slow subscriber's buffer, then keep publishing. The fast
	// subscriber must be drained concurrently-free and see everything it has
	// room for; the publisher must never block.
	done := make(chan struct{})
	var got []int
	go func() {
		defer close(done)
		for v := range fast.C {
			got = append(got, v)
			if len(got) == 3 {
				return
			}
		}
	}()

	for i := 1; i <= 3; i++ {
		s.Publish(i)
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fast subscriber starved by slow subscriber")
	}

	if drops == 0 {
		t.Error("expected drops for the slow subscriber")
	}
	_ = slow
}

func TestStream_CancelDetaches(t *testing.T) {
	s := NewStream[int]("test", WithBuffer(10))
	defer s.Close()

	sub := s.Subscribe()
	if n := s.SubscriberCount(); n != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", n)
	}

	sub.Cancel()
	sub.Cancel() // Idempotent.

	if n := s.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount after Cancel = %d, want 0", n)
	}

	if _, ok := <-sub.C; ok {
		t.Error("expected channel closed after Cancel")
	}
}

func TestStream_CloseClosesSubscribers(t *testing.T) {
	s := NewStream[int]("test")
	sub := s.Subscribe()

	s.Close()
	s.Close() // Idempotent.

	if _, ok := <-sub.C; ok {
		t.Error("expected channel closed after stream Close")
	}

	// Publish after close is a no-op.
	s.Publish(1)

	// Subscribe after close yields a closed channel.
	late := s.Subscribe()
	if _, ok := <-late.C; ok {
		t.Error("expected closed channel for post-Close subscriber")
	}
}
