package stream

import "testing"

func TestSubscribePublish(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("AG_1")
	defer cancel()

	if n := h.Publish("AG_1", []byte("hello")); n != 1 {
		t.Fatalf("delivered to %d subscribers, want 1", n)
	}
	if got := string(<-ch); got != "hello" {
		t.Fatalf("received %q", got)
	}
}

func TestPublishWrongKey(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe("AG_1")
	defer cancel()

	if n := h.Publish("AG_2", []byte("hello")); n != 0 {
		t.Fatalf("delivered to %d subscribers, want 0", n)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("AG_1")

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	if n := h.Subscribers("AG_1"); n != 0 {
		t.Fatalf("subscribers = %d, want 0", n)
	}
	if n := h.Publish("AG_1", []byte("late")); n != 0 {
		t.Fatalf("delivered to %d subscribers after cancel, want 0", n)
	}

	// cancel is idempotent
	cancel()
}

// A subscriber that stops draining must not block the callback path.
func TestPublishSkipsFullBuffer(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("AG_1")
	defer cancel()

	delivered := 0
	for i := 0; i < 10; i++ {
		delivered += h.Publish("AG_1", []byte("msg"))
	}
	if delivered != cap(ch) {
		t.Fatalf("delivered = %d, want buffer capacity %d", delivered, cap(ch))
	}
}

func TestMultipleSubscribers(t *testing.T) {
	h := NewHub()
	ch1, cancel1 := h.Subscribe("AG_1")
	ch2, cancel2 := h.Subscribe("AG_1")
	defer cancel1()
	defer cancel2()

	if n := h.Subscribers("AG_1"); n != 2 {
		t.Fatalf("subscribers = %d, want 2", n)
	}
	if n := h.Publish("AG_1", []byte("fanout")); n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
	if string(<-ch1) != "fanout" || string(<-ch2) != "fanout" {
		t.Fatal("both subscribers must receive the message")
	}
}
