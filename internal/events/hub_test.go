package events

import (
	"testing"
)

func TestHubRecentReturnsLastNOldestFirst(t *testing.T) {
	t.Parallel()

	h := NewHub(10)
	h.Publish("a", map[string]string{"k": "A"})
	h.Publish("b", map[string]string{"k": "B"})
	h.Publish("c", map[string]string{"k": "C"})

	recent := h.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2): got %d events", len(recent))
	}
	if recent[0].Type != "b" || recent[1].Type != "c" {
		t.Fatalf("Recent(2): got types %q, %q; want b, c", recent[0].Type, recent[1].Type)
	}
}

func TestHubRecentClampsToBuffered(t *testing.T) {
	t.Parallel()

	h := NewHub(10)
	h.Publish("only", nil)

	recent := h.Recent(100)
	if len(recent) != 1 {
		t.Fatalf("Recent(100) with one event: got %d", len(recent))
	}
	if h.Recent(0) != nil {
		t.Fatal("Recent(0): expected nil")
	}
}

func TestHubRingOverwritesOldest(t *testing.T) {
	t.Parallel()

	h := NewHub(3)
	h.Publish("e1", nil)
	h.Publish("e2", nil)
	h.Publish("e3", nil)
	h.Publish("e4", nil)

	recent := h.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Recent(3): got %d events", len(recent))
	}
	if recent[0].Type != "e2" || recent[2].Type != "e4" {
		t.Fatalf("ring did not overwrite oldest: got %q .. %q", recent[0].Type, recent[2].Type)
	}
}

func TestHubSubscribeDelivers(t *testing.T) {
	t.Parallel()

	h := NewHub(10)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish("task.created", map[string]string{"id": "task_1"})

	ev := <-ch
	if ev.Type != "task.created" {
		t.Fatalf("got type %q", ev.Type)
	}
	if len(ev.Data) == 0 {
		t.Fatal("expected payload")
	}
}

func TestHubDropsFullSubscriber(t *testing.T) {
	t.Parallel()

	h := NewHub(10)
	ch, cancel := h.Subscribe()
	defer cancel()

	if h.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount: got %d", h.SubscriberCount())
	}

	// Never drain; overflow the subscriber queue by one.
	for i := 0; i <= subscriberBuffer; i++ {
		h.Publish("flood", nil)
	}

	if h.SubscriberCount() != 0 {
		t.Fatalf("full subscriber not dropped, count=%d", h.SubscriberCount())
	}

	// Dropped subscriber's channel is closed after buffered events drain.
	n := 0
	for range ch {
		n++
	}
	if n != subscriberBuffer {
		t.Fatalf("drained %d buffered events, want %d", n, subscriberBuffer)
	}

	// Publishing after the drop must not panic or block.
	h.Publish("after", nil)

	// Cancel after the hub already removed the subscriber is a no-op.
	cancel()
}

func TestHubCancelDeregisters(t *testing.T) {
	t.Parallel()

	h := NewHub(10)
	_, cancel := h.Subscribe()
	cancel()

	if h.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount after cancel: got %d", h.SubscriberCount())
	}
	h.Publish("noop", nil)
}
