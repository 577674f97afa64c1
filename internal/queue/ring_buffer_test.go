package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"socwatch/internal/schema"
)

var testEventID int64

func newTestEvent() *schema.Event {
	testEventID++
	return &schema.Event{
		ID:   testEventID,
		TS:   time.Now().UnixMilli(),
		Type: schema.EventAuthFail,
		IP:   "203.0.113.7",
		User: "bob",
	}
}

func TestNewRingBuffer(t *testing.T) {
	t.Run("with valid size", func(t *testing.T) {
		rb := NewRingBuffer(100)
		if rb.Cap() != 100 {
			t.Errorf("Cap() = %d, want 100", rb.Cap())
		}
		if rb.Len() != 0 {
			t.Errorf("Len() = %d, want 0", rb.Len())
		}
	})

	t.Run("with zero size uses default", func(t *testing.T) {
		rb := NewRingBuffer(0)
		if rb.Cap() != 10000 {
			t.Errorf("Cap() = %d, want 10000 (default)", rb.Cap())
		}
	})
}

func TestRingBuffer_PushAndDrain(t *testing.T) {
	rb := NewRingBuffer(10)

	var pushed []*schema.Event
	for i := 0; i < 5; i++ {
		ev := newTestEvent()
		pushed = append(pushed, ev)
		if err := rb.Push(ev); err != nil {
			t.Fatalf("Push() error = %v", err)
		}
	}
	if rb.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", rb.Len())
	}

	got := rb.TryPopBatch(3)
	if len(got) != 3 {
		t.Fatalf("TryPopBatch(3) returned %d events", len(got))
	}
	for i, ev := range got {
		if ev.ID != pushed[i].ID {
			t.Errorf("event %d out of order: got id %d, want %d", i, ev.ID, pushed[i].ID)
		}
	}

	rest := rb.TryPopBatch(10)
	if len(rest) != 2 {
		t.Fatalf("TryPopBatch() returned %d events, want 2", len(rest))
	}
	if rb.TryPopBatch(10) != nil {
		t.Error("TryPopBatch() on empty queue must return nil")
	}
}

func TestRingBuffer_Full(t *testing.T) {
	rb := NewRingBuffer(2)

	if _, err := rb.PushBatch([]*schema.Event{newTestEvent(), newTestEvent()}); err != nil {
		t.Fatalf("PushBatch() error = %v", err)
	}

	err := rb.Push(newTestEvent())
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Push() on full queue = %v, want ErrQueueFull", err)
	}

	m := rb.Metrics()
	if m.Pushed != 2 || m.Dropped != 1 || m.Depth != 2 {
		t.Errorf("metrics = %+v, want pushed=2 dropped=1 depth=2", m)
	}
}

func TestRingBuffer_Wraparound(t *testing.T) {
	rb := NewRingBuffer(3)

	for cycle := 0; cycle < 5; cycle++ {
		want := []*schema.Event{newTestEvent(), newTestEvent(), newTestEvent()}
		if _, err := rb.PushBatch(want); err != nil {
			t.Fatalf("cycle %d: PushBatch() error = %v", cycle, err)
		}
		got := rb.TryPopBatch(3)
		if len(got) != 3 {
			t.Fatalf("cycle %d: drained %d events", cycle, len(got))
		}
		for i := range got {
			if got[i].ID != want[i].ID {
				t.Errorf("cycle %d: event %d out of order", cycle, i)
			}
		}
	}
}

func TestRingBuffer_ConcurrentPushAndPoll(t *testing.T) {
	rb := NewRingBuffer(64)

	const total = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			for rb.Push(newTestEvent()) != nil {
			}
		}
	}()

	drained := 0
	for drained < total {
		batch := rb.TryPopBatch(16)
		if batch == nil {
			continue
		}
		drained += len(batch)
	}
	wg.Wait()

	if rb.Len() != 0 {
		t.Errorf("Len() = %d after full drain, want 0", rb.Len())
	}
	m := rb.Metrics()
	if m.Popped != total {
		t.Errorf("popped = %d, want %d", m.Popped, total)
	}
}

func TestRingBuffer_Close(t *testing.T) {
	rb := NewRingBuffer(10)
	if err := rb.Push(newTestEvent()); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	rb.Close()

	if err := rb.Push(newTestEvent()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Push() after close = %v, want ErrQueueClosed", err)
	}

	// Queued events stay drainable after close.
	got := rb.TryPopBatch(10)
	if len(got) != 1 {
		t.Fatalf("TryPopBatch() after close returned %d events, want 1", len(got))
	}

	if rb.TryPopBatch(10) != nil {
		t.Error("TryPopBatch() on drained closed queue must return nil")
	}
}
