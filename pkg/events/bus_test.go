package events

import (
	"testing"
	"time"
)

func TestMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	bus.Publish(NewEvent(EventRunStart, "test"))

	select {
	case event := <-ch:
		if event.Type != EventRunStart {
			t.Errorf("expected EventRunStart, got %s", event.Type)
		}
		if event.Data != "test" {
			t.Errorf("expected data 'test', got %v", event.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestMemoryBusFilter(t *testing.T) {
	bus := NewMemoryBus()
	ch := bus.Subscribe(EventRunEnd)
	defer bus.Unsubscribe(ch)

	bus.Publish(NewEvent(EventCaseResult, CaseData{Name: "dashboard a0", Pass: true}))
	bus.Publish(NewEvent(EventRunEnd, RunData{Pass: true, Cases: 6}))

	select {
	case event := <-ch:
		if event.Type != EventRunEnd {
			t.Errorf("expected EventRunEnd, got %s", event.Type)
		}
		data, ok := event.Data.(RunData)
		if !ok || data.Cases != 6 {
			t.Errorf("unexpected payload %#v", event.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}

	select {
	case event := <-ch:
		t.Errorf("unexpected event: %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusMultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	defer bus.Unsubscribe(ch1)
	defer bus.Unsubscribe(ch2)

	bus.Publish(NewEvent(EventGeneratorResolved, "factory"))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case event := <-ch:
			if event.Type != EventGeneratorResolved {
				t.Errorf("expected EventGeneratorResolved, got %s", event.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestMemoryBusHistory(t *testing.T) {
	bus := NewMemoryBus()

	t1 := time.Now()
	bus.Publish(NewEvent(EventRunStart, "first"))
	time.Sleep(10 * time.Millisecond)
	t2 := time.Now()
	bus.Publish(NewEvent(EventRunEnd, "second"))

	all := bus.History(t1)
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}

	since := bus.History(t2)
	if len(since) != 1 {
		t.Fatalf("expected 1 event since t2, got %d", len(since))
	}
	if since[0].Data != "second" {
		t.Errorf("expected 'second', got %v", since[0].Data)
	}
}

func TestMemoryBusHistoryLimit(t *testing.T) {
	bus := NewMemoryBus(WithHistoryLimit(3))
	for i := 0; i < 5; i++ {
		bus.Publish(NewEvent(EventCaseResult, i))
	}

	h := bus.History(time.Time{})
	if len(h) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(h))
	}
	if h[0].Data != 2 || h[2].Data != 4 {
		t.Errorf("expected the newest events to survive, got %v..%v", h[0].Data, h[2].Data)
	}
}

func TestMemoryBusRun(t *testing.T) {
	bus := NewMemoryBus()

	a := NewEvent(EventRunStart, nil)
	a.RunID = "run-a"
	b := NewEvent(EventRunStart, nil)
	b.RunID = "run-b"
	c := NewEvent(EventRunEnd, nil)
	c.RunID = "run-a"
	for _, e := range []Event{a, b, c} {
		bus.Publish(e)
	}

	got := bus.Run("run-a")
	if len(got) != 2 {
		t.Fatalf("expected 2 events for run-a, got %d", len(got))
	}
	if got[0].Type != EventRunStart || got[1].Type != EventRunEnd {
		t.Errorf("unexpected order: %s, %s", got[0].Type, got[1].Type)
	}
}

func TestMemoryBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewMemoryBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for i := 0; i < 70; i++ {
		bus.Publish(NewEvent(EventCaseResult, i))
	}
	if bus.Dropped() != 6 {
		t.Errorf("expected 6 dropped deliveries, got %d", bus.Dropped())
	}
}

func TestMemoryBusHistoryEmpty(t *testing.T) {
	bus := NewMemoryBus()
	if events := bus.History(time.Time{}); len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	_, ok := <-ch
	if ok {
		t.Error("expected channel to be closed")
	}
	bus.Publish(NewEvent(EventRunEnd, nil))
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventCatalogLoaded, map[string]int{"widgets": 9})

	if event.Type != EventCatalogLoaded {
		t.Errorf("expected EventCatalogLoaded, got %s", event.Type)
	}
	if event.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}
