package realtime

import (
	"fmt"
	"sync"
	"testing"
)

func TestAsyncSink_PreservesOrder(t *testing.T) {
	next := &eventRecorder{}
	s := NewAsyncSink(next, 2, nil)

	const n = 100
	for i := 0; i < n; i++ {
		s.OnEvent(InboundEvent{Kind: EventKind(fmt.Sprintf("k%03d", i))})
	}
	s.Close()

	got := next.received()
	if len(got) != n {
		t.Fatalf("delivered %d events, want %d", len(got), n)
	}
	for i, ev := range got {
		if want := EventKind(fmt.Sprintf("k%03d", i)); ev.Kind != want {
			t.Fatalf("event[%d] = %q, want %q", i, ev.Kind, want)
		}
	}

	stats := s.Stats()
	if stats.Pushed != n || stats.Popped != n {
		t.Errorf("Stats = %+v, want pushed=popped=%d", stats, n)
	}
}

func TestAsyncSink_DropsAfterClose(t *testing.T) {
	next := &eventRecorder{}
	s := NewAsyncSink(next, 4, nil)
	s.Close()
	s.Close()

	s.OnEvent(InboundEvent{Kind: KindNotificationCreated})
	if got := next.count(); got != 0 {
		t.Errorf("delivered %d events after Close, want 0", got)
	}
}

func TestAsyncSink_SurvivesPanic(t *testing.T) {
	var mu sync.Mutex
	var seen []EventKind
	s := NewAsyncSink(SinkFunc(func(e InboundEvent) {
		if e.Kind == "boom" {
			panic("sink failure")
		}
		mu.Lock()
		seen = append(seen, e.Kind)
		mu.Unlock()
	}), 4, nil)

	s.OnEvent(InboundEvent{Kind: "boom"})
	s.OnEvent(InboundEvent{Kind: KindUnreadCountUpdate})
	s.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != KindUnreadCountUpdate {
		t.Errorf("seen = %v, want [%s]", seen, KindUnreadCountUpdate)
	}
}
