package realtime

import (
	"log/slog"
	"sync"

	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/eventqueue"
)

// AsyncSink queues events and delivers them to the wrapped sink on its own
// goroutine, so a slow consumer never stalls the socket reader. Delivery
// order matches arrival order.
type AsyncSink struct {
	next   EventSink
	queue  *eventqueue.Queue[InboundEvent]
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewAsyncSink starts the delivery goroutine. Call Close to stop it.
func NewAsyncSink(next EventSink, capacity int, logger *slog.Logger) *AsyncSink {
	if logger == nil {
		logger = slog.Default()
	}

	s := &AsyncSink{
		next:   next,
		queue:  eventqueue.New[InboundEvent](capacity),
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.deliverLoop()
	return s
}

// OnEvent enqueues event. Events arriving after Close are dropped.
func (s *AsyncSink) OnEvent(event InboundEvent) {
	if !s.queue.Push(event) {
		s.logger.Debug("async sink closed, dropping event", "kind", event.Kind)
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (s *AsyncSink) Close() {
	s.closeOnce.Do(s.queue.Close)
	<-s.done
}

// Stats returns queue statistics.
func (s *AsyncSink) Stats() eventqueue.Stats {
	return s.queue.Stats()
}

func (s *AsyncSink) deliverLoop() {
	defer close(s.done)

	for {
		event, ok := s.queue.Pop()
		if !ok {
			return
		}
		s.deliver(event)
	}
}

func (s *AsyncSink) deliver(event InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event sink panicked", "kind", event.Kind, "panic", r)
		}
	}()
	s.next.OnEvent(event)
}
