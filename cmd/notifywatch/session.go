package main

import (
	"log/slog"
	"sync"

	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/auth"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/cache"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/eventqueue"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/realtime"
)

// sessionManager is the part of realtime.Manager the binder drives.
type sessionManager interface {
	Connect(session realtime.Session, sink realtime.EventSink) error
	Disconnect()
}

// sessionBinder follows login and logout from the credential source,
// connecting the manager with a cache sink for the current subject.
type sessionBinder struct {
	mgr        sessionManager
	store      *cache.Store
	bufferSize int
	verbose    bool
	logger     *slog.Logger

	mu      sync.Mutex
	session realtime.Session
	subject string
	sink    *realtime.AsyncSink
}

func newSessionBinder(mgr sessionManager, store *cache.Store, bufferSize int, verbose bool, logger *slog.Logger) *sessionBinder {
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionBinder{
		mgr:        mgr,
		store:      store,
		bufferSize: bufferSize,
		verbose:    verbose,
		logger:     logger,
	}
}

// apply is an auth.Source watcher.
func (b *sessionBinder) apply(creds *auth.Credentials) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.sink
	if creds == nil {
		b.mgr.Disconnect()
		if b.subject != "" {
			b.store.Reset(b.subject)
		}
		b.session, b.subject, b.sink = realtime.Session{}, "", nil
		if old != nil {
			old.Close()
		}
		return
	}

	if old != nil && b.session.Equal(creds.Session()) {
		return
	}

	var next realtime.EventSink = cache.NewSink(b.store, creds.SubjectID, b.logger)
	if b.verbose {
		next = logEvents(next, b.logger)
	}
	sink := realtime.NewAsyncSink(next, b.bufferSize, b.logger)

	if err := b.mgr.Connect(creds.Session(), sink); err != nil {
		b.logger.Error("connect failed", "error", err)
		sink.Close()
		return
	}
	if b.subject != "" && b.subject != creds.SubjectID {
		b.store.Reset(b.subject)
	}
	b.session, b.subject, b.sink = creds.Session(), creds.SubjectID, sink
	if old != nil {
		old.Close()
	}
}

// queueStats reports the current event queue, if any.
func (b *sessionBinder) queueStats() (eventqueue.Stats, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sink == nil {
		return eventqueue.Stats{}, false
	}
	return b.sink.Stats(), true
}

func (b *sessionBinder) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sink != nil {
		b.sink.Close()
		b.sink = nil
	}
}

func logEvents(next realtime.EventSink, logger *slog.Logger) realtime.EventSink {
	return realtime.SinkFunc(func(e realtime.InboundEvent) {
		logger.Info("event",
			"kind", e.Kind,
			"data", string(e.Data),
			"received_at", e.ReceivedAt,
		)
		next.OnEvent(e)
	})
}
