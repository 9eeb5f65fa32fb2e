package main

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/auth"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/cache"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/realtime"
)

type fakeManager struct {
	mu          sync.Mutex
	sessions    []realtime.Session
	sinks       []realtime.EventSink
	disconnects int
}

func (f *fakeManager) Connect(s realtime.Session, sink realtime.EventSink) error {
	if s.Token == "" {
		return realtime.ErrEmptyToken
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, s)
	f.sinks = append(f.sinks, sink)
	return nil
}

func (f *fakeManager) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func TestSessionBinder_FollowsSource(t *testing.T) {
	mgr := &fakeManager{}
	store := cache.NewStore(0)
	b := newSessionBinder(mgr, store, 8, false, nil)
	defer b.close()

	source := auth.NewSource(nil)
	source.Watch(b.apply)

	source.Set(&auth.Credentials{Token: "t1", SubjectID: "u1"})
	if len(mgr.sessions) != 1 || mgr.sessions[0].Token != "t1" {
		t.Fatalf("sessions = %+v, want one t1", mgr.sessions)
	}
	if _, ok := b.queueStats(); !ok {
		t.Error("queueStats not available after login")
	}

	// Events reach the cache through the async sink.
	mgr.sinks[0].OnEvent(realtime.InboundEvent{
		Kind: realtime.KindUnreadCountUpdate,
		Data: json.RawMessage(`{"unreadCount":7}`),
	})
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, ok := store.UnreadCount("u1"); ok && n == 7 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if n, _ := store.UnreadCount("u1"); n != 7 {
		t.Fatalf("UnreadCount = %d, want 7", n)
	}

	// Token refresh reconnects.
	source.Set(&auth.Credentials{Token: "t2", SubjectID: "u1"})
	if len(mgr.sessions) != 2 || mgr.sessions[1].Token != "t2" {
		t.Fatalf("sessions = %+v, want t1 then t2", mgr.sessions)
	}
	if _, ok := store.UnreadCount("u1"); !ok {
		t.Error("same-subject refresh reset the cache")
	}

	// Logout disconnects and drops the subject's cache.
	source.Clear()
	if mgr.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", mgr.disconnects)
	}
	if _, ok := store.UnreadCount("u1"); ok {
		t.Error("cache survived logout")
	}
	if _, ok := b.queueStats(); ok {
		t.Error("queueStats available after logout")
	}
}

func TestSessionBinder_SubjectChangeResetsCache(t *testing.T) {
	mgr := &fakeManager{}
	store := cache.NewStore(0)
	b := newSessionBinder(mgr, store, 8, true, nil)
	defer b.close()

	b.apply(&auth.Credentials{Token: "t1", SubjectID: "u1"})
	store.SetUnreadCount("u1", 3)

	b.apply(&auth.Credentials{Token: "t2", SubjectID: "u2"})
	if _, ok := store.UnreadCount("u1"); ok {
		t.Error("previous subject cache survived subject change")
	}

	// Re-applying the current session does not reconnect.
	b.apply(&auth.Credentials{Token: "t2", SubjectID: "u2"})
	if len(mgr.sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(mgr.sessions))
	}
}
