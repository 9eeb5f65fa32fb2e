package cache

import (
	"sort"
	"sync"
	"time"
)

// Query kinds invalidated by realtime events.
const (
	KindNotifications = "notifications"
	KindUnreadCount   = "unread_count"
)

// DefaultRecentLimit bounds the notifications kept per subject.
const DefaultRecentLimit = 50

// Key identifies a cached query.
type Key struct {
	Kind      string `json:"kind"`
	SubjectID string `json:"subject_id"`
}

// Entry is the invalidation record for one key.
type Entry struct {
	Key
	Generation    uint64    `json:"generation"`
	InvalidatedAt time.Time `json:"invalidated_at"`
}

// Notification is a notification pushed by the server.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ActorID   string    `json:"actor_id,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is a point-in-time copy of the store for diagnostics.
type Snapshot struct {
	Entries      []Entry                   `json:"entries"`
	UnreadCounts map[string]int            `json:"unread_counts"`
	Recent       map[string][]Notification `json:"recent"`
}

// Store tracks query generations, unread counts and recent notifications.
// Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	entries     map[Key]*Entry
	unread      map[string]int
	recent      map[string][]Notification
	recentLimit int
	now         func() time.Time
}

// NewStore creates an empty store keeping up to recentLimit notifications
// per subject (DefaultRecentLimit when <= 0).
func NewStore(recentLimit int) *Store {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &Store{
		entries:     make(map[Key]*Entry),
		unread:      make(map[string]int),
		recent:      make(map[string][]Notification),
		recentLimit: recentLimit,
		now:         time.Now,
	}
}

// Invalidate marks the query (kind, subjectID) stale and returns its new
// generation.
func (s *Store) Invalidate(kind, subjectID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidateLocked(Key{Kind: kind, SubjectID: subjectID})
}

func (s *Store) invalidateLocked(k Key) uint64 {
	e, ok := s.entries[k]
	if !ok {
		e = &Entry{Key: k}
		s.entries[k] = e
	}
	e.Generation++
	e.InvalidatedAt = s.now()
	return e.Generation
}

// Generation returns the current generation of a query, 0 if it was never
// invalidated.
func (s *Store) Generation(kind, subjectID string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[Key{Kind: kind, SubjectID: subjectID}]; ok {
		return e.Generation
	}
	return 0
}

// SetUnreadCount records the server-pushed unread count and invalidates the
// unread count query.
func (s *Store) SetUnreadCount(subjectID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread[subjectID] = count
	s.invalidateLocked(Key{Kind: KindUnreadCount, SubjectID: subjectID})
}

// UnreadCount returns the last pushed unread count.
func (s *Store) UnreadCount(subjectID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.unread[subjectID]
	return n, ok
}

// AddNotification prepends n to the subject's recent list and invalidates
// both the notification list and the unread count.
func (s *Store) AddNotification(subjectID string, n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]Notification{n}, s.recent[subjectID]...)
	if len(list) > s.recentLimit {
		list = list[:s.recentLimit]
	}
	s.recent[subjectID] = list

	s.invalidateLocked(Key{Kind: KindNotifications, SubjectID: subjectID})
	s.invalidateLocked(Key{Kind: KindUnreadCount, SubjectID: subjectID})
}

// Recent returns the subject's recent notifications, newest first.
func (s *Store) Recent(subjectID string) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.recent[subjectID]...)
}

// Reset drops everything cached for subjectID (logout).
func (s *Store) Reset(subjectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.entries {
		if k.SubjectID == subjectID {
			delete(s.entries, k)
		}
	}
	delete(s.unread, subjectID)
	delete(s.recent, subjectID)
}

// Snapshot copies the store. Entries are sorted by subject then kind.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Entries:      make([]Entry, 0, len(s.entries)),
		UnreadCounts: make(map[string]int, len(s.unread)),
		Recent:       make(map[string][]Notification, len(s.recent)),
	}
	for _, e := range s.entries {
		snap.Entries = append(snap.Entries, *e)
	}
	for k, v := range s.unread {
		snap.UnreadCounts[k] = v
	}
	for k, v := range s.recent {
		snap.Recent[k] = append([]Notification(nil), v...)
	}

	sort.Slice(snap.Entries, func(i, j int) bool {
		a, b := snap.Entries[i], snap.Entries[j]
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.Kind < b.Kind
	})
	return snap
}
