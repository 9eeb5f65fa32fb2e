package auth

import "sync"

// Source holds the current credentials. Watchers are called synchronously,
// in registration order, with the new credentials on Set and nil on Clear.
// Updates are delivered in the order they were applied, so the last
// notification always matches Current. Watchers must not call Set or Clear.
type Source struct {
	// update serializes Set and Clear with their notifications.
	update sync.Mutex

	mu       sync.Mutex
	current  *Credentials
	watchers []*watcherEntry
}

type watcherEntry struct {
	fn func(*Credentials)
}

// NewSource creates a source, optionally seeded with credentials.
func NewSource(initial *Credentials) *Source {
	return &Source{current: initial}
}

// Current returns the active credentials, or nil after Clear.
func (s *Source) Current() *Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set replaces the credentials. Setting credentials equal to the current
// ones does not notify watchers.
func (s *Source) Set(c *Credentials) {
	if c == nil {
		s.Clear()
		return
	}

	s.update.Lock()
	defer s.update.Unlock()

	s.mu.Lock()
	if s.current.Equal(c) {
		s.mu.Unlock()
		return
	}
	cp := *c
	s.current = &cp
	watchers := s.watchers
	s.mu.Unlock()

	for _, w := range watchers {
		w.fn(&cp)
	}
}

// Clear drops the credentials (logout).
func (s *Source) Clear() {
	s.update.Lock()
	defer s.update.Unlock()

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current = nil
	watchers := s.watchers
	s.mu.Unlock()

	for _, w := range watchers {
		w.fn(nil)
	}
}

// Watch registers fn and returns a function that removes it.
func (s *Source) Watch(fn func(*Credentials)) (unwatch func()) {
	entry := &watcherEntry{fn: fn}

	s.mu.Lock()
	s.watchers = append(s.watchers[:len(s.watchers):len(s.watchers)], entry)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			next := make([]*watcherEntry, 0, len(s.watchers))
			for _, w := range s.watchers {
				if w != entry {
					next = append(next, w)
				}
			}
			s.watchers = next
		})
	}
}
