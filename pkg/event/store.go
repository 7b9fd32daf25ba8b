package event

import (
	"sync"
)

// Store is an append-only, insertion-ordered collection of captured
// events. Append is safe under concurrent producers: the polling loop
// and the DevTools subscription callback both write to the same store.
type Store struct {
	mu     sync.Mutex
	events []CapturedEvent
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds an event to the end of the sequence.
func (s *Store) Append(e CapturedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a snapshot of the sequence in insertion order. The
// snapshot is isolated: mutating a returned payload or origin timestamp
// never alters the stored event.
func (s *Store) Events() []CapturedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CapturedEvent, len(s.events))
	for i, e := range s.events {
		e.Payload = e.Payload.Clone()
		if e.OriginTimestamp != nil {
			t := *e.OriginTimestamp
			e.OriginTimestamp = &t
		}
		out[i] = e
	}
	return out
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// CountBySource tallies stored events per source.
func (s *Store) CountBySource() map[Source]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Source]int)
	for _, e := range s.events {
		counts[e.Source]++
	}
	return counts
}
