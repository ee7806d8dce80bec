package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BewareOfTheRocks/rockviz/core"
	"github.com/BewareOfTheRocks/rockviz/model"
)

var (
	// ErrBodyExists is returned when adding a body whose name is taken.
	ErrBodyExists = errors.New("body already exists")
	// ErrBodyNotFound is returned for lookups and removals of unknown names.
	ErrBodyNotFound = errors.New("body not found")
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventBodyAdded EventType = iota
	EventBodyRemoved
)

// Event is emitted to subscribers when the body population changes.
// Subscribers must treat the body as read-only; mutation stays with the
// frame tick.
type Event struct {
	Type EventType
	Body *core.Body
}

// Store is the in-memory registry of scene bodies, keyed by name. Listing
// preserves insertion order, which keeps frame iteration and the meteor
// navigation order deterministic.
type Store struct {
	mu     sync.RWMutex
	bodies map[string]*core.Body
	order  []string

	subs    map[int]func(Event)
	nextSub int
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		bodies: make(map[string]*core.Body),
		subs:   make(map[int]func(Event)),
	}
}

// AddBody registers a body under its name. Names are unique; adding a
// duplicate returns ErrBodyExists.
func (s *Store) AddBody(b *core.Body) error {
	if b == nil {
		return fmt.Errorf("%w: nil body", core.ErrInvalidBody)
	}

	s.mu.Lock()
	if _, exists := s.bodies[b.Name()]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyExists, b.Name())
	}
	s.bodies[b.Name()] = b
	s.order = append(s.order, b.Name())
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, Event{Type: EventBodyAdded, Body: b})
	return nil
}

// GetBody looks a body up by name.
func (s *Store) GetBody(name string) (*core.Body, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bodies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBodyNotFound, name)
	}
	return b, nil
}

// ListBodies returns all bodies in insertion order.
func (s *Store) ListBodies() []*core.Body {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*core.Body, 0, len(s.order))
	for _, name := range s.order {
		res = append(res, s.bodies[name])
	}
	return res
}

// ListByKind returns the bodies of one kind, in insertion order.
func (s *Store) ListByKind(kind model.BodyKind) []*core.Body {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*core.Body
	for _, name := range s.order {
		if b := s.bodies[name]; b.Kind() == kind {
			res = append(res, b)
		}
	}
	return res
}

// FirstByKind returns the first body of one kind, which is how the scene
// finds "the" sun or earth.
func (s *Store) FirstByKind(kind model.BodyKind) (*core.Body, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range s.order {
		if b := s.bodies[name]; b.Kind() == kind {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: kind %s", ErrBodyNotFound, kind)
}

// RemoveBody deletes a body by name.
func (s *Store) RemoveBody(name string) error {
	s.mu.Lock()
	b, ok := s.bodies[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyNotFound, name)
	}
	delete(s.bodies, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, Event{Type: EventBodyRemoved, Body: b})
	return nil
}

// Len returns the number of stored bodies.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bodies)
}

// Clear removes everything and returns how many bodies went. No per-body
// events fire; teardown resets subscribers wholesale anyway.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.bodies)
	s.bodies = make(map[string]*core.Body)
	s.order = s.order[:0]
	return n
}

// Subscribe registers a callback for store events and returns its
// unsubscribe function. Callbacks run outside the store lock, on the
// goroutine that mutated the store.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// snapshotSubs copies the subscriber set; callers hold the lock.
func (s *Store) snapshotSubs() []func(Event) {
	res := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		res = append(res, fn)
	}
	return res
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
