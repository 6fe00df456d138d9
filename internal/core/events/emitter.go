package events

import "sync"

// Subscription represents a single registered listener.
type Subscription struct {
	cancel func()
	active bool
	mu     sync.Mutex
}

// IsActive reports whether the subscription still receives events.
func (s *Subscription) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Cancel removes the listener from its emitter.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	if s.cancel != nil {
		s.cancel()
	}
}

// Emitter delivers values of type T to registered listeners. Delivery is
// synchronous and in subscription order, so a listener observes every event
// fired after it subscribed and before it cancelled.
type Emitter[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	order     []uint64
	listeners map[uint64]func(T)
	closed    bool
}

// NewEmitter creates an Emitter with no listeners.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{
		listeners: make(map[uint64]func(T)),
	}
}

// Subscribe registers handler and returns its subscription.
func (e *Emitter[T]) Subscribe(handler func(T)) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &Subscription{active: true}
	if e.closed {
		sub.active = false
		return sub
	}

	id := e.nextID
	e.nextID++
	e.order = append(e.order, id)
	e.listeners[id] = handler

	sub.cancel = func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
	return sub
}

// Fire delivers value to all currently registered listeners.
func (e *Emitter[T]) Fire(value T) {
	e.mu.Lock()
	handlers := make([]func(T), 0, len(e.listeners))
	for _, id := range e.order {
		if h, ok := e.listeners[id]; ok {
			handlers = append(handlers, h)
		}
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(value)
	}
}

// Close drops all listeners. Subsequent Subscribe calls return inactive
// subscriptions and Fire delivers to no one.
func (e *Emitter[T]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.listeners = make(map[uint64]func(T))
	e.order = nil
}
