// Package voice holds the pieces shared by voice-session transports.
package voice

import (
	"errors"
	"sync"

	"github.com/koscakluka/ema-interview/core/events"
)

var ErrEmitterClosed = errors.New("emitter closed")

type subscription struct {
	id      uint64
	handler func(events.Event)
}

// Emitter is a subscription registry keyed by event kind.
//
// Subscribe returns an unsubscribe handle instead of relying on handler
// identity, so the same function value can be registered more than once and
// each registration is removed independently.
//
// Emit calls the handlers registered for the event kind in subscription
// order, on the calling goroutine. Transports call Emit from a single
// dispatch goroutine, which gives subscribers a serialized event stream.
type Emitter struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[events.Kind][]subscription
	closed   bool
}

func NewEmitter() *Emitter {
	return &Emitter{handlers: map[events.Kind][]subscription{}}
}

func (e *Emitter) Subscribe(kind events.Kind, handler func(events.Event)) (func(), error) {
	if handler == nil {
		return nil, errors.New("nil handler")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEmitterClosed
	}
	if e.handlers == nil {
		e.handlers = map[events.Kind][]subscription{}
	}

	e.nextID++
	id := e.nextID
	e.handlers[kind] = append(e.handlers[kind], subscription{id: id, handler: handler})

	once := sync.Once{}
	return func() { once.Do(func() { e.remove(kind, id) }) }, nil
}

func (e *Emitter) remove(kind events.Kind, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.handlers[kind]
	for i, sub := range subs {
		if sub.id == id {
			// Copy so snapshots taken by an in-flight Emit stay intact.
			updated := make([]subscription, 0, len(subs)-1)
			updated = append(updated, subs[:i]...)
			updated = append(updated, subs[i+1:]...)
			if len(updated) == 0 {
				delete(e.handlers, kind)
			} else {
				e.handlers[kind] = updated
			}
			return
		}
	}
}

func (e *Emitter) Emit(event events.Event) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return
	}
	subs := e.handlers[event.Kind()]
	e.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(event)
	}
}

// Count returns the number of handlers registered for kind.
func (e *Emitter) Count(kind events.Kind) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.handlers[kind])
}

// Close drops every subscription and rejects new ones.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.handlers = nil
}
