// Package events is the in-process event channel shared by a compiler session.
package events

import "sync"

// Name identifies an event
type Name string

const (
	// BuildLog carries a build's accumulated log lines
	BuildLog Name = "buildLog"

	// Build requests a watch-triggered rebuild
	Build Name = "build"

	// BuildFinish carries the results of a finished build
	BuildFinish Name = "buildFinish"
)

// BuildLogPayload is the payload of a BuildLog event
type BuildLogPayload struct {
	BuildID  int64
	Messages []string
}

// Handler receives an event payload
type Handler func(payload any)

type subscription struct {
	id int
	fn Handler
}

// Emitter dispatches events to subscribed handlers synchronously, in
// subscription order.
type Emitter struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Name][]subscription
}

func New() *Emitter {
	return &Emitter{handlers: make(map[Name][]subscription)}
}

// On subscribes fn to name and returns a function that removes the subscription
func (e *Emitter) On(name Name, fn Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.handlers[name] = append(e.handlers[name], subscription{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		subs := e.handlers[name]
		for i, s := range subs {
			if s.id == id {
				e.handlers[name] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit calls every handler subscribed to name with payload
func (e *Emitter) Emit(name Name, payload any) {
	if e == nil {
		return
	}

	e.mu.RLock()
	subs := make([]subscription, len(e.handlers[name]))
	copy(subs, e.handlers[name])
	e.mu.RUnlock()

	for _, s := range subs {
		s.fn(payload)
	}
}
