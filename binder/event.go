package binder

import (
	"sync"

	"go.uber.org/zap"

	afbruntime "github.com/wippyai/afb-runtime"
	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/params"
)

var _ afbruntime.Event = (*Event)(nil)

// Event broadcasts data to the sessions subscribed to it.
type Event struct {
	b         *Binder
	listeners map[string]*Session
	name      string
	mu        sync.RWMutex
}

func (b *Binder) newEvent(name string) (*Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.events[name]; exists {
		return nil, errors.AlreadyExists(errors.PhaseHost, "event", name)
	}
	ev := &Event{
		b:         b,
		name:      name,
		listeners: make(map[string]*Session),
	}
	b.events[name] = ev
	return ev, nil
}

// Event returns the event registered under its full name.
func (b *Binder) Event(name string) (*Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev, ok := b.events[name]
	return ev, ok
}

func (e *Event) Name() string { return e.name }

func sessionOf(rqt afbruntime.Request) (*Session, error) {
	s, ok := rqt.Session().(*Session)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseHost, "session not issued by binder")
	}
	return s, nil
}

// Subscribe adds the request's session to the listeners.
func (e *Event) Subscribe(rqt afbruntime.Request) error {
	s, err := sessionOf(rqt)
	if err != nil {
		return err
	}
	e.SubscribeSession(s)
	return nil
}

// SubscribeSession adds s to the listeners.
func (e *Event) SubscribeSession(s *Session) {
	e.mu.Lock()
	e.listeners[s.id] = s
	e.mu.Unlock()
}

// Unsubscribe removes the request's session from the listeners.
func (e *Event) Unsubscribe(rqt afbruntime.Request) error {
	s, err := sessionOf(rqt)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.listeners[s.id]; !ok {
		return errors.NotFound(errors.PhaseHost, "subscription", e.name)
	}
	delete(e.listeners, s.id)
	return nil
}

// Listeners returns the number of subscribed sessions.
func (e *Event) Listeners() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

// Push hands each listener its own clone of data and releases data.
func (e *Event) Push(data *params.Params) int {
	if data == nil {
		data = params.New(e.b.tc)
	}
	defer data.Release()

	e.mu.RLock()
	listeners := make([]*Session, 0, len(e.listeners))
	for _, s := range e.listeners {
		listeners = append(listeners, s)
	}
	e.mu.RUnlock()

	for _, s := range listeners {
		s.deliver(e.name, data.Clone())
	}
	if ce := e.b.logger.Check(zap.DebugLevel, "event pushed"); ce != nil {
		ce.Write(zap.String("event", e.name), zap.Int("listeners", len(listeners)))
	}
	return len(listeners)
}
