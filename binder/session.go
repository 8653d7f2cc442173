package binder

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	afbruntime "github.com/wippyai/afb-runtime"
	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/params"
)

var _ afbruntime.Session = (*Session)(nil)

// EventHandler receives event pushes for a session. data belongs to the
// handler.
type EventHandler func(event string, data *params.Params)

// Session is the state of one client across its requests.
type Session struct {
	b       *Binder
	values  sync.Map
	onEvent atomic.Pointer[EventHandler]
	id      string
	loa     atomic.Int32
}

// NewSession creates a client session with LOA 0.
func (b *Binder) NewSession() *Session {
	return &Session{b: b, id: uuid.NewString()}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) LOA() int       { return int(s.loa.Load()) }
func (s *Session) SetLOA(loa int) { s.loa.Store(int32(loa)) }

func (s *Session) Get(key string) (any, bool) { return s.values.Load(key) }
func (s *Session) Set(key string, value any)  { s.values.Store(key, value) }
func (s *Session) Delete(key string)          { s.values.Delete(key) }

// OnEvent installs the handler receiving pushes of subscribed events.
func (s *Session) OnEvent(h EventHandler) {
	s.onEvent.Store(&h)
}

func (s *Session) deliver(event string, data *params.Params) bool {
	h := s.onEvent.Load()
	if h == nil || *h == nil {
		data.Release()
		return false
	}
	(*h)(event, data)
	return true
}

// CallAsync calls api/verb on behalf of this session.
func (s *Session) CallAsync(api, verb string, args *params.Params, cb afbruntime.ReplyFunc) {
	s.b.dispatch(s, api, verb, args, cb)
}

// Call calls api/verb on behalf of this session and waits for the reply.
func (s *Session) Call(ctx context.Context, api, verb string, args *params.Params) (*params.Params, error) {
	return s.b.call(ctx, s, api, verb, args)
}

// SessionValue reads a typed session value. A missing key or a value of
// another type is an error, never a panic.
func SessionValue[T any](s afbruntime.Session, key string) (T, error) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, errors.NotFound(errors.PhaseHost, "session value", key)
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Path(key).
			GoType(typeName[T]()).
			Detail("session value has type %T", v).
			Build()
	}
	return out, nil
}

func typeName[T any]() string {
	return fmt.Sprint(reflect.TypeFor[T]())
}
