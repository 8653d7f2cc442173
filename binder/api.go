package binder

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	afbruntime "github.com/wippyai/afb-runtime"
	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/params"
	"github.com/wippyai/afb-runtime/transcoder"
)

var _ afbruntime.Host = (*API)(nil)

// API is a named set of verbs. It implements afbruntime.Host for the code
// that registers it.
type API struct {
	b       *Binder
	session *Session
	logger  *zap.Logger
	verbs   map[string]*Verb
	name    string
	info    string
	order   []string
	mu      sync.RWMutex
	sealed  atomic.Bool
}

// Name returns the API name.
func (a *API) Name() string { return a.name }

// Info returns the API description.
func (a *API) Info() string { return a.info }

// SetInfo sets the API description.
func (a *API) SetInfo(info string) *API {
	a.mu.Lock()
	a.info = info
	a.mu.Unlock()
	return a
}

// AddVerb registers a verb built with NewVerb.
func (a *API) AddVerb(v *Verb) error {
	if v == nil || v.name == "" {
		return errors.InvalidInput(errors.PhaseHost, "verb requires a name")
	}
	if v.handler == nil {
		return errors.InvalidInput(errors.PhaseHost, "verb "+v.name+" has no callback")
	}
	if a.sealed.Load() {
		return errors.New(errors.PhaseHost, errors.KindSealed).
			Status(errors.StatusInvalidScope).
			Detail("api %s is sealed, cannot add verb %s", a.name, v.name).
			Build()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.verbs[v.name]; exists {
		return errors.AlreadyExists(errors.PhaseHost, "verb", a.name+"/"+v.name)
	}
	a.verbs[v.name] = v
	a.order = append(a.order, v.name)
	a.logger.Debug("verb registered", zap.String("verb", v.name), zap.Int("loa", v.loa))
	return nil
}

// RegisterVerb registers a verb with no LOA requirement.
func (a *API) RegisterVerb(name, info string, handler afbruntime.VerbHandler) error {
	return a.AddVerb(NewVerb(name).SetInfo(info).SetCallback(handler))
}

func (a *API) verb(name string) (*Verb, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.verbs[name]
	return v, ok
}

// Verbs returns the verbs in registration order.
func (a *API) Verbs() []*Verb {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Verb, len(a.order))
	for i, name := range a.order {
		out[i] = a.verbs[name]
	}
	return out
}

// Seal rejects further verb registration.
func (a *API) Seal() {
	if a.sealed.CompareAndSwap(false, true) {
		a.logger.Debug("api sealed", zap.Int("verbs", len(a.Verbs())))
	}
}

// Sealed reports whether the API is sealed.
func (a *API) Sealed() bool { return a.sealed.Load() }

// CallAsync calls api/verb from the API's own session.
func (a *API) CallAsync(api, verb string, args *params.Params, cb afbruntime.ReplyFunc) {
	a.b.dispatch(a.session, api, verb, args, cb)
}

// PostJob runs fn after delay.
func (a *API) PostJob(delay time.Duration, fn func()) error {
	return a.b.PostJob(delay, fn)
}

// NewEvent creates an event named "<api>/<name>".
func (a *API) NewEvent(name string) (afbruntime.Event, error) {
	ev, err := a.b.newEvent(a.name + "/" + name)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Session returns the session used for the API's own calls.
func (a *API) Session() *Session { return a.session }

func (a *API) Transcoder() *transcoder.Transcoder { return a.b.tc }
func (a *API) Logger() *zap.Logger                { return a.logger }
