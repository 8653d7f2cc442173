package binder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	afbruntime "github.com/wippyai/afb-runtime"
	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/params"
	"github.com/wippyai/afb-runtime/transcoder"
)

// Recorder receives call outcomes. The metrics collector implements it.
type Recorder interface {
	VerbCalled(api, verb string, status int, elapsed time.Duration)
}

// Binder hosts APIs, sessions and events.
type Binder struct {
	tc       *transcoder.Transcoder
	logger   *zap.Logger
	recorder Recorder
	root     *Session
	apis     map[string]*API
	events   map[string]*Event
	pending  map[string]*Request
	jobs     sync.WaitGroup
	mu       sync.RWMutex
	jobMu    sync.Mutex
	closed   atomic.Bool
}

// Option configures a Binder.
type Option func(*Binder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Binder) { b.logger = l }
}

// WithTranscoder sets the transcoder shared by every API.
func WithTranscoder(tc *transcoder.Transcoder) Option {
	return func(b *Binder) { b.tc = tc }
}

// WithRecorder reports every answered call to r.
func WithRecorder(r Recorder) Option {
	return func(b *Binder) { b.recorder = r }
}

// New creates a binder.
func New(opts ...Option) *Binder {
	b := &Binder{
		apis:    make(map[string]*API),
		events:  make(map[string]*Event),
		pending: make(map[string]*Request),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.tc == nil {
		b.tc = transcoder.Default()
	}
	b.root = b.NewSession()
	return b
}

// Transcoder returns the transcoder shared by every API.
func (b *Binder) Transcoder() *transcoder.Transcoder { return b.tc }

// Logger returns the binder logger.
func (b *Binder) Logger() *zap.Logger { return b.logger }

// NewAPI creates an API. Names are unique.
func (b *Binder) NewAPI(name, info string) (*API, error) {
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseHost, "api name cannot be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.apis[name]; exists {
		return nil, errors.AlreadyExists(errors.PhaseHost, "api", name)
	}
	api := &API{
		b:       b,
		name:    name,
		info:    info,
		verbs:   make(map[string]*Verb),
		session: b.NewSession(),
		logger:  b.logger.With(zap.String("api", name)),
	}
	b.apis[name] = api
	b.logger.Debug("api created", zap.String("api", name))
	return api, nil
}

// API returns the API registered under name.
func (b *Binder) API(name string) (*API, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	api, ok := b.apis[name]
	return api, ok
}

// APIs returns the registered API names in sorted order.
func (b *Binder) APIs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.apis))
	for name := range b.apis {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallAsync calls api/verb from the binder's own session.
func (b *Binder) CallAsync(api, verb string, args *params.Params, cb afbruntime.ReplyFunc) {
	b.dispatch(b.root, api, verb, args, cb)
}

// Call calls api/verb and waits for the reply. A negative reply status is
// returned as a call error and the reply is released.
func (b *Binder) Call(ctx context.Context, api, verb string, args *params.Params) (*params.Params, error) {
	return b.call(ctx, b.root, api, verb, args)
}

func (b *Binder) call(ctx context.Context, sess *Session, api, verb string, args *params.Params) (*params.Params, error) {
	ch := make(chan *params.Params, 1)
	var abandoned atomic.Bool

	b.dispatch(sess, api, verb, args, func(status int, reply *params.Params) {
		reply.SetStatus(status)
		ch <- reply
		if abandoned.Load() {
			drain(ch)
		}
	})

	select {
	case reply := <-ch:
		if reply.Status() < 0 {
			status := reply.Status()
			reply.Release()
			return nil, errors.Call(api, verb, status)
		}
		return reply, nil
	case <-ctx.Done():
		abandoned.Store(true)
		drain(ch)
		err := errors.Call(api, verb, errors.StatusConnectionTimeout)
		err.Cause = ctx.Err()
		return nil, err
	}
}

func drain(ch chan *params.Params) {
	select {
	case r := <-ch:
		r.Release()
	default:
	}
}

func (b *Binder) dispatch(sess *Session, apiName, verbName string, args *params.Params, cb afbruntime.ReplyFunc) {
	if cb == nil {
		cb = func(_ int, reply *params.Params) { reply.Release() }
	}
	if args == nil {
		args = params.New(b.tc)
	}

	fail := func(status int, format string, a ...any) {
		args.Release()
		msg := fmt.Sprintf(format, a...)
		b.logger.Debug("call rejected",
			zap.String("api", apiName),
			zap.String("verb", verbName),
			zap.Int("status", status),
			zap.String("reason", msg))
		if b.recorder != nil {
			b.recorder.VerbCalled(apiName, verbName, status, 0)
		}
		cb(status, errorReply(b.tc, status, msg))
	}

	if b.closed.Load() {
		fail(errors.StatusAbort, "binder closed")
		return
	}
	api, ok := b.API(apiName)
	if !ok {
		fail(errors.StatusAPINotFound, "api %q not found", apiName)
		return
	}
	verb, ok := api.verb(verbName)
	if !ok {
		fail(errors.StatusVerbNotFound, "verb %q not found in api %q", verbName, apiName)
		return
	}
	if sess.LOA() < verb.loa {
		fail(errors.StatusInvalidScope, "verb %q requires loa %d, session has %d", verbName, verb.loa, sess.LOA())
		return
	}

	rqt := newRequest(b, api, verb, sess, cb)
	b.track(rqt)
	go b.invoke(rqt, args)
}

func (b *Binder) invoke(rqt *Request, args *params.Params) {
	defer args.Release()
	defer func() {
		if r := recover(); r != nil {
			rqt.Logger().Error("verb callback panic",
				zap.Any("panic", r),
				zap.Stack("stack"))
			rqt.fail(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := rqt.verb.handler(rqt, args); err != nil {
		rqt.Logger().Error("verb callback failed", zap.Error(err))
		rqt.fail(err)
	}
}

func (b *Binder) track(rqt *Request) {
	b.mu.Lock()
	b.pending[rqt.id] = rqt
	b.mu.Unlock()
}

func (b *Binder) untrack(rqt *Request) {
	b.mu.Lock()
	delete(b.pending, rqt.id)
	b.mu.Unlock()
}

// Pending returns the number of requests waiting for a reply.
func (b *Binder) Pending() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pending)
}

// PostJob runs fn after delay. Panics in fn are logged.
func (b *Binder) PostJob(delay time.Duration, fn func()) error {
	b.jobMu.Lock()
	defer b.jobMu.Unlock()

	if b.closed.Load() {
		return errors.New(errors.PhaseHost, errors.KindNotInitialized).
			Status(errors.StatusAbort).
			Detail("binder closed").
			Build()
	}
	b.jobs.Add(1)
	time.AfterFunc(delay, func() {
		defer b.jobs.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("job panic", zap.Any("panic", r), zap.Stack("stack"))
			}
		}()
		fn()
	})
	return nil
}

// Close stops accepting calls and jobs, answers pending requests with
// StatusNoReply and waits for running jobs until ctx is done.
func (b *Binder) Close(ctx context.Context) error {
	b.jobMu.Lock()
	if !b.closed.CompareAndSwap(false, true) {
		b.jobMu.Unlock()
		return nil
	}
	b.jobMu.Unlock()

	b.mu.Lock()
	pending := make([]*Request, 0, len(b.pending))
	for _, rqt := range b.pending {
		pending = append(pending, rqt)
	}
	b.mu.Unlock()

	for _, rqt := range pending {
		rqt.Reply(errors.StatusNoReply, errorReply(b.tc, errors.StatusNoReply, "request closed without reply"))
	}

	done := make(chan struct{})
	go func() {
		b.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.PhaseHost, errors.KindTimeout, ctx.Err(), "waiting for jobs")
	}
}

func errorReply(tc *transcoder.Transcoder, status int, msg string) *params.Params {
	doc := jsonc.MustFrom(map[string]any{
		"status": status,
		"info":   errors.StatusInfo(status),
		"error":  msg,
	})
	p, err := params.From(tc, doc)
	if err != nil {
		return params.New(tc)
	}
	return p
}
