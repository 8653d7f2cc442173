package binder

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	afbruntime "github.com/wippyai/afb-runtime"
	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/params"
)

var _ afbruntime.Request = (*Request)(nil)

// Request is a verb invocation waiting for its reply.
type Request struct {
	b       *Binder
	api     *API
	verb    *Verb
	session *Session
	cb      afbruntime.ReplyFunc
	logger  *zap.Logger
	start   time.Time
	id      string
	replied atomic.Bool
}

func newRequest(b *Binder, api *API, verb *Verb, sess *Session, cb afbruntime.ReplyFunc) *Request {
	id := uuid.NewString()
	return &Request{
		b:       b,
		api:     api,
		verb:    verb,
		session: sess,
		cb:      cb,
		start:   time.Now(),
		id:      id,
		logger: api.logger.With(
			zap.String("verb", verb.name),
			zap.String("request", id)),
	}
}

func (r *Request) ID() string   { return r.id }
func (r *Request) API() string  { return r.api.name }
func (r *Request) Verb() string { return r.verb.name }

// Session returns the session of the client that issued the request.
func (r *Request) Session() afbruntime.Session { return r.session }

func (r *Request) Logger() *zap.Logger { return r.logger }

// Replied reports whether the request has been answered.
func (r *Request) Replied() bool { return r.replied.Load() }

// Reply answers the request. Ownership of reply moves to the caller's
// callback. A second reply is released and returns an error.
func (r *Request) Reply(status int, reply *params.Params) error {
	if reply == nil {
		reply = params.New(r.b.tc)
	}
	if !r.replied.CompareAndSwap(false, true) {
		reply.Release()
		return errors.New(errors.PhaseCall, errors.KindAlreadyExists).
			Path(r.api.name, r.verb.name).
			Detail("request %s already replied", r.id).
			Build()
	}

	r.b.untrack(r)
	elapsed := time.Since(r.start)
	if r.b.recorder != nil {
		r.b.recorder.VerbCalled(r.api.name, r.verb.name, status, elapsed)
	}
	if ce := r.logger.Check(zap.DebugLevel, "reply"); ce != nil {
		ce.Write(zap.Int("status", status), zap.Duration("elapsed", elapsed))
	}
	r.cb(status, reply)
	return nil
}

// ReplyValues converts values into a reply list and answers the request.
func (r *Request) ReplyValues(status int, values ...any) error {
	reply, err := params.Of(r.b.tc, values...)
	if err != nil {
		r.fail(err)
		return err
	}
	return r.Reply(status, reply)
}

func (r *Request) fail(err error) {
	if r.replied.Load() {
		return
	}
	r.Reply(errors.StatusApplication, errorReply(r.b.tc, errors.StatusApplication, err.Error()))
}

// CallAsync issues a subcall with the request session, so the callee sees
// the same LOA and session values.
func (r *Request) CallAsync(api, verb string, args *params.Params, cb afbruntime.ReplyFunc) {
	r.b.dispatch(r.session, api, verb, args, cb)
}
