package afbruntime

import (
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/afb-runtime/params"
	"github.com/wippyai/afb-runtime/transcoder"
)

// VerbHandler handles one verb invocation. args belongs to the framework
// and is released when the handler returns; Clone it to keep it longer.
// A returned error is logged and answered with StatusApplication.
type VerbHandler func(rqt Request, args *params.Params) error

// ReplyFunc receives the outcome of a call. The reply list belongs to the
// callback, which must release it.
type ReplyFunc func(status int, reply *params.Params)

// Host is the framework side of an API: verb registration, calls to other
// APIs, delayed jobs and events.
type Host interface {
	// Name returns the API name.
	Name() string

	// RegisterVerb adds a verb. It fails once the API is sealed.
	RegisterVerb(name, info string, handler VerbHandler) error

	// Seal rejects any further verb registration.
	Seal()

	// CallAsync calls api/verb. Ownership of args moves to the framework
	// and cb is invoked exactly once.
	CallAsync(api, verb string, args *params.Params, cb ReplyFunc)

	// PostJob runs fn after delay on a framework goroutine.
	PostJob(delay time.Duration, fn func()) error

	// NewEvent creates a named broadcast event owned by the API.
	NewEvent(name string) (Event, error)

	Transcoder() *transcoder.Transcoder
	Logger() *zap.Logger
}

// Request is one verb invocation in flight.
type Request interface {
	ID() string
	API() string
	Verb() string

	// Reply answers the request. Only the first reply is delivered; later
	// ones are released and reported as errors.
	Reply(status int, reply *params.Params) error

	// ReplyValues exports values into a reply list and answers the request.
	// An export failure answers with an error status instead.
	ReplyValues(status int, values ...any) error

	// CallAsync issues a subcall on behalf of the request session.
	CallAsync(api, verb string, args *params.Params, cb ReplyFunc)

	Session() Session
	Logger() *zap.Logger
}

// Session is the per-client state shared by all requests of a client.
type Session interface {
	ID() string
	LOA() int
	SetLOA(loa int)
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
}

// Event is a named broadcast channel.
type Event interface {
	Name() string
	Subscribe(rqt Request) error
	Unsubscribe(rqt Request) error

	// Push delivers data to every subscriber and returns their count.
	// Ownership of data moves to the event.
	Push(data *params.Params) int
}
