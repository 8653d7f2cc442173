// Package binder is an in-process framework hosting APIs and their verbs.
//
// It provides what bindings and the tap scheduler need from a service
// framework: verb registration, asynchronous and synchronous calls between
// APIs, per-client sessions with a level of assurance, delayed jobs and
// broadcast events. There is no transport; calls are dispatched on
// goroutines within the process.
//
// # Calls
//
//	b.CallAsync("demo", "ping", args, func(status int, reply *params.Params) {
//	    defer reply.Release()
//	})
//
// Ownership of args moves to the binder with the call. The reply belongs to
// the callback. Dispatch failures are answered through the callback too:
//
//	StatusAPINotFound    unknown api
//	StatusVerbNotFound   unknown verb
//	StatusInvalidScope   session LOA below the verb's LOA
//	StatusApplication    handler error or panic
//
// A handler may reply from another goroutine after it returns. Requests
// still pending when the binder closes are answered with StatusNoReply.
package binder
