// Package afbruntime provides typed data marshalling and a TAP test
// scheduler for micro-service style APIs.
//
// APIs expose verbs. Verbs exchange ordered lists of reference-counted data
// cells, converted to and from Go values through a registry of builtin and
// custom types. A test suite drives chains of verb calls, checks replies
// against JSON expectations and reports the outcome in TAP form.
//
// # Architecture Overview
//
//	afbruntime/          Root package with the Host, Request, Session and Event interfaces
//	├── errors/          Structured error types and framework status codes
//	├── resource/        Reference-counted data cell table
//	├── types/           Type registry and conversion graph
//	├── jsonc/           JSON documents and expectation matching
//	├── transcoder/      Go value to data cell conversion, custom converters
//	├── params/          Argument and reply lists
//	├── binder/          In-process API, verb, session, event and job framework
//	├── tap/             TAP test suites, groups and tests
//	├── metrics/         Prometheus collectors
//	├── config/          Suite configuration
//	└── samples/         Demo APIs exercised by the tap runner
//
// # Quick Start
//
// Register an API and call it:
//
//	b := binder.New(binder.WithLogger(log))
//	api, _ := b.NewAPI("demo", "demo api")
//	api.RegisterVerb("ping", "", func(rqt afbruntime.Request, args *params.Params) error {
//	    reply, err := params.From(b.Transcoder(), "pong")
//	    if err != nil {
//	        return err
//	    }
//	    return rqt.Reply(0, reply)
//	})
//
//	reply, err := b.Call(ctx, "demo", "ping", params.New(b.Transcoder()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reply.Release()
//
// Describe expected behavior as a suite:
//
//	suite := tap.NewSuite(tapAPI, "demo-suite")
//	suite.AddTest(tap.NewTest("ping", "demo", "ping").AddExpect("pong"))
//	suite.Finalize()
//
// # Custom Types
//
// Any Go type with a JSON form can travel in a data cell once registered:
//
//	transcoder.MustRegister[MySimpleData](tc, "MySimpleData")
//	data, err := params.Get[MySimpleData](args, 0)
package afbruntime
