package samples

import (
	"time"

	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/tap"
)

// AddTests adds the demo checks to s. The options must match the ones
// given to Register.
func AddTests(s *tap.Suite, opts ...Option) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	api := o.API

	s.AddTest(tap.NewTest("builtin-info", api, "info").SetInfo("describe the api").
		AddExpect(jsonc.MustFrom(map[string]string{"api": api})))
	s.AddTest(tap.NewTest("builtin-ping", api, "ping").SetInfo("simple ping").AddExpect("pong"))
	s.AddTest(tap.NewTest("probe", api, "probe").SetInfo("no input/output data"))
	s.AddTest(tap.NewTest("jsonc-basic", api, "verb_basic").
		SetInfo("check json input param").
		SetArgs(jsonc.MustParse(`{
			"skipail": "IoT.bzh",
			"location": "Lorient", // relaxed json is accepted
			"lander": "Brittany",
		}`)))
	s.AddTest(tap.NewTest("jsonc-reply", api, "verb_basic").
		SetInfo("check json response").
		SetArgs(jsonc.MustParse(`{"skipail":"Follijen","location":"PortLouis","lander":"Brittany"}`)).
		AddExpect(jsonc.MustParse(`{"LANDER":"BRITTANY"}`)))
	s.AddTest(tap.NewTest("jsonc-typed", api, "verb_typed").
		SetInfo("json argument converted to simple_data").
		SetArgs(jsonc.MustParse(`{"x":1,"y":123,"name":"Skipail IoT.bzh"}`)).
		AddExpect(jsonc.MustParse(`{"x":2,"y":122}`)))
	s.AddTest(tap.NewTest("MySimpleData", api, "verb_typed").
		SetInfo("check custom typed input").
		SetArgs(SimpleData{X: 256, Y: 1024, Name: "Skipail IoT.bzh"}).
		AddExpectFull(jsonc.MustParse(`{"name":"SKIPAIL IOT.BZH","x":257,"y":1023}`)).
		SetOnSuccess("check-session"))

	s.AddGroup(tap.NewGroup("check-session").
		SetInfo("check session context").
		AddTest(tap.NewTest("session-check1", api, "session_group/reset").SetInfo("create a new session").AddExpect(0)).
		AddTest(tap.NewTest("session-check2", api, "session_group/read").SetInfo("read session").AddExpect(1)).
		AddTest(tap.NewTest("session-check3", api, "session_group/read").SetInfo("read session").AddExpect(2)).
		AddTest(tap.NewTest("session-check4", api, "session_group/reset").SetInfo("reset session").AddExpect(0)).
		AddTest(tap.NewTest("session-check5", api, "session_group/read").SetInfo("read new session").AddExpect(1)).
		AddTest(tap.NewTest("session-check6", api, "session_group/drop").
			SetInfo("drop current session").
			SetOnSuccess("check-loa")))

	s.AddGroup(tap.NewGroup("check-event").
		SetInfo("check session event").
		AddTest(tap.NewTest("event-subscribe", api, "event_group/subscribe").SetInfo("subscribe to event")).
		AddTest(tap.NewTest("event-push-one-listener", api, "event_group/push").
			SetInfo("check event has 1 listener").
			SetArgs(jsonc.MustParse(`{"info":"some data event"}`)).
			AddExpect(1)).
		AddTest(tap.NewTest("event-unsubscribe", api, "event_group/unsubscribe").SetInfo("unsubscribe event")).
		AddTest(tap.NewTest("event-push-no-listener", api, "event_group/push").
			SetInfo("push should not have any listener").
			SetArgs(jsonc.MustParse(`{"info":"some data event"}`)).
			SetStatus(errors.StatusApplication).
			SetOnSuccess("check-subcall")))

	s.AddGroup(tap.NewGroup("check-loa").
		SetInfo("check session loa").
		AddTest(tap.NewTest("loa-reset", api, "loa_group/reset").SetInfo("start from loa 0")).
		AddTest(tap.NewTest("loa-check-x", api, "loa_group/check").
			SetInfo("missing loa fails with invalid scope").
			SetStatus(errors.StatusInvalidScope)).
		AddTest(tap.NewTest("loa-set-1", api, "loa_group/set").SetInfo("set loa to 1")).
		AddTest(tap.NewTest("loa-check-1", api, "loa_group/check").
			SetInfo("check works once session loa is 1").
			SetOnSuccess("check-timer")))

	breakAfter := o.JobDelay / 3
	if breakAfter <= 0 {
		breakAfter = time.Millisecond
	}
	s.AddGroup(tap.NewGroup("check-timer").
		SetInfo("check delay and timer").
		AddTest(tap.NewTest("break-timeout", api, "timer_group/job-post").
			SetInfo("check should fail in timeout").
			SetTimeout(breakAfter).
			SetStatus(errors.StatusWatchdog)).
		AddTest(tap.NewTest("response-delayed", api, "timer_group/job-post").
			SetInfo("check the delayed response").
			SetArgs(jsonc.MustParse(`{"job":"post"}`)).
			AddExpect(jsonc.MustParse(`{"job":"post"}`)).
			SetTimeout(2*o.JobDelay+time.Second).
			SetOnSuccess("check-event")))

	s.AddGroup(tap.NewGroup("check-subcall").
		SetInfo("check subcalls to " + LoopAPI).
		AddTest(tap.NewTest("sync-call", api, "subcall_group/sync-call").
			SetInfo("synchronous subcall").
			AddExpect(jsonc.MustParse(`{"response":"pong"}`))).
		AddTest(tap.NewTest("async-call", api, "subcall_group/async-call").
			SetInfo("asynchronous subcall, upper cased").
			AddExpect(jsonc.MustParse(`{"RESPONSE":"PONG"}`))))
}
