package samples

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	afbruntime "github.com/wippyai/afb-runtime"
	"github.com/wippyai/afb-runtime/binder"
	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/params"
)

const sessionKey = "samples/session-count"

func sessionGroup() ([]*binder.Verb, error) {
	reset := func(rqt afbruntime.Request, _ *params.Params) error {
		counter := new(atomic.Uint32)
		rqt.Session().Set(sessionKey, counter)
		return rqt.ReplyValues(0, counter.Load())
	}
	read := func(rqt afbruntime.Request, _ *params.Params) error {
		counter, err := binder.SessionValue[*atomic.Uint32](rqt.Session(), sessionKey)
		if err != nil {
			return err
		}
		return rqt.ReplyValues(0, counter.Add(1))
	}
	drop := func(rqt afbruntime.Request, _ *params.Params) error {
		if _, ok := rqt.Session().Get(sessionKey); !ok {
			return errors.NotFound(errors.PhaseHost, "session context", sessionKey)
		}
		rqt.Session().Delete(sessionKey)
		return rqt.Reply(0, nil)
	}

	return []*binder.Verb{
		binder.NewVerb("session_group/reset").SetInfo("create a new session context").SetUsage("no input").SetCallback(reset),
		binder.NewVerb("session_group/drop").SetInfo("drop session context").SetUsage("no input").SetCallback(drop),
		binder.NewVerb("session_group/read").SetInfo("read session context").SetUsage("no input").SetCallback(read),
	}, nil
}

func loaGroup() ([]*binder.Verb, error) {
	set := func(rqt afbruntime.Request, _ *params.Params) error {
		rqt.Session().SetLOA(1)
		return rqt.ReplyValues(0, fmt.Sprintf("LOA set to %d", rqt.Session().LOA()))
	}
	reset := func(rqt afbruntime.Request, _ *params.Params) error {
		rqt.Session().SetLOA(0)
		return rqt.ReplyValues(0, fmt.Sprintf("LOA reset to %d", rqt.Session().LOA()))
	}
	check := func(rqt afbruntime.Request, _ *params.Params) error {
		return rqt.ReplyValues(0, "Protected API with LOA>=1 OK")
	}

	return []*binder.Verb{
		binder.NewVerb("loa_group/set").SetInfo("set loa to 1").SetUsage("no input").SetCallback(set),
		binder.NewVerb("loa_group/reset").SetInfo("reset loa to zero").SetUsage("no input").SetCallback(reset),
		binder.NewVerb("loa_group/check").
			SetInfo("requires loa>=1").
			SetUsage("no input").
			SetLOA(1).
			SetCallback(check),
	}, nil
}

func (d *demo) timerGroup() ([]*binder.Verb, error) {
	event, err := d.api.NewEvent("timer-event")
	if err != nil {
		return nil, err
	}
	var ticks, jobs atomic.Uint32
	tc := d.api.Transcoder()

	push := func(v any) {
		data, err := params.Of(tc, v)
		if err != nil {
			d.api.Logger().Error("fail to build timer event", zap.Error(err))
			return
		}
		event.Push(data)
	}

	var tick func(left int)
	tick = func(left int) {
		n := ticks.Add(1)
		d.api.Logger().Debug("timer tick", zap.Uint32("counter", n), zap.Int("decount", left))
		push(n)
		if left <= 1 {
			return
		}
		if err := d.api.PostJob(d.opts.TimerPeriod, func() { tick(left - 1) }); err != nil {
			d.api.Logger().Warn("timer stopped", zap.Error(err))
		}
	}

	start := func(rqt afbruntime.Request, _ *params.Params) error {
		if err := event.Subscribe(rqt); err != nil {
			return err
		}
		if err := d.api.PostJob(d.opts.TimerPeriod, func() { tick(d.opts.TimerTicks) }); err != nil {
			return err
		}
		return rqt.ReplyValues(0, fmt.Sprintf("timer started period=%s ticks=%d", d.opts.TimerPeriod, d.opts.TimerTicks))
	}

	jobPost := func(rqt afbruntime.Request, args *params.Params) error {
		query, err := params.Get[jsonc.Doc](args, 0)
		if err != nil {
			query = errorDoc(err)
		}
		n := jobs.Add(1)

		if err := event.Subscribe(rqt); err == nil {
			push(fmt.Sprintf("job-post response should arrive in %s count=%d", d.opts.JobDelay, n))
		}
		return d.api.PostJob(d.opts.JobDelay, func() {
			if err := rqt.ReplyValues(0, query); err != nil {
				rqt.Logger().Debug("job-post reply dropped", zap.Error(err))
			}
		})
	}

	return []*binder.Verb{
		binder.NewVerb("timer_group/timer-start").
			SetInfo("tick the timer event periodically").
			SetUsage("no input").
			SetCallback(start),
		binder.NewVerb("timer_group/job-post").
			SetInfo("reply after a delay").
			SetUsage("any json").
			SetCallback(jobPost),
	}, nil
}

func (d *demo) eventGroup() ([]*binder.Verb, error) {
	event, err := d.api.NewEvent("demo-event")
	if err != nil {
		return nil, err
	}
	var counter atomic.Uint32

	subscribe := func(rqt afbruntime.Request, _ *params.Params) error {
		if err := event.Subscribe(rqt); err != nil {
			return err
		}
		return rqt.Reply(0, nil)
	}
	unsubscribe := func(rqt afbruntime.Request, _ *params.Params) error {
		if err := event.Unsubscribe(rqt); err != nil {
			return err
		}
		return rqt.Reply(0, nil)
	}
	push := func(rqt afbruntime.Request, args *params.Params) error {
		query, err := params.Get[jsonc.Doc](args, 0)
		if err != nil {
			rqt.Logger().Error("invalid json argument", zap.Error(err))
			query = jsonc.MustFrom("no-data")
		}
		data, err := params.Of(d.api.Transcoder(), counter.Add(1), query)
		if err != nil {
			return err
		}
		listeners := event.Push(data)
		if listeners == 0 {
			return errors.New(errors.PhaseHost, errors.KindNotFound).
				Detail("event %s has no listener", event.Name()).
				Build()
		}
		return rqt.ReplyValues(0, listeners)
	}

	return []*binder.Verb{
		binder.NewVerb("event_group/subscribe").SetInfo("subscribe to event").SetUsage("no input").SetCallback(subscribe),
		binder.NewVerb("event_group/unsubscribe").SetInfo("unsubscribe from event").SetUsage("no input").SetCallback(unsubscribe),
		binder.NewVerb("event_group/push").SetInfo("push query as event data").SetUsage("any json").SetCallback(push),
	}, nil
}

func (d *demo) subcallGroup() ([]*binder.Verb, error) {
	syncCall := func(rqt afbruntime.Request, _ *params.Params) error {
		type result struct {
			reply  *params.Params
			status int
		}
		ch := make(chan result, 1)
		rqt.CallAsync(LoopAPI, "ping", nil, func(status int, reply *params.Params) {
			ch <- result{reply: reply, status: status}
		})

		timer := time.NewTimer(d.opts.CallTimeout)
		defer timer.Stop()
		select {
		case r := <-ch:
			return rqt.Reply(r.status, r.reply)
		case <-timer.C:
			go func() { (<-ch).reply.Release() }()
			return errors.New(errors.PhaseCall, errors.KindTimeout).
				Status(errors.StatusConnectionTimeout).
				Detail("%s/ping did not answer within %s", LoopAPI, d.opts.CallTimeout).
				Build()
		}
	}

	asyncCall := func(rqt afbruntime.Request, _ *params.Params) error {
		rqt.CallAsync(LoopAPI, "ping", nil, func(status int, reply *params.Params) {
			defer reply.Release()
			if status < 0 {
				rqt.Reply(status, reply.Clone())
				return
			}
			doc, err := params.Get[jsonc.Doc](reply, 0)
			if err == nil {
				doc, err = upperDoc(doc)
			}
			if err != nil {
				rqt.Logger().Error("async response", zap.Error(err))
				rqt.ReplyValues(errors.StatusApplication, errorDoc(err))
				return
			}
			rqt.ReplyValues(0, doc)
		})
		return nil
	}

	return []*binder.Verb{
		binder.NewVerb("subcall_group/sync-call").
			SetInfo("synchronous call to " + LoopAPI + "/ping").
			SetUsage("no input").
			SetCallback(syncCall),
		binder.NewVerb("subcall_group/async-call").
			SetInfo("asynchronous call to " + LoopAPI + "/ping").
			SetUsage("no input").
			SetCallback(asyncCall),
	}, nil
}
