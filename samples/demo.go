// Package samples provides demo APIs exercising the binder, the data
// converters and the tap runner, plus the tap suite that checks them.
//
// Register installs two APIs:
//
//	demo        ping, info, probe, verb_basic, verb_typed and the
//	            session_group/*, loa_group/*, timer_group/*, event_group/*
//	            and subcall_group/* verbs
//	loop-test   ping, the target of the subcall verbs
package samples

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	afbruntime "github.com/wippyai/afb-runtime"
	"github.com/wippyai/afb-runtime/binder"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/params"
)

const (
	// DemoAPI is the default name of the demo API.
	DemoAPI = "demo"

	// LoopAPI is the subcall target API.
	LoopAPI = "loop-test"
)

// Options tunes the demo timings.
type Options struct {
	API         string
	JobDelay    time.Duration
	TimerPeriod time.Duration
	TimerTicks  int
	CallTimeout time.Duration
}

// Option configures Register.
type Option func(*Options)

// WithAPIName renames the demo API.
func WithAPIName(name string) Option {
	return func(o *Options) { o.API = name }
}

// WithJobDelay sets how long timer_group/job-post waits before replying.
func WithJobDelay(d time.Duration) Option {
	return func(o *Options) { o.JobDelay = d }
}

// WithTimer sets the period and tick count of timer_group/timer-start.
func WithTimer(period time.Duration, ticks int) Option {
	return func(o *Options) {
		o.TimerPeriod = period
		o.TimerTicks = ticks
	}
}

// WithCallTimeout bounds subcall_group/sync-call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Options) { o.CallTimeout = d }
}

func defaultOptions() Options {
	return Options{
		API:         DemoAPI,
		JobDelay:    3 * time.Second,
		TimerPeriod: time.Second,
		TimerTicks:  10,
		CallTimeout: 5 * time.Second,
	}
}

type demo struct {
	api   *binder.API
	loop  *binder.API
	opts  Options
	pings atomic.Uint32
}

// Register creates the demo and loop-test APIs on b and seals them.
func Register(b *binder.Binder, opts ...Option) (*binder.API, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := RegisterSimpleData(b.Transcoder()); err != nil {
		return nil, err
	}

	loop, err := b.NewAPI(LoopAPI, "subcall loopback api")
	if err != nil {
		return nil, err
	}
	api, err := b.NewAPI(o.API, "demo api")
	if err != nil {
		return nil, err
	}
	d := &demo{api: api, loop: loop, opts: o}

	if err := loop.AddVerb(binder.NewVerb("ping").
		SetInfo("loopback ping").
		SetUsage("no input").
		SetCallback(d.loopPing)); err != nil {
		return nil, err
	}
	loop.Seal()

	verbs := []*binder.Verb{
		binder.NewVerb("ping").SetInfo("ping the demo api").SetUsage("no input").SetCallback(d.ping),
		binder.NewVerb("info").SetInfo("describe the demo api verbs").SetUsage("no input").SetCallback(d.info),
		binder.NewVerb("probe").SetInfo("probe no input/output data").SetUsage("no input").SetCallback(d.probe),
		binder.NewVerb("verb_basic").
			SetInfo("upper case any json argument").
			SetUsage("any json").
			SetCallback(verbBasic),
		binder.NewVerb("verb_typed").
			SetInfo("transform a simple_data argument").
			SetUsage(`{"name":"IoT.bzh","x":1,"y":99}`).
			SetCallback(verbTyped),
	}
	groups := []func() ([]*binder.Verb, error){
		sessionGroup,
		loaGroup,
		d.timerGroup,
		d.eventGroup,
		d.subcallGroup,
	}
	for _, build := range groups {
		group, err := build()
		if err != nil {
			return nil, err
		}
		verbs = append(verbs, group...)
	}

	for _, v := range verbs {
		if err := api.AddVerb(v); err != nil {
			return nil, err
		}
	}
	api.Seal()

	api.Logger().Info("demo api ready", zap.Int("verbs", len(verbs)))
	return api, nil
}

func (d *demo) ping(rqt afbruntime.Request, _ *params.Params) error {
	n := d.pings.Add(1)
	rqt.Logger().Debug("ping", zap.Uint32("count", n))
	return rqt.ReplyValues(0, "pong")
}

func (d *demo) loopPing(rqt afbruntime.Request, _ *params.Params) error {
	n := d.pings.Add(1)
	return rqt.ReplyValues(0, jsonc.MustFrom(map[string]any{"response": "pong", "count": n}))
}

type verbInfo struct {
	Name  string `json:"name"`
	Info  string `json:"info,omitempty"`
	Usage string `json:"usage,omitempty"`
	LOA   int    `json:"loa,omitempty"`
}

func (d *demo) info(rqt afbruntime.Request, _ *params.Params) error {
	verbs := d.api.Verbs()
	out := struct {
		API   string     `json:"api"`
		Info  string     `json:"info"`
		Verbs []verbInfo `json:"verbs"`
	}{API: d.api.Name(), Info: d.api.Info(), Verbs: make([]verbInfo, len(verbs))}
	for i, v := range verbs {
		out.Verbs[i] = verbInfo{Name: v.Name(), Info: v.Info(), Usage: v.Usage(), LOA: v.LOA()}
	}
	doc, err := jsonc.From(out)
	if err != nil {
		return err
	}
	return rqt.ReplyValues(0, doc)
}

func (d *demo) probe(rqt afbruntime.Request, _ *params.Params) error {
	return rqt.Reply(0, nil)
}
