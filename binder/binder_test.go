package binder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	afbruntime "github.com/wippyai/afb-runtime"
	afberrors "github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/params"
	"github.com/wippyai/afb-runtime/transcoder"
)

type callRecord struct {
	mu     sync.Mutex
	status []int
}

func (r *callRecord) VerbCalled(api, verb string, status int, _ time.Duration) {
	r.mu.Lock()
	r.status = append(r.status, status)
	r.mu.Unlock()
}

func newTestBinder(t *testing.T, opts ...Option) (*Binder, *API) {
	t.Helper()
	opts = append([]Option{WithTranscoder(transcoder.New())}, opts...)
	b := New(opts...)
	api, err := b.NewAPI("demo", "test api")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		b.Close(ctx)
	})
	return b, api
}

func echo(rqt afbruntime.Request, args *params.Params) error {
	return rqt.Reply(0, args.Clone())
}

func callStatus(t *testing.T, call func(afbruntime.ReplyFunc)) (int, *params.Params) {
	t.Helper()
	type result struct {
		status int
		reply  *params.Params
	}
	ch := make(chan result, 1)
	call(func(status int, reply *params.Params) {
		ch <- result{status, reply}
	})
	select {
	case r := <-ch:
		return r.status, r.reply
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
		return 0, nil
	}
}

func TestNewAPIDuplicate(t *testing.T) {
	b, _ := newTestBinder(t)
	_, err := b.NewAPI("demo", "")
	if afberrors.StatusOf(err) != afberrors.StatusAlreadyExists {
		t.Fatalf("status = %d, err = %v", afberrors.StatusOf(err), err)
	}
	if _, err := b.NewAPI("", ""); err == nil {
		t.Fatal("empty name accepted")
	}
	if names := b.APIs(); len(names) != 1 || names[0] != "demo" {
		t.Fatalf("APIs = %v", names)
	}
}

func TestCallEcho(t *testing.T) {
	b, api := newTestBinder(t)
	if err := api.RegisterVerb("echo", "echo args", echo); err != nil {
		t.Fatal(err)
	}

	args, _ := params.Of(b.Transcoder(), "hello", int32(7))
	reply, err := b.Call(context.Background(), "demo", "echo", args)
	if err != nil {
		t.Fatal(err)
	}
	defer reply.Release()

	if s, _ := params.Get[string](reply, 0); s != "hello" {
		t.Errorf("reply[0] = %q", s)
	}
	if n, _ := params.Get[int32](reply, 1); n != 7 {
		t.Errorf("reply[1] = %d", n)
	}
}

func TestDispatchErrors(t *testing.T) {
	b, api := newTestBinder(t)
	api.AddVerb(NewVerb("secure").SetCallback(echo).SetLOA(2))
	api.RegisterVerb("fails", "", func(afbruntime.Request, *params.Params) error {
		return errors.New("handler failed")
	})
	api.RegisterVerb("panics", "", func(afbruntime.Request, *params.Params) error {
		panic("boom")
	})

	tests := []struct {
		name   string
		api    string
		verb   string
		status int
	}{
		{"unknown api", "nope", "echo", afberrors.StatusAPINotFound},
		{"unknown verb", "demo", "nope", afberrors.StatusVerbNotFound},
		{"loa too low", "demo", "secure", afberrors.StatusInvalidScope},
		{"handler error", "demo", "fails", afberrors.StatusApplication},
		{"handler panic", "demo", "panics", afberrors.StatusApplication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, reply := callStatus(t, func(cb afbruntime.ReplyFunc) {
				b.CallAsync(tt.api, tt.verb, nil, cb)
			})
			defer reply.Release()
			if status != tt.status {
				t.Fatalf("status = %d, want %d", status, tt.status)
			}
			if reply.Len() != 1 {
				t.Fatalf("error reply has %d args", reply.Len())
			}
		})
	}

	_, err := b.Call(context.Background(), "demo", "nope", nil)
	if afberrors.StatusOf(err) != afberrors.StatusVerbNotFound {
		t.Fatalf("Call error = %v", err)
	}
}

func TestSessionLOA(t *testing.T) {
	b, api := newTestBinder(t)
	api.AddVerb(NewVerb("secure").SetCallback(echo).SetLOA(1))
	api.RegisterVerb("login", "", func(rqt afbruntime.Request, _ *params.Params) error {
		rqt.Session().SetLOA(1)
		return rqt.Reply(0, nil)
	})

	sess := b.NewSession()
	ctx := context.Background()
	if _, err := sess.Call(ctx, "demo", "secure", nil); afberrors.StatusOf(err) != afberrors.StatusInvalidScope {
		t.Fatalf("before login: %v", err)
	}
	r, err := sess.Call(ctx, "demo", "login", nil)
	if err != nil {
		t.Fatal(err)
	}
	r.Release()
	r, err = sess.Call(ctx, "demo", "secure", nil)
	if err != nil {
		t.Fatalf("after login: %v", err)
	}
	r.Release()

	if _, err := b.Call(ctx, "demo", "secure", nil); err == nil {
		t.Fatal("other sessions must not inherit the LOA")
	}
}

func TestDoubleReply(t *testing.T) {
	b, api := newTestBinder(t)
	second := make(chan error, 1)
	api.RegisterVerb("twice", "", func(rqt afbruntime.Request, _ *params.Params) error {
		rqt.Reply(0, nil)
		second <- rqt.Reply(1, nil)
		return nil
	})

	var replies atomic.Int32
	status, reply := callStatus(t, func(cb afbruntime.ReplyFunc) {
		b.CallAsync("demo", "twice", nil, func(status int, reply *params.Params) {
			replies.Add(1)
			cb(status, reply)
		})
	})
	reply.Release()

	if err := <-second; err == nil {
		t.Fatal("second reply accepted")
	}
	if status != 0 || replies.Load() != 1 {
		t.Fatalf("status %d replies %d", status, replies.Load())
	}
}

func TestCallContextTimeout(t *testing.T) {
	b, api := newTestBinder(t)
	var held atomic.Pointer[afbruntime.Request]
	api.RegisterVerb("silent", "", func(rqt afbruntime.Request, _ *params.Params) error {
		held.Store(&rqt)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Call(ctx, "demo", "silent", nil)
	if afberrors.StatusOf(err) != afberrors.StatusConnectionTimeout {
		t.Fatalf("err = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for held.Load() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// a late reply is released by the abandoned call
	late, _ := params.Of(b.Transcoder(), "late")
	(*held.Load()).Reply(0, late)
	if b.Transcoder().Table().Len() != 0 {
		t.Fatalf("late reply leaked %d cells", b.Transcoder().Table().Len())
	}
}

func TestSealed(t *testing.T) {
	_, api := newTestBinder(t)
	api.RegisterVerb("one", "", echo)
	api.Seal()

	err := api.RegisterVerb("two", "", echo)
	var e *afberrors.Error
	if !errors.As(err, &e) || e.Kind != afberrors.KindSealed {
		t.Fatalf("err = %v", err)
	}
	if err := api.AddVerb(NewVerb("one").SetCallback(echo)); err == nil {
		t.Fatal("duplicate verb accepted")
	}
	if len(api.Verbs()) != 1 {
		t.Fatalf("verbs = %d", len(api.Verbs()))
	}
}

func TestVerbContext(t *testing.T) {
	b, api := newTestBinder(t)
	type counter struct{ n atomic.Int32 }
	c := &counter{}

	api.AddVerb(NewVerb("count").SetContext(c).SetCallback(func(rqt afbruntime.Request, _ *params.Params) error {
		ctx, err := VerbContext[*counter](rqt)
		if err != nil {
			return err
		}
		ctx.n.Add(1)
		return rqt.Reply(0, nil)
	}))
	api.AddVerb(NewVerb("wrong").SetContext("text").SetCallback(func(rqt afbruntime.Request, _ *params.Params) error {
		_, err := VerbContext[*counter](rqt)
		return err
	}))

	if r, err := b.Call(context.Background(), "demo", "count", nil); err != nil {
		t.Fatal(err)
	} else {
		r.Release()
	}
	if _, err := b.Call(context.Background(), "demo", "wrong", nil); afberrors.StatusOf(err) != afberrors.StatusApplication {
		t.Fatalf("wrong context: %v", err)
	}
	if c.n.Load() != 1 {
		t.Fatalf("context counter = %d", c.n.Load())
	}
}

func TestSessionValue(t *testing.T) {
	b, _ := newTestBinder(t)
	s := b.NewSession()
	s.Set("count", 3)

	if v, err := SessionValue[int](s, "count"); err != nil || v != 3 {
		t.Fatalf("SessionValue = %d, %v", v, err)
	}
	if _, err := SessionValue[string](s, "count"); err == nil {
		t.Fatal("wrong type accepted")
	}
	if _, err := SessionValue[int](s, "missing"); err == nil {
		t.Fatal("missing key accepted")
	}
}

func TestEvents(t *testing.T) {
	b, api := newTestBinder(t)
	ev, err := api.NewEvent("tick")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := api.NewEvent("tick"); err == nil {
		t.Fatal("duplicate event accepted")
	}
	api.RegisterVerb("subscribe", "", func(rqt afbruntime.Request, _ *params.Params) error {
		if err := ev.Subscribe(rqt); err != nil {
			return err
		}
		return rqt.Reply(0, nil)
	})
	api.RegisterVerb("unsubscribe", "", func(rqt afbruntime.Request, _ *params.Params) error {
		if err := ev.Unsubscribe(rqt); err != nil {
			return err
		}
		return rqt.Reply(0, nil)
	})

	var got []string
	var mu sync.Mutex
	sess := b.NewSession()
	sess.OnEvent(func(name string, data *params.Params) {
		defer data.Release()
		s, _ := params.Get[string](data, 0)
		mu.Lock()
		got = append(got, name+":"+s)
		mu.Unlock()
	})

	ctx := context.Background()
	r, err := sess.Call(ctx, "demo", "subscribe", nil)
	if err != nil {
		t.Fatal(err)
	}
	r.Release()

	data, _ := params.From(b.Transcoder(), "first")
	if n := ev.Push(data); n != 1 {
		t.Fatalf("Push = %d listeners", n)
	}

	r, err = sess.Call(ctx, "demo", "unsubscribe", nil)
	if err != nil {
		t.Fatal(err)
	}
	r.Release()
	if _, err := sess.Call(ctx, "demo", "unsubscribe", nil); err == nil {
		t.Fatal("second unsubscribe should fail")
	}

	data, _ = params.From(b.Transcoder(), "second")
	if n := ev.Push(data); n != 0 {
		t.Fatalf("Push after unsubscribe = %d", n)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "demo/tick:first" {
		t.Fatalf("events = %v", got)
	}
	if b.Transcoder().Table().Len() != 0 {
		t.Fatalf("%d cells leaked", b.Transcoder().Table().Len())
	}
}

func TestPostJob(t *testing.T) {
	b, api := newTestBinder(t)
	done := make(chan time.Duration, 1)
	start := time.Now()
	if err := api.PostJob(10*time.Millisecond, func() { done <- time.Since(start) }); err != nil {
		t.Fatal(err)
	}
	select {
	case d := <-done:
		if d < 10*time.Millisecond {
			t.Fatalf("job ran after %v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}

	if err := b.PostJob(0, func() { panic("job panic") }); err != nil {
		t.Fatal(err)
	}
}

func TestCloseAnswersPending(t *testing.T) {
	b, api := newTestBinder(t)
	api.RegisterVerb("silent", "", func(afbruntime.Request, *params.Params) error { return nil })

	statuses := make(chan int, 1)
	b.CallAsync("demo", "silent", nil, func(status int, reply *params.Params) {
		reply.Release()
		statuses <- status
	})

	deadline := time.Now().Add(time.Second)
	for b.Pending() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := b.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if status := <-statuses; status != afberrors.StatusNoReply {
		t.Fatalf("status = %d", status)
	}
	if err := b.PostJob(0, func() {}); err == nil {
		t.Fatal("PostJob after Close accepted")
	}
	status, reply := callStatus(t, func(cb afbruntime.ReplyFunc) { b.CallAsync("demo", "silent", nil, cb) })
	reply.Release()
	if status != afberrors.StatusAbort {
		t.Fatalf("call after Close status = %d", status)
	}
}

func TestRecorder(t *testing.T) {
	rec := &callRecord{}
	b, api := newTestBinder(t, WithRecorder(rec))
	api.RegisterVerb("echo", "", echo)

	r, _ := b.Call(context.Background(), "demo", "echo", nil)
	r.Release()
	b.Call(context.Background(), "demo", "missing", nil)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.status) != 2 || rec.status[0] != 0 || rec.status[1] != afberrors.StatusVerbNotFound {
		t.Fatalf("recorded %v", rec.status)
	}
}
