package samples

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wippyai/afb-runtime/binder"
	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/params"
	"github.com/wippyai/afb-runtime/tap"
	"github.com/wippyai/afb-runtime/transcoder"
)

var fast = []Option{
	WithJobDelay(30 * time.Millisecond),
	WithTimer(5*time.Millisecond, 3),
	WithCallTimeout(time.Second),
}

func newDemo(t *testing.T) *binder.Binder {
	t.Helper()
	b := binder.New(binder.WithTranscoder(transcoder.New()))
	if _, err := Register(b, fast...); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		b.Close(ctx)
	})
	return b
}

func call(t *testing.T, b *binder.Binder, sess *binder.Session, verb string, args ...any) (*params.Params, error) {
	t.Helper()
	p, err := params.Of(b.Transcoder(), args...)
	if err != nil {
		t.Fatal(err)
	}
	return sess.Call(context.Background(), DemoAPI, verb, p)
}

func TestRegisterTwice(t *testing.T) {
	b := newDemo(t)
	if _, err := Register(b); err == nil {
		t.Fatal("second registration should fail on the existing api")
	}
	if err := RegisterSimpleData(b.Transcoder()); err != nil {
		t.Fatalf("converter registration is not idempotent: %v", err)
	}
}

func TestRegisterSimpleDataConcurrent(t *testing.T) {
	tc := transcoder.New()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- RegisterSimpleData(tc)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent registration failed: %v", err)
		}
	}
	if _, ok := tc.Converter(SimpleDataUID); !ok {
		t.Fatal("converter not registered")
	}
}

func TestVerbBasic(t *testing.T) {
	b := newDemo(t)
	sess := b.NewSession()

	reply, err := call(t, b, sess, "verb_basic", jsonc.MustParse(`{"city":"Lorient"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer reply.Release()
	doc, _ := params.Get[jsonc.Doc](reply, 0)
	if !jsonc.Equal(jsonc.MustParse(`{"CITY":"LORIENT"}`), doc) {
		t.Fatalf("reply = %s", doc)
	}
}

func TestVerbTyped(t *testing.T) {
	b := newDemo(t)
	sess := b.NewSession()

	tests := []struct {
		name string
		arg  any
		want SimpleData
	}{
		{"native", SimpleData{Name: "a", X: 1, Y: 1}, SimpleData{Name: "A", X: 2, Y: 0}},
		{"from json", jsonc.Raw(`{"name":"b","x":10,"y":20}`), SimpleData{Name: "B", X: 11, Y: 19}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := call(t, b, sess, "verb_typed", tt.arg)
			if err != nil {
				t.Fatal(err)
			}
			defer reply.Release()
			got, err := params.Get[SimpleData](reply, 0)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := call(t, b, sess, "verb_typed", "not json"); errors.StatusOf(err) != errors.StatusApplication {
		t.Fatalf("invalid input status = %d (%v)", errors.StatusOf(err), err)
	}
}

func TestLOAGroup(t *testing.T) {
	b := newDemo(t)
	sess := b.NewSession()

	if _, err := call(t, b, sess, "loa_group/check"); errors.StatusOf(err) != errors.StatusInvalidScope {
		t.Fatalf("check without loa: %v", err)
	}
	reply, err := call(t, b, sess, "loa_group/set")
	if err != nil {
		t.Fatal(err)
	}
	reply.Release()
	reply, err = call(t, b, sess, "loa_group/check")
	if err != nil {
		t.Fatal(err)
	}
	reply.Release()

	if _, err := call(t, b, b.NewSession(), "loa_group/check"); err == nil {
		t.Fatal("loa leaked to another session")
	}
}

func TestSessionGroup(t *testing.T) {
	b := newDemo(t)
	sess := b.NewSession()

	if _, err := call(t, b, sess, "session_group/read"); err == nil {
		t.Fatal("read before reset should fail")
	}
	steps := []struct {
		verb string
		want uint32
	}{
		{"session_group/reset", 0},
		{"session_group/read", 1},
		{"session_group/read", 2},
		{"session_group/reset", 0},
		{"session_group/read", 1},
	}
	for i, s := range steps {
		reply, err := call(t, b, sess, s.verb)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		got, _ := params.Get[uint32](reply, 0)
		reply.Release()
		if got != s.want {
			t.Fatalf("step %d %s = %d, want %d", i, s.verb, got, s.want)
		}
	}
	reply, err := call(t, b, sess, "session_group/drop")
	if err != nil {
		t.Fatal(err)
	}
	reply.Release()
	if _, err := call(t, b, sess, "session_group/drop"); err == nil {
		t.Fatal("second drop should fail")
	}
}

func TestEventGroup(t *testing.T) {
	b := newDemo(t)
	sess := b.NewSession()

	var mu sync.Mutex
	var got []string
	sess.OnEvent(func(name string, data *params.Params) {
		defer data.Release()
		doc, _ := params.Get[jsonc.Doc](data, 1)
		mu.Lock()
		got = append(got, name+" "+doc.Get("info").Str())
		mu.Unlock()
	})

	if _, err := call(t, b, sess, "event_group/push", jsonc.MustParse(`{"info":"x"}`)); err == nil {
		t.Fatal("push without listener should fail")
	}

	reply, err := call(t, b, sess, "event_group/subscribe")
	if err != nil {
		t.Fatal(err)
	}
	reply.Release()

	reply, err = call(t, b, sess, "event_group/push", jsonc.MustParse(`{"info":"hello"}`))
	if err != nil {
		t.Fatal(err)
	}
	n, _ := params.Get[int](reply, 0)
	reply.Release()
	if n != 1 {
		t.Fatalf("listeners = %d", n)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "demo/demo-event hello" {
		t.Fatalf("events = %q", got)
	}
}

func TestTimerGroup(t *testing.T) {
	b := newDemo(t)
	sess := b.NewSession()

	ticks := make(chan uint32, 10)
	sess.OnEvent(func(name string, data *params.Params) {
		defer data.Release()
		if n, err := params.Get[uint32](data, 0); err == nil {
			ticks <- n
		}
	})

	reply, err := call(t, b, sess, "timer_group/timer-start")
	if err != nil {
		t.Fatal(err)
	}
	reply.Release()

	for want := uint32(1); want <= 3; want++ {
		select {
		case n := <-ticks:
			if n != want {
				t.Fatalf("tick = %d, want %d", n, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("tick %d not received", want)
		}
	}

	start := time.Now()
	reply, err = call(t, b, sess, "timer_group/job-post", jsonc.MustParse(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	defer reply.Release()
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("job-post replied after %v", elapsed)
	}
	doc, _ := params.Get[jsonc.Doc](reply, 0)
	if doc.Get("a").Int() != 1 {
		t.Fatalf("reply = %s", doc)
	}
}

func TestSubcallGroup(t *testing.T) {
	b := newDemo(t)
	sess := b.NewSession()

	for verb, key := range map[string]string{
		"subcall_group/sync-call":  "response",
		"subcall_group/async-call": "RESPONSE",
	} {
		reply, err := call(t, b, sess, verb)
		if err != nil {
			t.Fatalf("%s: %v", verb, err)
		}
		doc, _ := params.Get[jsonc.Doc](reply, 0)
		reply.Release()
		if v := doc.Get(key).Str(); strings.ToLower(v) != "pong" {
			t.Fatalf("%s reply = %s", verb, doc)
		}
	}
}

func TestDemoSuite(t *testing.T) {
	b := newDemo(t)
	host, err := b.NewAPI("tap", "")
	if err != nil {
		t.Fatal(err)
	}
	suite, err := tap.NewSuite(host, "demo-suite")
	if err != nil {
		t.Fatal(err)
	}
	suite.SetAutorun(false).SetAutoexit(false)
	AddTests(suite, fast...)
	if err := suite.Finalize(); err != nil {
		t.Fatal(err)
	}
	if err := suite.Launch(tap.Autostart); err != nil {
		t.Fatal(err)
	}

	for _, g := range suite.Report().Groups {
		for _, line := range g.Lines[1:] {
			if !strings.HasPrefix(line, "ok ") || strings.HasSuffix(line, "# SKIP") {
				t.Errorf("%s: %s", g.Label, line)
			}
		}
	}
	if suite.Failed() {
		t.Fatal("demo suite failed")
	}
}
