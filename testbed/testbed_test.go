package testbed

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wippyai/afb-runtime/binder"
	"github.com/wippyai/afb-runtime/config"
	"github.com/wippyai/afb-runtime/metrics"
	"github.com/wippyai/afb-runtime/samples"
	"github.com/wippyai/afb-runtime/tap"
	"github.com/wippyai/afb-runtime/transcoder"
)

var fast = []samples.Option{
	samples.WithJobDelay(30 * time.Millisecond),
	samples.WithTimer(5*time.Millisecond, 3),
	samples.WithCallTimeout(time.Second),
}

// stack wires the binder the same way afb-tap does.
type stack struct {
	binder    *binder.Binder
	collector *metrics.Collector
	exit      chan int
	out       bytes.Buffer
}

func newStack(t *testing.T) *stack {
	t.Helper()
	collector := metrics.NewCollector("afb")
	tc := transcoder.New(transcoder.WithRecorder(collector))
	collector.Observe(tc.Table())
	b := binder.New(binder.WithTranscoder(tc), binder.WithRecorder(collector))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		b.Close(ctx)
	})
	if _, err := samples.Register(b, fast...); err != nil {
		t.Fatal(err)
	}
	return &stack{binder: b, collector: collector, exit: make(chan int, 1)}
}

func (s *stack) suite(t *testing.T, cfg *config.Config) *tap.Suite {
	t.Helper()
	host, err := s.binder.NewAPI("afb-tap", "tap test runner")
	if err != nil {
		t.Fatal(err)
	}
	suite, err := tap.NewSuite(host, cfg.UID)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Apply(suite); err != nil {
		t.Fatal(err)
	}
	suite.SetRecorder(s.collector).
		SetWriter(&s.out).
		SetExitFunc(func(code int) { s.exit <- code })
	return suite
}

func (s *stack) wait(t *testing.T) int {
	t.Helper()
	select {
	case code := <-s.exit:
		return code
	case <-time.After(10 * time.Second):
		t.Fatal("suite did not exit")
		return -1
	}
}

func (s *stack) scrape(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(s.collector.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestDemoSuiteAutorun(t *testing.T) {
	st := newStack(t)
	cfg := config.Default()
	cfg.UID = "demo-suite"
	cfg.ExitOnFailure = true
	suite := st.suite(t, cfg)
	samples.AddTests(suite, fast...)
	if err := suite.Finalize(); err != nil {
		t.Fatal(err)
	}

	if code := st.wait(t); code != 0 {
		t.Fatalf("exit code = %d\n%s", code, st.out.String())
	}

	out := st.out.String()
	if !strings.HasPrefix(out, "-- start:demo-suite --\n") || !strings.HasSuffix(out, "-- end:demo-suite --\n") {
		t.Fatalf("report framing:\n%s", out)
	}
	for _, label := range []string{"autostart", "check-session", "check-loa", "check-timer", "check-event", "check-subcall"} {
		if !strings.Contains(out, " # "+label+"\n") {
			t.Errorf("report misses group %s", label)
		}
	}
	if strings.Contains(out, "not ok") || strings.Contains(out, "# SKIP") {
		t.Fatalf("incomplete run:\n%s", out)
	}

	exposition := st.scrape(t)
	for _, want := range []string{
		`afb_tap_tests_total{group="autostart",result="pass",suite="demo-suite"}`,
		`afb_tap_tests_total{group="check-subcall",result="pass",suite="demo-suite"}`,
		`afb_binder_verb_calls_total{api="demo",status="0",verb="ping"}`,
	} {
		if !strings.Contains(exposition, want) {
			t.Errorf("exposition misses %s", want)
		}
	}
	if strings.Contains(exposition, `result="fail"`) {
		t.Error("exposition reports failed tests")
	}
}

const yamlSuite = `
uid: yaml-suite
timeout: 2s
output: json
exit_on_failure: true
tests:
  - uid: ping
    api: demo
    verb: ping
    expect: [pong]
    on_success: transform
  - uid: loop
    api: loop-test
    verb: ping
    expect: [{response: pong}]
groups:
  - uid: transform
    tests:
      - uid: upper
        api: demo
        verb: verb_basic
        args: [{city: lorient}]
        expect: [{CITY: LORIENT}]
      - uid: typed
        api: demo
        verb: verb_typed
        args: [{name: afb, x: 1, y: 1}]
        expect: [{x: 2, y: 0}]
      - uid: missing-loa
        api: demo
        verb: loa_group/check
        status: -9
`

func TestConfigSuiteJSON(t *testing.T) {
	st := newStack(t)
	cfg, err := config.Parse([]byte(yamlSuite))
	if err != nil {
		t.Fatal(err)
	}
	suite := st.suite(t, cfg)
	if err := suite.Finalize(); err != nil {
		t.Fatal(err)
	}

	if code := st.wait(t); code != 0 {
		t.Fatalf("exit code = %d\n%s", code, st.out.String())
	}

	out := st.out.String()
	if !gjson.Valid(out) {
		t.Fatalf("report is not json: %s", out)
	}
	report := gjson.Parse(out)
	var labels []string
	report.ForEach(func(key, _ gjson.Result) bool {
		labels = append(labels, key.String())
		return true
	})
	if strings.Join(labels, ",") != "autostart,transform" {
		t.Fatalf("group order = %v", labels)
	}

	tests := []struct {
		path string
		want string
	}{
		{"autostart.0", "1..2 # autostart"},
		{"autostart.1", "ok 1 - ping"},
		{"autostart.2", "ok 2 - loop # SKIP"},
		{"transform.#", "4"},
		{"transform.3", "ok 3 - missing-loa"},
	}
	for _, tt := range tests {
		if got := report.Get(tt.path).String(); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestConfigSuiteFailure(t *testing.T) {
	st := newStack(t)
	cfg, err := config.Parse([]byte(`
uid: failing
exit_on_failure: true
tests:
  - uid: wrong-reply
    api: demo
    verb: ping
    expect: [ping]
  - uid: wrong-status
    api: demo
    verb: ping
    status: -1
`))
	if err != nil {
		t.Fatal(err)
	}
	suite := st.suite(t, cfg)
	if err := suite.Finalize(); err != nil {
		t.Fatal(err)
	}

	if code := st.wait(t); code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	out := st.out.String()
	for _, want := range []string{"not ok 1 - wrong-reply", "not ok 2 - wrong-status # status=0 info=Success"} {
		if !strings.Contains(out, want) {
			t.Errorf("report misses %q:\n%s", want, out)
		}
	}
	if !strings.Contains(st.scrape(t), `afb_tap_tests_total{group="autostart",result="fail",suite="failing"} 2`) {
		t.Error("failed tests not counted")
	}
}
