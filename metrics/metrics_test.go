package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	afbruntime "github.com/wippyai/afb-runtime"
	"github.com/wippyai/afb-runtime/binder"
	"github.com/wippyai/afb-runtime/params"
	"github.com/wippyai/afb-runtime/resource"
	"github.com/wippyai/afb-runtime/transcoder"
	"github.com/wippyai/afb-runtime/types"
)

func TestNewCollector(t *testing.T) {
	for _, ns := range []string{"", "test"} {
		c := NewCollector(ns)
		if c.Registry() == nil {
			t.Fatalf("namespace %q: registry should not be nil", ns)
		}
		if _, err := c.Registry().Gather(); err != nil {
			t.Fatalf("namespace %q: gather: %v", ns, err)
		}
	}
}

func TestVerbCalled(t *testing.T) {
	c := NewCollector("test")
	c.VerbCalled("demo", "ping", 0, time.Millisecond)
	c.VerbCalled("demo", "ping", 0, 2*time.Millisecond)
	c.VerbCalled("demo", "ping", -4, time.Millisecond)

	if got := testutil.ToFloat64(c.verbCalls.WithLabelValues("demo", "ping", "0")); got != 2 {
		t.Errorf("ok calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.verbCalls.WithLabelValues("demo", "ping", "-4")); got != 1 {
		t.Errorf("failed calls = %v, want 1", got)
	}
}

func TestTestCompleted(t *testing.T) {
	c := NewCollector("test")
	c.TestCompleted("suite", "g", "a", true, time.Millisecond)
	c.TestCompleted("suite", "g", "b", false, time.Millisecond)
	c.TestCompleted("suite", "g", "c", true, time.Millisecond)

	if got := testutil.ToFloat64(c.testsTotal.WithLabelValues("suite", "g", "pass")); got != 2 {
		t.Errorf("pass = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.testsTotal.WithLabelValues("suite", "g", "fail")); got != 1 {
		t.Errorf("fail = %v, want 1", got)
	}
}

func TestObserveTable(t *testing.T) {
	c := NewCollector("test")
	table := resource.NewTable()
	pre := table.Create(1, "before", nil)
	c.Observe(table)

	h := table.Create(1, "after", nil)
	if got := testutil.ToFloat64(c.cellsLive); got != 2 {
		t.Fatalf("live = %v, want 2", got)
	}

	table.AddRef(h)
	table.Unref(h)
	if got := testutil.ToFloat64(c.cellsLive); got != 2 {
		t.Fatalf("live after unref = %v, want 2", got)
	}

	table.Unref(h)
	table.Unref(pre)
	if got := testutil.ToFloat64(c.cellsLive); got != 0 {
		t.Errorf("live = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.cellsCreated); got != 1 {
		t.Errorf("created = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.cellsReleased); got != 2 {
		t.Errorf("released = %v, want 2", got)
	}
}

func TestConversionFailed(t *testing.T) {
	c := NewCollector("test")
	tc := transcoder.New(transcoder.WithRecorder(c))

	h := tc.NewCell(tc.Types().MustLookup(types.UIDByteArray), []byte{0xff})
	defer tc.Table().Unref(h)
	if _, err := tc.Convert(h, tc.Types().MustLookup(types.UIDBool)); err == nil {
		t.Fatal("bytearray to bool should fail")
	}
	if got := testutil.ToFloat64(c.conversionFailures.WithLabelValues(types.UIDByteArray, types.UIDBool)); got != 1 {
		t.Errorf("conversion failures = %v, want 1", got)
	}
}

func TestBinderWiring(t *testing.T) {
	c := NewCollector("test")
	tc := transcoder.New(transcoder.WithRecorder(c))
	c.Observe(tc.Table())
	b := binder.New(binder.WithTranscoder(tc), binder.WithRecorder(c))
	defer b.Close(context.Background())

	api, err := b.NewAPI("demo", "")
	if err != nil {
		t.Fatal(err)
	}
	api.RegisterVerb("ping", "", func(rqt afbruntime.Request, _ *params.Params) error {
		return rqt.ReplyValues(0, "pong")
	})

	reply, err := b.Call(context.Background(), "demo", "ping", nil)
	if err != nil {
		t.Fatal(err)
	}
	reply.Release()

	if got := testutil.ToFloat64(c.verbCalls.WithLabelValues("demo", "ping", "0")); got != 1 {
		t.Errorf("calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.cellsLive); got != 0 {
		t.Errorf("live cells = %v, want 0", got)
	}

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `test_binder_verb_calls_total{api="demo",status="0",verb="ping"} 1`) {
		t.Errorf("exposition missing verb counter:\n%s", body)
	}
}
