package tap

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/params"
)

// Expectation is a JSON fragment matched against one reply argument.
type Expectation struct {
	Doc  jsonc.Doc
	Mode jsonc.Mode
}

// Response is the outcome of a completed test run.
type Response struct {
	Err        error // *errors.Error of kind assertion when the check failed
	Diagnostic string
	Status     int
	Passed     bool
}

// Test is a single verb call with its expectations.
type Test struct {
	group     *Group
	timer     *time.Timer
	response  *Response
	err       error
	sem       chan struct{}
	uid       string
	info      string
	api       string
	verb      string
	onSuccess string
	onError   string
	args      []any
	expects   []Expectation
	timeout   time.Duration
	delay     time.Duration
	started   time.Time
	status    int
	index     int
	run       uint64
	mu        sync.Mutex
}

// NewTest creates a test calling api/verb and expecting status 0.
func NewTest(uid, api, verb string) *Test {
	return &Test{
		uid:  uid,
		api:  api,
		verb: verb,
		sem:  make(chan struct{}, 1),
	}
}

func (t *Test) SetInfo(info string) *Test {
	t.info = info
	return t
}

// SetStatus sets the expected reply status.
func (t *Test) SetStatus(status int) *Test {
	t.status = status
	return t
}

// SetArgs sets the call arguments. They are converted to data cells on
// every run.
func (t *Test) SetArgs(values ...any) *Test {
	t.args = append([]any(nil), values...)
	return t
}

// AddArg appends one call argument.
func (t *Test) AddArg(v any) *Test {
	t.args = append(t.args, v)
	return t
}

func (t *Test) SetTimeout(d time.Duration) *Test {
	t.timeout = d
	return t
}

// SetDelay postpones the call after the test is posted.
func (t *Test) SetDelay(d time.Duration) *Test {
	t.delay = d
	return t
}

// SetOnSuccess names the group to continue with when the test passes.
func (t *Test) SetOnSuccess(label string) *Test {
	t.onSuccess = label
	return t
}

// SetOnError names the group to continue with when the test fails.
func (t *Test) SetOnError(label string) *Test {
	t.onError = label
	return t
}

// AddExpect adds an expectation for the next reply argument. Objects match
// partially, every other value must be equal.
func (t *Test) AddExpect(v any) *Test {
	doc, err := t.expectDoc(v)
	if err != nil {
		return t
	}
	mode := jsonc.Full
	if doc.IsObject() {
		mode = jsonc.Partial
	}
	t.expects = append(t.expects, Expectation{Doc: doc, Mode: mode})
	return t
}

// AddExpectFull adds an expectation requiring full equality.
func (t *Test) AddExpectFull(v any) *Test {
	if doc, err := t.expectDoc(v); err == nil {
		t.expects = append(t.expects, Expectation{Doc: doc, Mode: jsonc.Full})
	}
	return t
}

// AddExpectPartial adds an expectation matching object keys as a subset.
func (t *Test) AddExpectPartial(v any) *Test {
	if doc, err := t.expectDoc(v); err == nil {
		t.expects = append(t.expects, Expectation{Doc: doc, Mode: jsonc.Partial})
	}
	return t
}

func (t *Test) expectDoc(v any) (jsonc.Doc, error) {
	doc, err := jsonc.From(v)
	if err != nil && t.err == nil {
		t.err = errors.New(errors.PhaseTest, errors.KindInvalidInput).
			Path(t.uid).
			Detail("expectation %d", len(t.expects)).
			Cause(err).
			Build()
	}
	return doc, err
}

func (t *Test) UID() string  { return t.uid }
func (t *Test) Info() string { return t.info }
func (t *Test) Index() int   { return t.index }

// Expectations returns the registered expectations.
func (t *Test) Expectations() []Expectation {
	return append([]Expectation(nil), t.expects...)
}

// Response returns the outcome of the last completed run.
func (t *Test) Response() (Response, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.response == nil {
		return Response{}, false
	}
	return *t.response, true
}

// Report returns the TAP line of the test.
func (t *Test) Report() string {
	resp, ok := t.Response()
	switch {
	case !ok:
		return fmt.Sprintf("ok %d - %s # SKIP", t.index, t.uid)
	case resp.Passed:
		return fmt.Sprintf("ok %d - %s", t.index, t.uid)
	default:
		return fmt.Sprintf("not ok %d - %s # %s", t.index, t.uid, resp.Diagnostic)
	}
}

func (t *Test) suite() *Suite {
	return t.group.suite
}

func (t *Test) effectiveTimeout() time.Duration {
	if t.timeout > 0 {
		return t.timeout
	}
	if t.group != nil && t.group.timeout > 0 {
		return t.group.timeout
	}
	return t.suite().timeout
}

// validate checks that the test arguments have a native form.
func (t *Test) validate() error {
	if t.err != nil {
		return t.err
	}
	if t.api == "" || t.verb == "" {
		return errors.InvalidInput(errors.PhaseTest, "test "+t.uid+" requires api and verb")
	}
	args, err := params.Of(t.suite().host.Transcoder(), t.args...)
	if err != nil {
		return errors.New(errors.PhaseTest, errors.KindInvalidInput).
			Path(t.uid).
			Detail("invalid arguments").
			Cause(err).
			Build()
	}
	args.Release()
	return nil
}

// jobpost starts one run. It blocks while a previous run of the same test
// is in flight and returns once the call is scheduled.
func (t *Test) jobpost() {
	s := t.suite()
	t.sem <- struct{}{}

	t.mu.Lock()
	t.run++
	run := t.run
	t.response = nil
	t.timer = nil
	t.started = time.Now()
	t.mu.Unlock()

	timeout := t.effectiveTimeout()
	s.logger.Debug("post test",
		zap.String("test", t.uid),
		zap.Int("index", t.index),
		zap.String("target", "/"+t.api+"/"+t.verb),
		zap.Duration("timeout", timeout),
		zap.Duration("delay", t.delay))

	err := s.host.PostJob(t.delay, func() {
		if timeout > 0 {
			timer := time.AfterFunc(timeout, func() {
				if t.finish(run, t.check(errors.StatusWatchdog, nil)) {
					s.logger.Warn("test watchdog expired",
						zap.String("test", t.uid),
						zap.Duration("timeout", timeout))
				}
			})
			t.mu.Lock()
			if t.run == run && t.response == nil {
				t.timer = timer
			} else {
				timer.Stop()
			}
			t.mu.Unlock()
		}

		args, err := params.Of(s.host.Transcoder(), t.args...)
		if err != nil {
			t.finish(run, t.failed(errors.StatusInvalidDataType, oneLine(err.Error()), err))
			return
		}
		s.host.CallAsync(t.api, t.verb, args, func(status int, reply *params.Params) {
			defer reply.Release()
			if !t.finish(run, t.check(status, reply)) {
				s.logger.Info("late reply ignored",
					zap.String("test", t.uid),
					zap.Int("status", status))
			}
		})
	})
	if err != nil {
		t.finish(run, t.failed(errors.StatusAbort, "Fail to post job", err))
	}
}

// finish records the outcome of run. Only the first outcome of a run is
// kept; it returns false for any later one.
func (t *Test) finish(run uint64, resp Response) bool {
	t.mu.Lock()
	if t.run != run || t.response != nil {
		t.mu.Unlock()
		return false
	}
	t.response = &resp
	timer := t.timer
	elapsed := time.Since(t.started)
	t.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	t.suite().completed(t, resp, elapsed)
	<-t.sem
	return true
}

// wait blocks until the current run, if any, has completed.
func (t *Test) wait() Response {
	t.sem <- struct{}{}
	resp, _ := t.Response()
	<-t.sem
	return resp
}

func (t *Test) check(status int, reply *params.Params) Response {
	if status != t.status {
		return t.failed(status, fmt.Sprintf("status=%d info=%s", status, errors.StatusInfo(status)), nil)
	}
	if reply == nil {
		reply = params.New(t.suite().host.Transcoder())
	}

	for i, exp := range t.expects {
		got, err := params.Get[jsonc.Doc](reply, i)
		if err != nil {
			return t.failed(status, oneLine(err.Error()), err)
		}
		if err := jsonc.Match(exp.Doc, got, exp.Mode); err != nil {
			t.suite().logger.Warn("expectation mismatch",
				zap.String("test", t.uid),
				zap.Int("arg", i),
				zap.Stringer("mode", exp.Mode),
				zap.String("expected", exp.Doc.Raw()),
				zap.String("received", got.Raw()))
			return t.failed(status, oneLine(jsonc.Describe(err)), err)
		}
	}
	return Response{Status: status, Passed: true}
}

func (t *Test) failed(status int, detail string, cause error) Response {
	err := errors.Assertion(t.uid, detail)
	err.Cause = cause
	return Response{Err: err, Status: status, Diagnostic: detail}
}

// next waits for the current run and returns the test to run after it.
func (t *Test) next() *Test {
	resp := t.wait()

	label := t.onError
	if resp.Passed {
		label = t.onSuccess
	}
	if label == "" {
		return t.group.test(t.index)
	}

	g, ok := t.suite().Group(label)
	if !ok {
		t.suite().logger.Error("fail to find test group",
			zap.String("test", t.uid),
			zap.String("label", label))
		return nil
	}
	return g.test(0)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
