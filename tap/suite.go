package tap

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	afbruntime "github.com/wippyai/afb-runtime"
	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/params"
)

const (
	// Autostart labels the implicit group run by autorun.
	Autostart = "autostart"

	// DefaultTimeout bounds tests that set no timeout of their own.
	DefaultTimeout = 5 * time.Second
)

// Recorder receives test outcomes. The metrics collector implements it.
type Recorder interface {
	TestCompleted(suite, group, test string, passed bool, elapsed time.Duration)
}

// Progress is pushed on the suite event after each completed test.
type Progress struct {
	Suite  string `json:"suite"`
	Group  string `json:"group"`
	Test   string `json:"test"`
	Report string `json:"report"`
	Index  int    `json:"index"`
	Status int    `json:"status"`
}

// Suite is a set of test groups hosted by one API.
type Suite struct {
	host          afbruntime.Host
	event         afbruntime.Event
	logger        *zap.Logger
	recorder      Recorder
	out           io.Writer
	exit          func(int)
	autostart     *Group
	groups        map[string]*Group
	done          chan struct{}
	uid           string
	info          string
	order         []string
	errs          []error
	timeout       time.Duration
	output        Output
	autorun       bool
	autoexit      bool
	exitOnFailure bool
	finalized     atomic.Bool
	doneOnce      sync.Once
	mu            sync.RWMutex
}

// NewSuite creates a suite hosted by host, with autorun and autoexit
// enabled and TAP output. It creates the suite progress event.
func NewSuite(host afbruntime.Host, uid string) (*Suite, error) {
	event, err := host.NewEvent(uid)
	if err != nil {
		return nil, err
	}
	s := &Suite{
		host:     host,
		event:    event,
		logger:   host.Logger().With(zap.String("suite", uid)),
		out:      os.Stdout,
		exit:     os.Exit,
		groups:   make(map[string]*Group),
		done:     make(chan struct{}),
		uid:      uid,
		timeout:  DefaultTimeout,
		output:   OutputTAP,
		autorun:  true,
		autoexit: true,
	}
	s.autostart = NewGroup(Autostart).SetInfo("default tap autostart group")
	s.autostart.suite = s
	s.groups[Autostart] = s.autostart
	return s, nil
}

func (s *Suite) UID() string { return s.uid }

// Event returns the progress event.
func (s *Suite) Event() afbruntime.Event { return s.event }

func (s *Suite) SetInfo(info string) *Suite {
	s.info = info
	return s
}

// SetTimeout sets the suite default test timeout.
func (s *Suite) SetTimeout(d time.Duration) *Suite {
	s.timeout = d
	return s
}

// SetAutorun controls whether Finalize schedules the autostart group.
func (s *Suite) SetAutorun(v bool) *Suite {
	s.autorun = v
	return s
}

// SetAutoexit controls whether the process exits after autorun.
func (s *Suite) SetAutoexit(v bool) *Suite {
	s.autoexit = v
	return s
}

// SetOutput selects the autorun report format.
func (s *Suite) SetOutput(o Output) *Suite {
	s.output = o
	return s
}

// SetExitOnFailure makes autoexit use exit code 1 when a test failed.
// By default autoexit always exits with 0.
func (s *Suite) SetExitOnFailure(v bool) *Suite {
	s.exitOnFailure = v
	return s
}

// SetWriter sets where the autorun report is printed.
func (s *Suite) SetWriter(w io.Writer) *Suite {
	s.out = w
	return s
}

// SetExitFunc replaces os.Exit for autoexit.
func (s *Suite) SetExitFunc(fn func(int)) *Suite {
	s.exit = fn
	return s
}

// SetRecorder reports test outcomes to r.
func (s *Suite) SetRecorder(r Recorder) *Suite {
	s.recorder = r
	return s
}

func (s *Suite) Autorun() bool          { return s.autorun }
func (s *Suite) Autoexit() bool         { return s.autoexit }
func (s *Suite) Output() Output         { return s.output }
func (s *Suite) Timeout() time.Duration { return s.timeout }

// AddTest appends a test to the autostart group.
func (s *Suite) AddTest(t *Test) *Suite {
	s.autostart.AddTest(t)
	return s
}

// AddGroup attaches a group. Labels are unique.
func (s *Suite) AddGroup(g *Group) *Suite {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[g.uid]; exists || g.uid == "" {
		s.errs = append(s.errs, errors.AlreadyExists(errors.PhaseTest, "group", g.uid))
		return s
	}
	g.suite = s
	s.groups[g.uid] = g
	s.order = append(s.order, g.uid)
	return s
}

// Group returns the group with the given label.
func (s *Suite) Group(label string) (*Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[label]
	return g, ok
}

// Groups returns the groups in report order, autostart first.
func (s *Suite) Groups() []*Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Group, 0, len(s.order)+1)
	out = append(out, s.autostart)
	for _, label := range s.order {
		out = append(out, s.groups[label])
	}
	return out
}

// Launch runs the group with the given label.
func (s *Suite) Launch(label string) error {
	g, ok := s.Group(label)
	if !ok {
		return errors.NotFound(errors.PhaseTest, "group", label)
	}
	return g.Launch()
}

// Finalize registers the group and test verbs and the autostart verb,
// seals the hosting API and schedules autorun when enabled.
func (s *Suite) Finalize() error {
	if !s.finalized.CompareAndSwap(false, true) {
		return errors.New(errors.PhaseTest, errors.KindAlreadyExists).
			Detail("suite %s already finalized", s.uid).
			Build()
	}
	if len(s.errs) > 0 {
		return s.errs[0]
	}

	for _, g := range s.Groups() {
		for _, t := range g.tests {
			if err := t.validate(); err != nil {
				return err
			}
		}
	}

	for _, g := range s.Groups() {
		if g != s.autostart {
			if err := s.host.RegisterVerb(g.uid, g.info, s.groupVerb(g)); err != nil {
				return err
			}
		}
		for _, t := range g.tests {
			name := g.uid + "/" + t.uid
			if err := s.host.RegisterVerb(name, t.info, s.testVerb(t)); err != nil {
				s.logger.Warn("skip test verb", zap.String("verb", name), zap.Error(err))
			}
		}
	}
	if err := s.host.RegisterVerb(Autostart, s.autostart.info, s.groupVerb(s.autostart)); err != nil {
		return err
	}
	s.host.Seal()

	if !s.autorun {
		return nil
	}
	return s.host.PostJob(0, s.runAutostart)
}

func (s *Suite) groupVerb(g *Group) afbruntime.VerbHandler {
	return func(rqt afbruntime.Request, _ *params.Params) error {
		if err := s.event.Subscribe(rqt); err != nil {
			rqt.Logger().Warn("fail to subscribe to suite event", zap.Error(err))
		}
		if err := g.Launch(); err != nil {
			return err
		}
		reply, err := params.From(s.host.Transcoder(), jsonc.MustFrom(g.Report()))
		if err != nil {
			return err
		}
		return rqt.Reply(0, reply)
	}
}

func (s *Suite) testVerb(t *Test) afbruntime.VerbHandler {
	return func(rqt afbruntime.Request, _ *params.Params) error {
		t.jobpost()
		t.wait()
		reply, err := params.From(s.host.Transcoder(), t.Report())
		if err != nil {
			return err
		}
		return rqt.Reply(0, reply)
	}
}

func (s *Suite) completed(t *Test, resp Response, elapsed time.Duration) {
	if s.recorder != nil {
		s.recorder.TestCompleted(s.uid, t.group.uid, t.uid, resp.Passed, elapsed)
	}

	progress := Progress{
		Suite:  s.uid,
		Group:  t.group.uid,
		Test:   t.uid,
		Index:  t.index,
		Status: resp.Status,
		Report: t.Report(),
	}
	data, err := params.From(s.host.Transcoder(), jsonc.MustFrom(progress))
	if err != nil {
		s.logger.Error("fail to build progress event", zap.Error(err))
		return
	}
	s.event.Push(data)
}

// Report aggregates the group reports.
func (s *Suite) Report() Report {
	groups := s.Groups()
	r := Report{Groups: make([]GroupReport, len(groups))}
	for i, g := range groups {
		r.Groups[i] = GroupReport{Label: g.uid, Lines: g.Report()}
	}
	return r
}

// Failed reports whether any completed test failed.
func (s *Suite) Failed() bool {
	for _, g := range s.Groups() {
		if g.Failed() {
			return true
		}
	}
	return false
}

// ExitCode is the code autoexit uses.
func (s *Suite) ExitCode() int {
	if s.exitOnFailure && s.Failed() {
		return 1
	}
	return 0
}

// Done is closed once autorun has printed the report.
func (s *Suite) Done() <-chan struct{} { return s.done }

// Run launches the autostart group, prints the report and exits when
// autoexit is set.
func (s *Suite) Run() Report {
	s.runAutostart()
	return s.Report()
}

func (s *Suite) runAutostart() {
	if err := s.autostart.Launch(); err != nil {
		s.logger.Error("test fail autostart", zap.Error(err))
	}

	report := s.Report()
	if err := report.Write(s.out, s.uid, s.output); err != nil {
		s.logger.Error("fail to write report", zap.Error(err))
	}
	s.doneOnce.Do(func() { close(s.done) })

	if s.autoexit {
		code := s.ExitCode()
		s.logger.Info("tap suite done", zap.Bool("failed", s.Failed()), zap.Int("exit", code))
		s.exit(code)
	}
}
