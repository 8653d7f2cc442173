package tap

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/afb-runtime/errors"
)

// Group is an ordered list of tests exposed as one verb.
type Group struct {
	suite   *Suite
	uid     string
	info    string
	tests   []*Test
	timeout time.Duration
}

// NewGroup creates an empty group.
func NewGroup(uid string) *Group {
	return &Group{uid: uid}
}

func (g *Group) SetInfo(info string) *Group {
	g.info = info
	return g
}

// SetTimeout sets the default timeout of the group tests.
func (g *Group) SetTimeout(d time.Duration) *Group {
	g.timeout = d
	return g
}

// AddTest appends a test. Tests are numbered from 1 in declaration order.
func (g *Group) AddTest(t *Test) *Group {
	t.group = g
	g.tests = append(g.tests, t)
	t.index = len(g.tests)
	return g
}

func (g *Group) UID() string { return g.uid }

// Tests returns the tests in declaration order.
func (g *Group) Tests() []*Test {
	return append([]*Test(nil), g.tests...)
}

func (g *Group) test(i int) *Test {
	if i < 0 || i >= len(g.tests) {
		return nil
	}
	return g.tests[i]
}

// Launch runs the group from its first test, following each test's
// continuation until the sequence ends, and waits for the last test.
func (g *Group) Launch() error {
	first := g.test(0)
	if first == nil {
		return errors.NotFound(errors.PhaseTest, "test in group", g.uid)
	}
	if g.suite == nil {
		return errors.New(errors.PhaseTest, errors.KindNotInitialized).
			Detail("group %s is not attached to a suite", g.uid).
			Build()
	}

	visited := make(map[*Test]bool)
	for t := first; t != nil; {
		if visited[t] {
			g.suite.logger.Warn("test sequence loops, stopping",
				zap.String("group", g.uid),
				zap.String("test", t.uid))
			break
		}
		visited[t] = true
		t.jobpost()
		t = t.next()
	}
	return nil
}

// Report returns the plan line followed by one line per test in
// declaration order.
func (g *Group) Report() []string {
	lines := make([]string, 0, len(g.tests)+1)
	lines = append(lines, fmt.Sprintf("1..%d # %s", len(g.tests), g.uid))
	for _, t := range g.tests {
		lines = append(lines, t.Report())
	}
	return lines
}

// Failed reports whether a test of the group completed without passing.
func (g *Group) Failed() bool {
	for _, t := range g.tests {
		if resp, ok := t.Response(); ok && !resp.Passed {
			return true
		}
	}
	return false
}
