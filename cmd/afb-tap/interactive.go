package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/afb-runtime/binder"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/params"
	"github.com/wippyai/afb-runtime/tap"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	groupStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type progressMsg tap.Progress

type doneMsg struct{}

type progressModel struct {
	suite   *tap.Suite
	spinner spinner.Model
	lines   []tap.Progress
	passed  int
	failed  int
	done    bool
}

func newProgressModel(suite *tap.Suite) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = groupStyle
	return &progressModel{suite: suite, spinner: s}
}

func (m *progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case progressMsg:
		p := tap.Progress(msg)
		m.lines = append(m.lines, p)
		if strings.HasPrefix(p.Report, "not ok") {
			m.failed++
		} else {
			m.passed++
		}

	case doneMsg:
		m.done = true

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("AFB TAP"))
	b.WriteString(" ")
	b.WriteString(m.suite.UID())
	b.WriteString("\n\n")

	group := ""
	for _, p := range m.lines {
		if p.Group != group {
			group = p.Group
			b.WriteString(groupStyle.Render("# " + group))
			b.WriteString("\n")
		}
		style := passStyle
		if strings.HasPrefix(p.Report, "not ok") {
			style = failStyle
		}
		b.WriteString("  ")
		b.WriteString(style.Render(p.Report))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	summary := fmt.Sprintf("%d passed, %d failed", m.passed, m.failed)
	if m.done {
		b.WriteString(summary)
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("q quit"))
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" running ")
		b.WriteString(summary)
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("q abort"))
	}
	return b.String()
}

// progressUI follows the suite progress event from its own session.
type progressUI struct {
	program *tea.Program
	suite   *tap.Suite
}

func newProgressUI(b *binder.Binder, suite *tap.Suite) *progressUI {
	ui := &progressUI{
		program: tea.NewProgram(newProgressModel(suite), tea.WithAltScreen()),
		suite:   suite,
	}

	sess := b.NewSession()
	sess.OnEvent(func(_ string, data *params.Params) {
		defer data.Release()
		doc, err := params.Get[jsonc.Doc](data, 0)
		if err != nil {
			return
		}
		var p tap.Progress
		if err := doc.Decode(&p); err == nil {
			ui.program.Send(progressMsg(p))
		}
	})
	if event, ok := b.Event(suite.Event().Name()); ok {
		event.SubscribeSession(sess)
	}
	return ui
}

// Run shows the view until the user quits or ctx is cancelled.
func (ui *progressUI) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ui.suite.Done():
			ui.program.Send(doneMsg{})
		case <-ctx.Done():
			ui.program.Quit()
		}
	}()
	_, err := ui.program.Run()
	return err
}
