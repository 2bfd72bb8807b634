// Package tui is the terminal front end of an interview session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	callsession "github.com/koscakluka/ema-interview/core"
	"github.com/koscakluka/ema-interview/core/transcript"
	"github.com/muesli/reflow/wordwrap"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const (
	scopeName       = "github.com/koscakluka/ema-interview/internal/tui"
	interviewerName = "AI Interviewer"
	defaultWidth    = 72
	updatesBuffer   = 64
)

var logger = otelslog.NewLogger(scopeName)

// Session is the part of the call session controller the views drive.
type Session interface {
	Activate(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Close(ctx context.Context) error
	State() callsession.State
	IsSpeaking() bool
	LatestEntry() (transcript.Entry, bool)
}

// SessionFactory creates the session for one visit of the session view. The
// options route the session's notifications into the view and must be
// passed on to the controller.
type SessionFactory func(opts ...callsession.ControllerOption) Session

type view int

const (
	homeView view = iota
	sessionView
)

type (
	// sessionMsg carries a notification of the session opened as generation.
	sessionMsg struct {
		generation uint64
		msg        tea.Msg
	}
	stateMsg    callsession.State
	speakingMsg bool
	entryMsg    transcript.Entry
	errMsg      struct{ err error }
	exitMsg     struct{}

	callResultMsg struct {
		generation uint64
		err        error
	}
	closedMsg struct{ err error }
)

type Model struct {
	ctx        context.Context
	userName   string
	newSession SessionFactory

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	width   int

	view       view
	session    Session
	generation uint64
	state      callsession.State
	speaking   bool
	latest     string
	err        error

	updates chan sessionMsg
}

// New returns the root model. Notifications are dropped once ctx is done.
func New(ctx context.Context, userName string, newSession SessionFactory) Model {
	return Model{
		ctx:        ctx,
		userName:   userName,
		newSession: newSession,
		keys:       defaultKeyMap(),
		help:       help.New(),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Points)),
		width:      defaultWidth,
		state:      callsession.StateInactive,
		updates:    make(chan sessionMsg, updatesBuffer),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForUpdate())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionMsg:
		next := m.waitForUpdate()
		if msg.generation != m.generation || m.view != sessionView {
			return m, next
		}
		return m.handleSessionMsg(msg.msg, next)

	case callResultMsg:
		if msg.generation == m.generation && msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case closedMsg:
		if msg.err != nil {
			logger.WarnContext(m.ctx, "failed to close interview session", "error", msg.err)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleSessionMsg(msg tea.Msg, next tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = callsession.State(msg)
	case speakingMsg:
		m.speaking = bool(msg)
	case entryMsg:
		m.latest = msg.Content
	case errMsg:
		m.err = msg.err
	case exitMsg:
		return m.goHome(next)
	}
	return m, next
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Sequence(closeSession(m.ctx, m.session), tea.Quit)
	}

	switch m.view {
	case homeView:
		if key.Matches(msg, m.keys.Open) {
			return m.openSession()
		}

	case sessionView:
		switch {
		case key.Matches(msg, m.keys.Call):
			if m.state == callsession.StateActive || m.state == callsession.StateConnecting {
				return m, nil
			}
			m.err = nil
			return m, m.call(m.session.Start)
		case key.Matches(msg, m.keys.End):
			if m.state != callsession.StateActive {
				return m, nil
			}
			return m, m.call(m.session.Stop)
		case key.Matches(msg, m.keys.Back):
			return m.goHome(nil)
		}
	}

	return m, nil
}

func (m Model) openSession() (tea.Model, tea.Cmd) {
	m.generation++
	generation := m.generation
	session := m.newSession(m.sessionOptions(generation)...)
	if err := session.Activate(m.ctx); err != nil {
		m.err = fmt.Errorf("failed to open interview session: %w", err)
		return m, closeSession(m.ctx, session)
	}

	m.view = sessionView
	m.session = session
	m.state = session.State()
	m.speaking = session.IsSpeaking()
	m.latest = ""
	if entry, ok := session.LatestEntry(); ok {
		m.latest = entry.Content
	}
	m.err = nil
	return m, nil
}

// goHome leaves the session view. The session is closed in the background
// and its late notifications are ignored.
func (m Model) goHome(next tea.Cmd) (tea.Model, tea.Cmd) {
	session := m.session
	m.session = nil
	m.view = homeView
	m.generation++
	m.state = callsession.StateInactive
	m.speaking = false
	m.latest = ""
	return m, tea.Batch(next, closeSession(m.ctx, session))
}

func (m Model) sessionOptions(generation uint64) []callsession.ControllerOption {
	send := func(msg tea.Msg) {
		select {
		case m.updates <- sessionMsg{generation: generation, msg: msg}:
		case <-m.ctx.Done():
		}
	}

	return []callsession.ControllerOption{
		callsession.WithStateChangedCallback(func(state callsession.State) { send(stateMsg(state)) }),
		callsession.WithSpeakingStateChangedCallback(func(isSpeaking bool) { send(speakingMsg(isSpeaking)) }),
		callsession.WithTranscriptCallback(func(entry transcript.Entry) { send(entryMsg(entry)) }),
		callsession.WithErrorCallback(func(err error) { send(errMsg{err: err}) }),
		callsession.WithExitEffect(callsession.NewExitEffect(func() { send(exitMsg{}) })),
	}
}

func (m Model) waitForUpdate() tea.Cmd {
	updates, ctx := m.updates, m.ctx
	return func() tea.Msg {
		select {
		case msg := <-updates:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) call(action func(context.Context) error) tea.Cmd {
	ctx, generation := m.ctx, m.generation
	return func() tea.Msg {
		return callResultMsg{generation: generation, err: action(ctx)}
	}
}

func closeSession(ctx context.Context, session Session) tea.Cmd {
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		return closedMsg{err: session.Close(context.WithoutCancel(ctx))}
	}
}

func (m Model) View() string {
	var b strings.Builder
	switch m.view {
	case homeView:
		b.WriteString(m.homeView())
		b.WriteString("\n\n")
		b.WriteString(m.help.View(homeKeys{m.keys}))
	case sessionView:
		b.WriteString(m.sessionView())
		b.WriteString("\n\n")
		b.WriteString(m.help.View(sessionKeys{m.keys}))
	}
	return b.String() + "\n"
}

func (m Model) homeView() string {
	lines := []string{
		titleStyle.Render("Interview practice"),
		"",
		fmt.Sprintf("Signed in as %s", m.displayName()),
		mutedStyle.Render("Practice a job interview with an AI interviewer."),
	}
	if m.err != nil {
		lines = append(lines, "", errorStyle.Render(m.err.Error()))
	}
	return strings.Join(lines, "\n")
}

func (m Model) sessionView() string {
	interviewer := interviewerName
	interviewerCard := cardStyle
	if m.speaking {
		interviewer += "\n" + titleStyle.Render("speaking")
		interviewerCard = speakingCardStyle
	}
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		interviewerCard.Render(interviewer),
		" ",
		cardStyle.Render(m.displayName()),
	)

	sections := []string{cards}
	if m.latest != "" {
		sections = append(sections, transcriptStyle.Render(wordwrap.String(m.latest, max(m.width-4, 20))))
	}
	sections = append(sections, m.button())
	if m.err != nil {
		sections = append(sections, errorStyle.Render(wordwrap.String(m.err.Error(), max(m.width, 20))))
	}

	return strings.Join(sections, "\n\n")
}

func (m Model) button() string {
	switch m.state {
	case callsession.StateActive:
		return endButtonStyle.Render("End")
	case callsession.StateConnecting:
		return callButtonStyle.Render(m.spinner.View() + " . . .")
	default:
		return callButtonStyle.Render("Call")
	}
}

func (m Model) displayName() string {
	if m.userName == "" {
		return "Guest"
	}
	return m.userName
}
