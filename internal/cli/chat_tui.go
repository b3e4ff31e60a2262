package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/helpdesk-go/internal/app"
	"github.com/raphaelgruber/helpdesk-go/internal/chat"
	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/spf13/cobra"
)

const (
	requestTimeout = 60 * time.Second
	// refreshInterval is how often an escalated chat polls for a staff reply.
	refreshInterval = 10 * time.Second
	// visibleMessages caps how much of the log is drawn.
	visibleMessages = 12
)

// refreshTickMsg triggers a history reload while escalated.
type refreshTickMsg time.Time

// historyMsg carries the result of a history load.
type historyMsg struct {
	err error
}

// sentMsg carries the result of a send.
type sentMsg struct {
	answer *client.Answer
	err    error
}

// escalatedMsg carries the result of a manual escalation.
type escalatedMsg struct {
	id  int64
	err error
}

// sessionMsg carries the result of creating a session.
type sessionMsg struct {
	id  string
	err error
}

// chatModel is the bubbletea model for the interactive chat.
type chatModel struct {
	app     *app.App
	user    *client.User
	input   textinput.Model
	spinner spinner.Model
	theme   Theme

	snap     chat.Snapshot
	busy     bool
	notice   string
	err      error
	quitting bool
}

func newChatModel(a *app.App, user *client.User) chatModel {
	input := textinput.New()
	input.Placeholder = "Ask a question…"
	input.CharLimit = 2000
	input.SetWidth(72)
	input.Focus()

	return chatModel{
		app:     a,
		user:    user,
		input:   input,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		theme:   defaultTheme,
		snap:    a.Chat.Snapshot(),
	}
}

// Init loads the current session, or starts one.
func (m chatModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.snap.CurrentSessionID == "" {
		cmds = append(cmds, m.newSession())
	} else {
		cmds = append(cmds, m.loadHistory(m.snap.CurrentSessionID))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "ctrl+e":
			if m.snap.Escalated || m.snap.CurrentSessionID == "" {
				return m, nil
			}
			m.busy = true
			return m, m.escalate(m.snap.CurrentSessionID)
		case "ctrl+n":
			m.busy = true
			return m, m.newSession()
		case "ctrl+r":
			if m.snap.CurrentSessionID == "" {
				return m, nil
			}
			m.busy = true
			return m, m.loadHistory(m.snap.CurrentSessionID)
		}

	case sessionMsg:
		m.busy = false
		m.err = msg.err
		m.snap = m.app.Chat.Snapshot()
		if msg.err == nil {
			m.notice = "New conversation started."
		}
		return m, nil

	case historyMsg:
		m.busy = false
		m.snap = m.app.Chat.Snapshot()
		if errors.Is(msg.err, chat.ErrStaleResponse) {
			return m, nil
		}
		m.err = msg.err
		return m, m.scheduleRefresh()

	case sentMsg:
		m.busy = false
		m.snap = m.app.Chat.Snapshot()
		m.err = msg.err
		if msg.err == nil && msg.answer.Escalated {
			m.notice = "Your question was passed to helpdesk staff."
			return m, m.scheduleRefresh()
		}
		return m, nil

	case escalatedMsg:
		m.busy = false
		m.snap = m.app.Chat.Snapshot()
		m.err = msg.err
		if msg.err == nil {
			m.notice = fmt.Sprintf("Escalated to staff (ticket #%d).", msg.id)
			return m, m.scheduleRefresh()
		}
		return m, nil

	case refreshTickMsg:
		if !m.snap.Escalated || m.busy || m.snap.CurrentSessionID == "" {
			return m, nil
		}
		return m, m.loadHistory(m.snap.CurrentSessionID)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the typed question. The escalation gate is checked again by
// the chat state itself.
func (m chatModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.busy {
		return m, nil
	}
	if m.snap.Escalated {
		m.err = chat.ErrEscalated
		return m, nil
	}
	id := m.snap.CurrentSessionID
	m.input.Reset()
	m.busy = true
	m.notice = ""
	m.err = nil

	send := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		answer, err := m.app.Chat.SendMessage(ctx, id, text)
		return sentMsg{answer: answer, err: err}
	}
	// The optimistic user message shows on the next spinner frame.
	return m, send
}

// View renders the chat.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m chatModel) renderContent() string {
	if m.quitting {
		return m.theme.hintStyle().Render("Bye. Your conversation is saved.") + "\n"
	}

	var b strings.Builder
	title := "Helpdesk"
	if m.user != nil && m.user.Name != "" {
		title += " · " + m.user.Name
	}
	b.WriteString(m.theme.statusStyle().Bold(true).Render(title))
	if label := m.sessionLabel(); label != "" {
		b.WriteString(m.theme.hintStyle().Render("  " + truncateLine(label, 50)))
	}
	b.WriteString("\n\n")

	msgs := m.app.Chat.Messages()
	if len(msgs) > visibleMessages {
		b.WriteString(m.theme.hintStyle().Render(fmt.Sprintf("… %d earlier messages", len(msgs)-visibleMessages)))
		b.WriteString("\n\n")
		msgs = msgs[len(msgs)-visibleMessages:]
	}
	if len(msgs) == 0 {
		b.WriteString(m.theme.hintStyle().Render("Ask anything about studying at the university."))
		b.WriteString("\n\n")
	}
	for _, msg := range msgs {
		b.WriteString(formatMessage(m.theme, msg))
		b.WriteString("\n")
	}

	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " " + m.theme.hintStyle().Render("Working…") + "\n")
	case m.err != nil:
		b.WriteString(m.theme.errorStyle().Render("✗ "+describeError(m.err)) + "\n")
	case m.notice != "":
		b.WriteString(m.theme.completedStyle().Render(m.notice) + "\n")
	}

	if m.snap.Escalated {
		b.WriteString(escalatedNotice() + "\n")
		b.WriteString(m.theme.hintStyle().Render("ctrl+r refresh · ctrl+n new conversation · esc quit") + "\n")
		return b.String()
	}

	b.WriteString(m.input.View() + "\n")
	b.WriteString(m.theme.hintStyle().Render("enter send · ctrl+e talk to staff · ctrl+n new conversation · ctrl+r refresh · esc quit") + "\n")
	return b.String()
}

func (m chatModel) sessionLabel() string {
	for _, s := range m.snap.Sessions {
		if s.SessionID == m.snap.CurrentSessionID {
			return s.Label()
		}
	}
	return ""
}

func (m chatModel) loadHistory(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := m.app.Chat.LoadHistory(ctx, id)
		return historyMsg{err: err}
	}
}

func (m chatModel) newSession() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		id, err := m.app.Chat.CreateSession(ctx, m.user.UserID)
		return sessionMsg{id: id, err: err}
	}
}

func (m chatModel) escalate(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		result, err := m.app.Chat.EscalateManually(ctx, id)
		if err != nil {
			return escalatedMsg{err: err}
		}
		return escalatedMsg{id: result.ID}
	}
}

// scheduleRefresh polls for a staff reply while the chat is escalated.
func (m chatModel) scheduleRefresh() tea.Cmd {
	if !m.app.Chat.Escalated() {
		return nil
	}
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func runChatInteractive(cmd *cobra.Command, args []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	if !isTerminal() {
		return errors.New("interactive chat needs a terminal; use 'helpdesk chat send' in scripts")
	}

	a := appFrom(cmd)
	if _, err := a.Chat.LoadSessions(cmd.Context(), user.UserID); err != nil {
		a.Logger.Warn("failed to load sessions", "error", err)
	}

	p := tea.NewProgram(newChatModel(a, user))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
