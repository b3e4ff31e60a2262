package cli

import (
	"context"
	"errors"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/dustin/go-humanize"
	"github.com/raphaelgruber/helpdesk-go/internal/client"
)

// uploadProgressMsg reports bytes handed to the connection so far.
type uploadProgressMsg struct {
	sent  int64
	total int64
}

// uploadDoneMsg carries the result of the upload.
type uploadDoneMsg struct {
	result *client.UploadResult
	err    error
}

// uploadFunc performs the upload and reports progress through the callback.
type uploadFunc func(ctx context.Context, progress func(sent, total int64)) (*client.UploadResult, error)

// uploadModel is the bubbletea model for a document upload.
type uploadModel struct {
	name     string
	sent     int64
	total    int64
	progress progress.Model
	theme    Theme
	cancel   context.CancelFunc

	result   *client.UploadResult
	done     bool
	quitting bool
	err      error
}

func newUploadModel(name string, cancel context.CancelFunc) uploadModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return uploadModel{
		name:     name,
		progress: prog,
		theme:    defaultTheme,
		cancel:   cancel,
	}
}

// Init returns the initial command.
func (m uploadModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m uploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case uploadProgressMsg:
		m.sent, m.total = msg.sent, msg.total
		return m, nil

	case uploadDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m uploadModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m uploadModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	var pct float64
	if m.total > 0 {
		pct = float64(m.sent) / float64(m.total)
	}

	status := m.theme.statusStyle().Render("[uploading]")
	if m.total > 0 && m.sent >= m.total {
		// The body is sent; the backend is chunking and embedding.
		status = m.theme.statusStyle().Render("[ingesting]")
	}
	counts := fmt.Sprintf("%s/%s", humanize.IBytes(uint64(m.sent)), humanize.IBytes(uint64(m.total)))
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")

	return fmt.Sprintf("%s %s\n  %s %s\n%s\n", status, m.name, m.progress.ViewAs(pct), counts, hint)
}

func (m uploadModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render(fmt.Sprintf("\nUpload of %s cancelled.\n", m.name))
	}
	if m.err != nil {
		// The error is reported by the command.
		return ""
	}
	return formatUploadResult(m.theme, m.result)
}

func formatUploadResult(t Theme, r *client.UploadResult) string {
	if r == nil {
		return t.completedStyle().Render("✓ Uploaded") + "\n"
	}
	out := t.completedStyle().Render("✓ Uploaded") + "\n\n"
	out += fmt.Sprintf("  Document: %s\n", r.Title)
	out += fmt.Sprintf("  ID:       %s\n", r.ID)
	out += fmt.Sprintf("  Chunks:   %d\n", r.Chunks)
	return out
}

// runUploadProgress runs upload in the background and shows its progress.
// Ctrl+C cancels the request; the result and error are then both nil.
func runUploadProgress(ctx context.Context, name string, upload uploadFunc) (*client.UploadResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newUploadModel(name, cancel))
	go func() {
		result, err := upload(ctx, func(sent, total int64) {
			p.Send(uploadProgressMsg{sent: sent, total: total})
		})
		p.Send(uploadDoneMsg{result: result, err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(uploadModel)
	if !ok {
		return nil, errors.New("progress UI returned an unexpected model")
	}
	if m.quitting {
		return nil, nil
	}
	return m.result, m.err
}
