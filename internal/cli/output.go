package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/metrics"
	"golang.org/x/term"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	User       lipgloss.Color
	Assistant  lipgloss.Color
	Admin      lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	User:       lipgloss.Color("#AF87FF"), // violet
	Assistant:  lipgloss.Color("#5FAFD7"),
	Admin:      lipgloss.Color("#FFAF00"), // amber
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) roleStyle(role client.Role) lipgloss.Style {
	switch role {
	case client.RoleUser:
		return lipgloss.NewStyle().Foreground(t.User).Bold(true)
	case client.RoleAdmin:
		return lipgloss.NewStyle().Foreground(t.Admin).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(t.Assistant).Bold(true)
	}
}

func roleLabel(role client.Role) string {
	switch role {
	case client.RoleUser:
		return "You"
	case client.RoleAdmin:
		return "Staff"
	default:
		return "Assistant"
	}
}

// formatMessage renders one chat message with its citation and confidence.
func formatMessage(t Theme, m client.Message) string {
	var b strings.Builder
	b.WriteString(t.roleStyle(m.Role).Render(roleLabel(m.Role)))
	if !m.CreatedAt.IsZero() {
		b.WriteString(t.hintStyle().Render(" · " + formatTime(m.CreatedAt)))
	}
	b.WriteString("\n")
	b.WriteString(m.Content)
	b.WriteString("\n")

	var meta []string
	if m.Source != nil && *m.Source != "" {
		meta = append(meta, "source: "+*m.Source)
	}
	if m.Confidence != nil && m.Role == client.RoleAssistant {
		meta = append(meta, fmt.Sprintf("confidence: %.0f%%", *m.Confidence*100))
	}
	if m.Escalated != nil && *m.Escalated {
		meta = append(meta, "escalated to staff")
	}
	if len(meta) > 0 {
		b.WriteString(t.hintStyle().Render(strings.Join(meta, " · ")))
		b.WriteString("\n")
	}
	return b.String()
}

// formatTime renders a timestamp relative to now.
func formatTime(ts client.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return humanize.Time(ts.Time)
}

// truncateLine shortens s to one line of at most n runes.
func truncateLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// requestDetail extracts the backend's {"detail": ...} message.
func requestDetail(body string) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil || payload.Detail == nil {
		return ""
	}
	if s, ok := payload.Detail.(string); ok {
		return s
	}
	b, _ := json.Marshal(payload.Detail)
	return string(b)
}

// printMetrics displays request statistics for this run.
func printMetrics(w io.Writer, snap metrics.Snapshot) {
	if len(snap.Operations) == 0 {
		return
	}
	fmt.Fprintf(w, "\nRequest Statistics (%.1fs)\n", snap.UptimeSeconds)
	fmt.Fprintf(w, "═══════════════════════════════════════════════\n")
	for _, op := range snap.Operations {
		fmt.Fprintf(w, "%s:\n", op.Operation)
		fmt.Fprintf(w, "  Calls: %d, Failed: %d, Offline: %d, Total: %dms\n",
			op.Count, op.Failures, op.Offline, op.TotalTimeMs)
		fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
			op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}
}

// confirm asks a yes/no question on stdin. Anything but y/yes is no.
func confirm(w io.Writer, r io.Reader, prompt string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	response, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read input: %w", err)
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// isTerminal reports whether stdout is an interactive terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}
