package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/escalation"
	"github.com/spf13/cobra"
)

var (
	escStatus  string
	escAnswer  string
	escPromote bool
)

var escalationsCmd = &cobra.Command{
	Use:     "escalations",
	Aliases: []string{"esc"},
	Short:   "Review escalated questions (admin)",
	Long: `Review questions students escalated to staff.

Replying resolves an escalation and posts the answer into the student's
chat. A resolved escalation with an answer can be promoted into a new FAQ.

Examples:
  helpdesk escalations
  helpdesk escalations --status resolved
  helpdesk escalations show 7
  helpdesk escalations reply 7 "Yes, use form D-3."
  helpdesk escalations reply 7 -a "Yes, use form D-3." --promote
  helpdesk escalations promote 7`,
	Args: cobra.NoArgs,
	RunE: runEscalationList,
}

var escShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one escalation",
	Args:  cobra.ExactArgs(1),
	RunE:  runEscalationShow,
}

var escReplyCmd = &cobra.Command{
	Use:   "reply <id> [answer]",
	Short: "Answer an escalation and resolve it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEscalationReply,
}

var escPromoteCmd = &cobra.Command{
	Use:   "promote <id>",
	Short: "Turn a resolved escalation into an FAQ",
	Args:  cobra.ExactArgs(1),
	RunE:  runEscalationPromote,
}

func init() {
	escalationsCmd.Flags().StringVar(&escStatus, "status", "open", "open, resolved, promoted or all")
	escReplyCmd.Flags().StringVarP(&escAnswer, "answer", "a", "", "answer text (instead of the argument)")
	escReplyCmd.Flags().BoolVar(&escPromote, "promote", false, "promote to an FAQ after replying")

	escalationsCmd.AddCommand(escShowCmd, escReplyCmd, escPromoteCmd)
}

func runEscalationList(cmd *cobra.Command, args []string) error {
	tab, err := escalation.ParseTab(escStatus)
	if err != nil {
		return err
	}

	w := appFrom(cmd).Escalations
	if err := w.Reload(cmd.Context()); err != nil {
		return err
	}
	w.SetTab(tab)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTabs(w.Counts(), tab))
	fmt.Fprintln(out)

	visible := w.Visible()
	if len(visible) == 0 {
		fmt.Fprintf(out, "No %s escalations.\n", tab)
		return nil
	}

	fmt.Fprintf(out, "%-6s %-10s %-6s %-14s %s\n", "ID", "STATUS", "CONF", "CREATED", "QUESTION")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, e := range visible {
		fmt.Fprintf(out, "%-6d %-10s %-6s %-14s %s\n",
			e.ID, escalation.Status(e.Status), formatConfidence(e.Confidence), formatTime(e.CreatedAt), truncateLine(e.Question, 48))
	}
	return nil
}

// renderTabs draws the tab strip. Counts cover the whole queue.
func renderTabs(c escalation.Counts, active escalation.Tab) string {
	parts := make([]string, 0, len(escalation.Tabs))
	for _, tab := range escalation.Tabs {
		label := fmt.Sprintf("%s (%d)", tab, c.Of(tab))
		if tab == active {
			label = defaultTheme.statusStyle().Bold(true).Underline(true).Render(label)
		} else {
			label = defaultTheme.hintStyle().Render(label)
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "   ")
}

func runEscalationShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	e, err := appFrom(cmd).Escalations.Refresh(cmd.Context(), id)
	if err != nil {
		return err
	}
	printEscalation(cmd, e)
	return nil
}

func runEscalationReply(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	answer := escAnswer
	if len(args) > 1 {
		answer = strings.Join(args[1:], " ")
	}

	w := appFrom(cmd).Escalations
	if err := w.Reload(cmd.Context()); err != nil {
		return err
	}
	if _, err := w.Reply(cmd.Context(), id, answer); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, defaultTheme.completedStyle().Render(fmt.Sprintf("✓ Escalation #%d resolved; the answer was posted to the student's chat.", id)))

	if !escPromote {
		return nil
	}
	faqID, err := w.Promote(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, defaultTheme.completedStyle().Render(fmt.Sprintf("✓ Promoted to FAQ #%d", faqID)))
	return nil
}

func runEscalationPromote(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	w := appFrom(cmd).Escalations
	if err := w.Reload(cmd.Context()); err != nil {
		return err
	}
	faqID, err := w.Promote(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.completedStyle().Render(fmt.Sprintf("✓ Escalation #%d promoted to FAQ #%d", id, faqID)))
	return nil
}

func printEscalation(cmd *cobra.Command, e client.Escalation) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Escalation #%d [%s]\n", e.ID, defaultTheme.statusStyle().Render(escalation.Status(e.Status)))
	fmt.Fprintf(out, "Created: %s\n", formatTime(e.CreatedAt))
	if e.SessionID != "" {
		fmt.Fprintf(out, "Session: %s\n", e.SessionID)
	}
	fmt.Fprintf(out, "\nQuestion:\n  %s\n", e.Question)
	if e.BotAnswer != nil {
		fmt.Fprintf(out, "\nBot answer (confidence %s):\n  %s\n", formatConfidence(e.Confidence), *e.BotAnswer)
	}
	if e.AdminAnswer != nil {
		fmt.Fprintf(out, "\nStaff answer (%s):\n  %s\n", formatTime(e.ResolvedAt), *e.AdminAnswer)
	}
	if e.UserFeedback != nil && *e.UserFeedback != "" {
		fmt.Fprintf(out, "\nStudent feedback:\n  %s\n", *e.UserFeedback)
	}
	if err := escalation.CanPromote(e); err == nil {
		fmt.Fprintln(out, defaultTheme.hintStyle().Render(fmt.Sprintf("\nReady to promote: helpdesk escalations promote %d", e.ID)))
	}
}

func formatConfidence(c *float64) string {
	if c == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *c*100)
}
