package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/helpdesk-go/internal/chat"
	"github.com/spf13/cobra"
)

var (
	chatSessionID string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the helpdesk assistant",
	Long: `Chat with the helpdesk assistant.

Without a subcommand, opens an interactive chat on the current session
(or a new one). The subcommands cover the same actions for scripts.

Examples:
  helpdesk chat
  helpdesk chat sessions
  helpdesk chat new
  helpdesk chat send "When does the semester start?"
  helpdesk chat history --session 5f0c...
  helpdesk chat escalate`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationTUI: "true"},
	RunE:        runChatInteractive,
}

var chatSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List your chat sessions",
	Args:  cobra.NoArgs,
	RunE:  runChatSessions,
}

var chatNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new chat session",
	Args:  cobra.NoArgs,
	RunE:  runChatNew,
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show a session's messages and make it current",
	Args:  cobra.NoArgs,
	RunE:  runChatHistory,
}

var chatSendCmd = &cobra.Command{
	Use:   "send <question>",
	Short: "Ask a question in the current session",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChatSend,
}

var chatEscalateCmd = &cobra.Command{
	Use:   "escalate",
	Short: "Hand the current session to helpdesk staff",
	Args:  cobra.NoArgs,
	RunE:  runChatEscalate,
}

var chatResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Leave the current chat without signing out",
	Args:  cobra.NoArgs,
	RunE:  runChatReset,
}

func init() {
	for _, c := range []*cobra.Command{chatHistoryCmd, chatSendCmd, chatEscalateCmd} {
		c.Flags().StringVarP(&chatSessionID, "session", "s", "", "session id (default: current session)")
	}
	chatCmd.AddCommand(chatSessionsCmd, chatNewCmd, chatHistoryCmd, chatSendCmd, chatEscalateCmd, chatResetCmd)
}

func runChatSessions(cmd *cobra.Command, args []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	a := appFrom(cmd)
	sessions, err := a.Chat.LoadSessions(cmd.Context(), user.UserID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No conversations yet. Start one with 'helpdesk chat new'.")
		return nil
	}

	current := a.Chat.CurrentSessionID()
	fmt.Fprintf(out, "  %-36s %-14s %s\n", "SESSION", "STARTED", "FIRST QUESTION")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))
	for _, s := range sessions {
		marker := " "
		if s.SessionID == current {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-36s %-14s %s\n", marker, s.SessionID, formatTime(s.CreatedAt), truncateLine(s.Label(), 40))
	}
	return nil
}

func runChatNew(cmd *cobra.Command, args []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	id, err := appFrom(cmd).Chat.CreateSession(cmd.Context(), user.UserID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Started session %s\n", id)
	return nil
}

func runChatHistory(cmd *cobra.Command, args []string) error {
	if _, err := requireUser(cmd); err != nil {
		return err
	}
	id, err := sessionArg(cmd)
	if err != nil {
		return err
	}

	a := appFrom(cmd)
	if _, err := a.Chat.LoadHistory(cmd.Context(), id); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	snap := a.Chat.Snapshot()
	if len(snap.Messages) == 0 {
		fmt.Fprintln(out, defaultTheme.hintStyle().Render("No messages yet."))
	}
	for _, m := range snap.Messages {
		fmt.Fprintln(out, formatMessage(defaultTheme, m))
	}
	if snap.Escalated {
		fmt.Fprintln(out, escalatedNotice())
	}
	return nil
}

func runChatSend(cmd *cobra.Command, args []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	a := appFrom(cmd)

	id := chatSessionID
	if id == "" {
		id = a.Chat.CurrentSessionID()
	}
	if id == "" {
		if id, err = a.Chat.CreateSession(cmd.Context(), user.UserID); err != nil {
			return err
		}
	} else {
		// Make the session current and take its escalation status from the
		// server; the stored flag may belong to another session or be stale.
		if _, err := a.Chat.LoadHistory(cmd.Context(), id); err != nil {
			return err
		}
	}

	answer, err := a.Chat.SendMessage(cmd.Context(), id, strings.Join(args, " "))
	if errors.Is(err, chat.ErrEscalated) {
		return fmt.Errorf("%w: wait for staff to reply, then run 'helpdesk chat history'", err)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	msgs := a.Chat.Messages()
	if n := len(msgs); n > 0 {
		fmt.Fprintln(out, formatMessage(defaultTheme, msgs[n-1]))
	}
	if answer.Escalated {
		fmt.Fprintln(out, escalatedNotice())
	}
	return nil
}

func runChatEscalate(cmd *cobra.Command, args []string) error {
	if _, err := requireUser(cmd); err != nil {
		return err
	}
	id, err := sessionArg(cmd)
	if err != nil {
		return err
	}
	result, err := appFrom(cmd).Chat.EscalateManually(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Escalated to staff (ticket #%d).\n", result.ID)
	return nil
}

func runChatReset(cmd *cobra.Command, args []string) error {
	appFrom(cmd).Chat.Reset()
	fmt.Fprintln(cmd.OutOrStdout(), "Left the current chat.")
	return nil
}

// sessionArg returns --session or the current session.
func sessionArg(cmd *cobra.Command) (string, error) {
	if chatSessionID != "" {
		return chatSessionID, nil
	}
	if id := appFrom(cmd).Chat.CurrentSessionID(); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: pass --session or run 'helpdesk chat new'", chat.ErrNoSession)
}

func escalatedNotice() string {
	return defaultTheme.statusStyle().Render("This conversation is with helpdesk staff. You will see their reply here once they answer.")
}
