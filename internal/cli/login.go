package cli

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/helpdesk-go/internal/auth"
	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/spf13/cobra"
)

var loginName string

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in with your university email",
	Long: `Sign in with your university email. The identity is kept in the
session profile until logout.

Examples:
  helpdesk login ada@uni.edu
  helpdesk login ada@uni.edu --name "Ada Lovelace"
  helpdesk --profile admin login staff@uni.edu`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the current chat",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVarP(&loginName, "name", "n", "", "display name")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a := appFrom(cmd)
	user, err := a.Auth.Login(cmd.Context(), args[0], loginName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	name := user.Name
	if name == "" {
		name = user.Email
	}
	fmt.Fprintln(out, defaultTheme.completedStyle().Render("✓ Signed in as "+name))
	if a.Config.Ephemeral {
		fmt.Fprintln(out, defaultTheme.hintStyle().Render("Ephemeral profile: the identity is not kept after this command."))
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	if err := appFrom(cmd).Logout(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s)\n", user.Name, user.Email, user.UserID)
	return nil
}

// requireUser returns the signed-in user or an error telling how to sign in.
func requireUser(cmd *cobra.Command) (*client.User, error) {
	user, err := appFrom(cmd).CurrentUser()
	if errors.Is(err, auth.ErrNotLoggedIn) {
		return nil, fmt.Errorf("%w: run 'helpdesk login <email>' first", err)
	}
	return user, err
}
