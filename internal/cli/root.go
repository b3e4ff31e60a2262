// Package cli provides the command-line interface for the helpdesk client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/raphaelgruber/helpdesk-go/internal/app"
	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool
	apiURL  string
	profile string
)

// annotationTUI marks commands that take over the terminal; they log to
// the log file only.
const annotationTUI = "tui"

type appKey struct{}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "helpdesk",
	Short: "University helpdesk client",
	Long: `Helpdesk is a terminal client for the university helpdesk.

Students chat with the assistant and escalate questions to staff.
Admins review escalations, curate FAQs and manage the documents the
assistant answers from.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("api-url") {
			cfg.APIURL = strings.TrimRight(apiURL, "/")
		}
		if cmd.Flags().Changed("profile") {
			cfg.Profile = profile
		}

		logger, closeLog := setupLogger(cmd, cfg)
		a, err := app.New(cfg, logger)
		if err != nil {
			closeLog()
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = context.WithValue(ctx, appKey{}, a)
		cmd.SetContext(ctx)

		activeRun = &run{app: a, closeLog: closeLog}
		return nil
	},
}

// run is the state of one command execution, torn down by finalizeRun.
type run struct {
	app      *app.App
	closeLog func() error
}

var activeRun *run

// finalizeRun prints request stats and closes the log file of the run that
// just finished.
func finalizeRun() {
	r := activeRun
	if r == nil {
		return
	}
	activeRun = nil

	if verbose {
		printMetrics(os.Stderr, r.app.Metrics.Snapshot())
	}
	if err := r.closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
}

func setupLogger(cmd *cobra.Command, cfg config.Config) (*slog.Logger, func() error) {
	if cmd.Annotations[annotationTUI] == "true" {
		return config.SetupFileLogger(cfg.LogFile, cfg.LogLevel)
	}
	stderrLevel := slog.LevelWarn
	if verbose {
		stderrLevel = cfg.LogLevel
	}
	return config.SetupLogger(cfg.LogFile, cfg.LogLevel, stderrLevel)
}

// appFrom returns the App built by the root command's pre-run.
func appFrom(cmd *cobra.Command) *app.App {
	a, _ := cmd.Context().Value(appKey{}).(*app.App)
	return a
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
	}
	return err
}

func init() {
	cobra.OnFinalize(finalizeRun)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output and request timings")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend base URL (overrides HELPDESK_API_URL)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "session profile (overrides HELPDESK_PROFILE)")

	// Add subcommands
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(faqsCmd)
	rootCmd.AddCommand(escalationsCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(dashboardCmd)
}

// describeError renders an error for the terminal. Connectivity failures
// get the configuration hint instead of the raw transport error.
func describeError(err error) string {
	var connErr *client.ConnectivityError
	if errors.As(err, &connErr) {
		return "Error: " + connErr.Hint()
	}
	var valErr *client.ValidationError
	if errors.As(err, &valErr) {
		return "Invalid input: " + valErr.Message
	}
	var reqErr *client.RequestError
	if errors.As(err, &reqErr) {
		msg := fmt.Sprintf("Error: request failed (HTTP %d %s)", reqErr.Status, reqErr.StatusText)
		if detail := requestDetail(reqErr.Body); detail != "" {
			msg += ": " + detail
		}
		return msg
	}
	return "Error: " + err.Error()
}
