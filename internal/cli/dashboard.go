package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var dashboardJSON bool

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the admin overview",
	Long: `Show how many FAQs, open escalations and documents the helpdesk has.

If any of the three lists cannot be loaded, all counts are reported as
zero together with the error.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().BoolVar(&dashboardJSON, "json", false, "print the counts as JSON")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	stats, err := appFrom(cmd).Dashboard(cmd.Context())
	out := cmd.OutOrStdout()

	if dashboardJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(stats); encErr != nil {
			return fmt.Errorf("encode dashboard: %w", encErr)
		}
		return err
	}

	fmt.Fprintln(out, defaultTheme.statusStyle().Bold(true).Render("Helpdesk Overview"))
	fmt.Fprintln(out, "═══════════════════════════════════════════════")
	fmt.Fprintf(out, "FAQs:              %d\n", stats.FAQs)
	fmt.Fprintf(out, "Open escalations:  %s\n", highlightCount(stats.OpenEscalations))
	fmt.Fprintf(out, "Documents:         %d\n", stats.Documents)
	if err != nil {
		fmt.Fprintln(out)
		return fmt.Errorf("load dashboard: %w", err)
	}
	if stats.OpenEscalations > 0 {
		fmt.Fprintln(out, defaultTheme.hintStyle().Render("\nReview them with 'helpdesk escalations'."))
	}
	return nil
}

func highlightCount(n int) string {
	s := fmt.Sprint(n)
	if n == 0 {
		return s
	}
	return defaultTheme.errorStyle().Render(s)
}
