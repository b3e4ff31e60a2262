package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/faq"
	"github.com/spf13/cobra"
)

var (
	faqSearch    string
	faqQuestion  string
	faqAnswer    string
	faqVariants  []string
	faqKeepVars  bool
	faqForce     bool
	faqFormatRaw string
)

var faqsCmd = &cobra.Command{
	Use:   "faqs",
	Short: "Manage the FAQ knowledge base (admin)",
	Long: `List, create, edit and delete FAQs.

Every FAQ has a canonical question, an answer and any number of
alternate phrasings (variants) that the assistant matches against.

Examples:
  helpdesk faqs
  helpdesk faqs --search library
  helpdesk faqs show 12
  helpdesk faqs add -q "Library hours?" -a "8 to 22." --variant "When is the library open?"
  helpdesk faqs edit 12 -a "8 to 23."
  helpdesk faqs add-question 12 "Library opening times"
  helpdesk faqs bulk faqs.yaml
  helpdesk faqs delete 12`,
	Args: cobra.NoArgs,
	RunE: runFAQList,
}

var faqShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one FAQ with its variants",
	Args:  cobra.ExactArgs(1),
	RunE:  runFAQShow,
}

var faqAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an FAQ",
	Args:  cobra.NoArgs,
	RunE:  runFAQAdd,
}

var faqEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit an FAQ",
	Long: `Edit an FAQ. Unset flags keep their current value. Passing any
--variant replaces all variants unless --keep-variants is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runFAQEdit,
}

var faqDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an FAQ and its variants",
	Args:  cobra.ExactArgs(1),
	RunE:  runFAQDelete,
}

var faqAddQuestionCmd = &cobra.Command{
	Use:   "add-question <id> <question>",
	Short: "Add one alternate phrasing to an FAQ",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runFAQAddQuestion,
}

var faqBulkCmd = &cobra.Command{
	Use:   "bulk <file>",
	Short: "Upload many FAQs from a JSON, JSONC or YAML file",
	Long: `Upload many FAQs at once. The file holds a list of objects with
canonical_question, answer_en and optional questions. The format follows
the file extension unless --format is given. Use "-" to read stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runFAQBulk,
}

func init() {
	faqsCmd.Flags().StringVar(&faqSearch, "search", "", "filter by question or answer text")

	for _, c := range []*cobra.Command{faqAddCmd, faqEditCmd} {
		c.Flags().StringVarP(&faqQuestion, "question", "q", "", "canonical question")
		c.Flags().StringVarP(&faqAnswer, "answer", "a", "", "answer")
		c.Flags().StringArrayVar(&faqVariants, "variant", nil, "alternate phrasing (repeatable)")
	}
	faqEditCmd.Flags().BoolVar(&faqKeepVars, "keep-variants", false, "add --variant values to the existing variants")
	faqDeleteCmd.Flags().BoolVarP(&faqForce, "force", "f", false, "skip confirmation")
	faqBulkCmd.Flags().StringVar(&faqFormatRaw, "format", "", "json, jsonc or yaml (default: from extension)")

	faqsCmd.AddCommand(faqShowCmd, faqAddCmd, faqEditCmd, faqDeleteCmd, faqAddQuestionCmd, faqBulkCmd)
}

func runFAQList(cmd *cobra.Command, args []string) error {
	editor := appFrom(cmd).FAQs
	if err := editor.Reload(cmd.Context()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	faqs := editor.Search(faqSearch)
	if len(faqs) == 0 {
		fmt.Fprintln(out, "No FAQs found.")
		return nil
	}

	fmt.Fprintf(out, "FAQs (%d):\n\n", len(faqs))
	for _, f := range faqs {
		fmt.Fprintf(out, "#%-5d %s\n", f.ID, f.CanonicalQuestion)
		fmt.Fprintf(out, "       %s\n", defaultTheme.hintStyle().Render(truncateLine(f.AnswerEN, 70)))
		if n := len(f.Variants()); n > 0 && verbose {
			fmt.Fprintf(out, "       %d variants: %s\n", n, strings.Join(f.Variants(), " | "))
		}
	}
	return nil
}

func runFAQShow(cmd *cobra.Command, args []string) error {
	f, err := loadFAQ(cmd, args[0])
	if err != nil {
		return err
	}
	printFAQ(cmd, f)
	return nil
}

func runFAQAdd(cmd *cobra.Command, args []string) error {
	created, err := appFrom(cmd).FAQs.Create(cmd.Context(), faq.Form{
		CanonicalQuestion: faqQuestion,
		Answer:            faqAnswer,
		Variants:          faqVariants,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.completedStyle().Render(fmt.Sprintf("✓ Created FAQ #%d", created.ID)))
	printFAQ(cmd, *created)
	return nil
}

func runFAQEdit(cmd *cobra.Command, args []string) error {
	current, err := loadFAQ(cmd, args[0])
	if err != nil {
		return err
	}

	form := faq.FormFrom(current)
	if cmd.Flags().Changed("question") {
		form.CanonicalQuestion = faqQuestion
	}
	if cmd.Flags().Changed("answer") {
		form.Answer = faqAnswer
	}
	if cmd.Flags().Changed("variant") {
		if faqKeepVars {
			form.Variants = append(form.Variants, faqVariants...)
		} else {
			form.Variants = faqVariants
		}
	}

	updated, err := appFrom(cmd).FAQs.Update(cmd.Context(), current.ID, form)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.completedStyle().Render(fmt.Sprintf("✓ Updated FAQ #%d", updated.ID)))
	printFAQ(cmd, *updated)
	return nil
}

func runFAQDelete(cmd *cobra.Command, args []string) error {
	f, err := loadFAQ(cmd, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !faqForce {
		fmt.Fprintf(out, "About to delete FAQ #%d: %s (%d questions)\n\n", f.ID, f.CanonicalQuestion, len(f.Questions))
		ok, err := confirm(out, cmd.InOrStdin(), "Continue?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := appFrom(cmd).FAQs.Delete(cmd.Context(), f.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted FAQ #%d\n", f.ID)
	return nil
}

func runFAQAddQuestion(cmd *cobra.Command, args []string) error {
	f, err := loadFAQ(cmd, args[0])
	if err != nil {
		return err
	}
	added, err := appFrom(cmd).FAQs.AddQuestion(cmd.Context(), f.ID, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %q to FAQ #%d\n", added.Question, f.ID)
	return nil
}

func runFAQBulk(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read bulk file: %w", err)
	}

	format := faq.DetectFormat(args[0])
	if faqFormatRaw != "" {
		format = faq.Format(strings.ToLower(faqFormatRaw))
	}
	items, err := faq.ParseBulk(data, format)
	if err != nil {
		return err
	}

	result, err := appFrom(cmd).FAQs.BulkUpload(cmd.Context(), items)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, defaultTheme.completedStyle().Render("✓ Bulk upload finished"))
	fmt.Fprintf(out, "  Inserted: %d\n", result.Inserted)
	fmt.Fprintf(out, "  Skipped:  %d\n", result.Skipped)
	if len(result.Errors) > 0 {
		fmt.Fprintln(out, defaultTheme.errorStyle().Render(fmt.Sprintf("\nErrors (%d):", len(result.Errors))))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  • %s\n", e)
		}
	}
	return nil
}

// loadFAQ reloads the FAQ list and returns the FAQ with the given id.
func loadFAQ(cmd *cobra.Command, raw string) (client.FAQ, error) {
	id, err := parseID(raw)
	if err != nil {
		return client.FAQ{}, err
	}
	editor := appFrom(cmd).FAQs
	if err := editor.Reload(cmd.Context()); err != nil {
		return client.FAQ{}, err
	}
	return editor.Get(id)
}

func printFAQ(cmd *cobra.Command, f client.FAQ) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n#%d %s\n\n", f.ID, defaultTheme.statusStyle().Bold(true).Render(f.CanonicalQuestion))
	fmt.Fprintf(out, "%s\n", f.AnswerEN)
	if variants := f.Variants(); len(variants) > 0 {
		fmt.Fprintf(out, "\nVariants (%d):\n", len(variants))
		for _, v := range variants {
			fmt.Fprintf(out, "  • %s\n", v)
		}
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, client.NewValidationError("id", fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}
