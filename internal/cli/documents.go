package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/document"
	"github.com/spf13/cobra"
)

var (
	docForce bool
	docQuiet bool
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage the documents the assistant answers from (admin)",
	Long: `List, upload and delete knowledge-base documents.

Uploads accept PDF, DOC, DOCX and TXT files up to the configured size
limit (HELPDESK_UPLOAD_MAX_BYTES, 10 MiB by default). Files are checked
before anything is sent.

Examples:
  helpdesk documents
  helpdesk documents upload ./handbook.pdf
  helpdesk documents delete 3f2a...`,
	Args: cobra.NoArgs,
	RunE: runDocumentList,
}

var docUploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload documents for ingestion",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocumentUpload,
}

var docDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	docUploadCmd.Flags().BoolVarP(&docQuiet, "quiet", "q", false, "no progress bar")
	docDeleteCmd.Flags().BoolVarP(&docForce, "force", "f", false, "skip confirmation")

	documentsCmd.AddCommand(docUploadCmd, docDeleteCmd)
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	lib := appFrom(cmd).Documents
	if err := lib.Reload(cmd.Context()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	docs := lib.List()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents uploaded yet.")
		return nil
	}

	fmt.Fprintf(out, "%-36s %-6s %-10s %-14s %s\n", "ID", "TYPE", "SIZE", "UPLOADED", "TITLE")
	fmt.Fprintln(out, strings.Repeat("-", 100))
	for _, d := range docs {
		fmt.Fprintf(out, "%-36s %-6s %-10s %-14s %s\n",
			d.ID, d.SourceType, document.FormatSize(d.FileSize), formatTime(d.CreatedAt), truncateLine(d.Title, 36))
	}
	fmt.Fprintf(out, "\n%d documents\n", len(docs))
	return nil
}

// runDocumentUpload uploads each file in turn and stops at the first failure.
func runDocumentUpload(cmd *cobra.Command, args []string) error {
	lib := appFrom(cmd).Documents
	out := cmd.OutOrStdout()

	for _, path := range args {
		name := filepath.Base(path)
		upload := func(ctx context.Context, progress func(sent, total int64)) (*client.UploadResult, error) {
			return lib.Upload(ctx, path, progress)
		}

		if docQuiet || !isTerminal() {
			fmt.Fprintf(out, "Uploading %s...\n", name)
			result, err := upload(cmd.Context(), nil)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			fmt.Fprint(out, formatUploadResult(defaultTheme, result))
			continue
		}

		result, err := runUploadProgress(cmd.Context(), name, upload)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if result == nil {
			// Cancelled; skip the remaining files too.
			return nil
		}
	}
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	lib := appFrom(cmd).Documents
	out := cmd.OutOrStdout()

	if !docForce {
		title := id
		if err := lib.Reload(cmd.Context()); err == nil {
			for _, d := range lib.List() {
				if d.ID == id {
					title = fmt.Sprintf("%s (%s)", d.Title, id)
					break
				}
			}
		}
		fmt.Fprintf(out, "About to delete document %s and all of its chunks.\n\n", title)
		ok, err := confirm(out, cmd.InOrStdin(), "Continue?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := lib.Delete(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted document %s\n", id)
	return nil
}
