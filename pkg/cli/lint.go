package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"jekyll-cms/pkg/config"
	"jekyll-cms/pkg/models"
	"jekyll-cms/pkg/services"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var errLintFailed = errors.New("lint found errors")

func newLintCmd(opts *rootOptions) *cobra.Command {
	var (
		drafts bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "lint [files...]",
		Short: "Check posts for front matter, filename, date and link problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (expected text or json)", format)
			}
			files := make([]string, 0, len(args))
			for _, a := range args {
				files = append(files, repoRelative(a))
			}

			report, err := services.Lint(cmd.Context(), services.LintOptions{Drafts: drafts, Files: files})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printIssues(out, report.Issues)
				fmt.Fprintf(out, "%d files, %d errors, %d warnings\n", report.Files, report.Errors, report.Warnings)
			}
			if !report.OK() {
				return errLintFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&drafts, "drafts", false, "also lint the drafts directory")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

// repoRelative turns a path given on the command line into a slash-separated path
// relative to the repository.
func repoRelative(p string) string {
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(config.RepoPath, p); err == nil {
			p = rel
		}
	} else if root := filepath.Clean(config.RepoPath); strings.HasPrefix(filepath.Clean(p), root+string(filepath.Separator)) {
		p = strings.TrimPrefix(filepath.Clean(p), root+string(filepath.Separator))
	}
	return filepath.ToSlash(filepath.Clean(p))
}

func printIssues(w io.Writer, issues []models.LintIssue) {
	for _, issue := range issues {
		fmt.Fprintln(w, formatIssue(issue))
	}
}

func formatIssue(issue models.LintIssue) string {
	loc := issue.Path
	if issue.Line > 0 {
		loc += fmt.Sprintf(":%d", issue.Line)
		if issue.Column > 0 {
			loc += fmt.Sprintf(":%d", issue.Column)
		}
	}
	return fmt.Sprintf("%s: %s %s %s", loc, issue.Severity, issue.Rule, issue.Message)
}
