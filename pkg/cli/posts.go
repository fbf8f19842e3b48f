package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"jekyll-cms/pkg/config"
	"jekyll-cms/pkg/models"
	"jekyll-cms/pkg/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var filter services.PostFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			posts, err := services.LoadPosts(cmd.Context(), services.LoadOptions{IncludeDrafts: filter.Drafts, HeadOnly: true})
			if err != nil {
				return err
			}
			posts = services.FilterPosts(posts, filter)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, p := range posts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", formatDate(p.SortTime()), postState(p), p.Path, p.Title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.Tag, "tag", "", "only posts with this tag")
	cmd.Flags().StringVar(&filter.Category, "category", "", "only posts in this category")
	cmd.Flags().BoolVar(&filter.Drafts, "drafts", false, "include drafts")
	return cmd
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "----------"
	}
	return t.Format("2006-01-02")
}

func postState(p models.Post) string {
	switch {
	case p.ParseError != "":
		return "invalid"
	case p.Draft:
		return "draft"
	default:
		return "live"
	}
}

func newNewCmd(opts *rootOptions) *cobra.Command {
	var (
		req  services.NewPostRequest
		date string
	)
	cmd := &cobra.Command{
		Use:   "new TITLE",
		Short: "Scaffold a new post",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = strings.Join(args, " ")
			if date != "" {
				site, err := services.LoadSiteConfig(config.RepoPath)
				if err != nil {
					return err
				}
				t, ok := services.ParseDate(date, services.SiteLocation(site))
				if !ok {
					return fmt.Errorf("invalid --date %q", date)
				}
				req.Date = t
			}
			rel, err := services.CreatePost(req)
			if err != nil {
				return err
			}
			opts.logger.Debug("post created", zap.String("path", rel), zap.Bool("draft", req.Draft))
			fmt.Fprintln(cmd.OutOrStdout(), rel)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&req.Tags, "tags", nil, "comma separated tags")
	cmd.Flags().StringSliceVar(&req.Categories, "categories", nil, "comma separated categories")
	cmd.Flags().StringVar(&req.Layout, "layout", "", "layout name (default from site defaults, else post)")
	cmd.Flags().StringVar(&req.Author, "author", "", "author name")
	cmd.Flags().StringVar(&date, "date", "", "post date, e.g. 2024-05-01 (default today)")
	cmd.Flags().BoolVar(&req.Draft, "draft", false, "write the post with published: false")
	return cmd
}

func newBuildCmd(opts *rootOptions) *cobra.Command {
	var drafts bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the site generator",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := services.BuildSite(cmd.Context(), drafts)
			fmt.Fprint(cmd.OutOrStdout(), log)
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&drafts, "drafts", false, "render drafts too")
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "show PATH",
		Short: "Render a post in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := services.ReadPost(repoRelative(args[0]))
			if err != nil {
				return err
			}
			if post.ParseError != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", post.ParseError)
			}
			body := post.Body
			if post.ParseError != "" {
				body = post.Content
			}
			rendered, err := services.RenderTerminal(body, width)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%s  %s\n", post.Title, formatDate(post.SortTime()), post.Permalink)
			if len(post.Meta.Tags) > 0 {
				fmt.Fprintf(out, "tags: %s\n", strings.Join(post.Meta.Tags, ", "))
			}
			fmt.Fprint(out, rendered)
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 80, "wrap width")
	return cmd
}

func newTagsCmd(opts *rootOptions) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Count posts per tag or category",
		RunE: func(cmd *cobra.Command, args []string) error {
			term, err := termKind(kind)
			if err != nil {
				return err
			}

			var counts []models.TaxonomyCount
			if config.IndexPath != "" {
				idx, err := services.OpenIndex(config.IndexPath)
				if err != nil {
					return err
				}
				defer idx.Close()
				if err := rebuildIndex(cmd.Context(), idx); err != nil {
					return err
				}
				if counts, err = idx.Terms(term); err != nil {
					return err
				}
			} else {
				posts, err := services.LoadPosts(cmd.Context(), services.LoadOptions{HeadOnly: true})
				if err != nil {
					return err
				}
				counts = services.TaxonomyFromPosts(posts, term)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, c := range counts {
				fmt.Fprintf(tw, "%d\t%s\n", c.Count, c.Term)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "tags", "tags or categories")
	return cmd
}

func termKind(kind string) (string, error) {
	switch kind {
	case "tag", "tags":
		return services.TermTag, nil
	case "category", "categories":
		return services.TermCategory, nil
	}
	return "", fmt.Errorf("unknown kind %q (expected tags or categories)", kind)
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Lint posts as they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			out := cmd.OutOrStdout()
			w, err := services.NewWatcher(config.RepoPath, []string{config.PostsDir, config.DraftsDir}, services.DefaultDebounce, opts.logger, func(rel string) {
				content, err := os.ReadFile(services.SafeJoin(config.RepoPath, "", rel))
				if err != nil {
					fmt.Fprintf(out, "%s: removed\n", rel)
					return
				}
				issues, err := services.LintFile(rel, content, services.LintOptions{Drafts: true})
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", rel, err)
					return
				}
				if len(issues) == 0 {
					fmt.Fprintf(out, "%s: ok\n", rel)
					return
				}
				printIssues(out, issues)
			})
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			fmt.Fprintf(out, "watching %s (ctrl-c to stop)\n", config.RepoPath)
			<-ctx.Done()
			return nil
		},
	}
	return cmd
}
