package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"jekyll-cms/pkg/config"
	"jekyll-cms/pkg/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	repo     string
	logLevel string
	logger   *zap.Logger
}

// NewRootCmd builds the command tree. Settings come from the environment (and .env),
// with --repo and --log-level taking precedence.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "jekyll-cms",
		Short:         "Manage the posts of a Jekyll blog",
		Long:          "jekyll-cms lints, lists, scaffolds and previews the posts of a Jekyll repository, and serves an editing API for it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envLoaded := config.Init()
			if opts.repo != "" {
				config.RepoPath = opts.repo
				if os.Getenv("SITE_PATH") == "" {
					config.SitePath = filepath.Join(opts.repo, "_site")
				}
			}
			level := config.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = opts.logLevel
			}
			logger, err := logging.New(level)
			if err != nil {
				return err
			}
			opts.logger = logger
			logger.Debug("configuration loaded",
				zap.Bool("env_file", envLoaded),
				zap.String("repo", config.RepoPath),
			)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&opts.repo, "repo", "", "path to the Jekyll repository (overrides REPO_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(opts),
		newLintCmd(opts),
		newListCmd(opts),
		newNewCmd(opts),
		newBuildCmd(opts),
		newShowCmd(opts),
		newTagsCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jekyll-cms %s (commit: %s)\n", version, commit)
		},
	}
}

func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

func SetVersionInfo(v, c string) {
	version = v
	commit = c
}
