package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"jekyll-cms/pkg/config"
	"jekyll-cms/pkg/handlers"
	"jekyll-cms/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the editing API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			return serve(ctx, opts.logger, watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "refresh caches when posts change on disk")
	return cmd
}

func serve(ctx context.Context, logger *zap.Logger, watch bool) error {
	if config.SessionSecret == "" && !config.AuthDisabled {
		return errors.New("SESSION_SECRET must be set unless AUTH_DISABLED is true")
	}
	if config.AuthDisabled {
		logger.Warn("authentication disabled")
	}

	if config.IndexPath != "" {
		idx, err := services.OpenIndex(config.IndexPath)
		if err != nil {
			return err
		}
		defer idx.Close()
		if err := rebuildIndex(ctx, idx); err != nil {
			return err
		}
		handlers.Index = idx
		defer func() { handlers.Index = nil }()
		logger.Info("taxonomy index ready", zap.String("path", config.IndexPath))
	}

	if watch {
		w, err := services.NewWatcher(config.RepoPath, []string{config.PostsDir, config.DraftsDir}, services.DefaultDebounce, logger, func(rel string) {
			logger.Debug("post changed", zap.String("path", rel))
			if handlers.Index == nil {
				return
			}
			if err := rebuildIndex(ctx, handlers.Index); err != nil {
				logger.Warn("index rebuild failed", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    config.ListenAddr,
		Handler: handlers.NewRouter(logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", config.ListenAddr), zap.String("repo", config.RepoPath))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func rebuildIndex(ctx context.Context, idx *services.Index) error {
	posts, err := services.LoadPosts(ctx, services.LoadOptions{HeadOnly: true})
	if err != nil {
		return err
	}
	return idx.Rebuild(posts)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}
