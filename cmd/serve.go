package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/facade/internal/engine"
	"github.com/agentic-research/facade/internal/pagecache"
	"github.com/agentic-research/facade/internal/reload"
	"github.com/agentic-research/facade/internal/server"
)

var (
	serveAddr  string
	serveWatch bool
	cachePath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		site, err := loadSite()
		if err != nil {
			return err
		}
		fsys, err := siteFS()
		if err != nil {
			return err
		}

		var cache *pagecache.Cache
		if cachePath != "" {
			if cache, err = pagecache.Open(cachePath); err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()
		}

		srv := server.New(server.Options{
			Site:        site,
			FS:          fsys,
			Namespace:   namespace,
			Controllers: Ext.Controllers,
			Filters:     Ext.Filters,
			ViewPlugins: Ext.ViewPlugins,
			InitPlugins: Ext.InitPlugins,
			Cache:       cache,
			Logger:      slog.Default(),
			Debug:       debug,
		})

		// Build the fallback namespace now so setup errors show at startup.
		if _, err := srv.Engine(namespace); err != nil {
			return err
		}

		if serveWatch {
			dirs := []string{
				filepath.Join(rootDir, engine.ViewsDir),
				filepath.Join(rootDir, engine.LayoutsDir),
			}
			w, err := reload.New(dirs, reload.DefaultDelay, srv.Reload, slog.Default())
			if err != nil {
				return err
			}
			go func() { _ = w.Run(ctx) }()
			slog.Info("watching for changes", "dirs", dirs)
		}

		return srv.ListenAndServe(ctx, serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8080", "Listen address")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "Reload views and layouts when they change on disk")
	serveCmd.Flags().StringVar(&cachePath, "cache", "", "Page cache database (disabled when empty)")
	rootCmd.AddCommand(serveCmd)
}

