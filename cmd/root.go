package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/agentic-research/facade/api"
	"github.com/agentic-research/facade/internal/config"
	"github.com/agentic-research/facade/internal/dispatch"
	"github.com/agentic-research/facade/internal/engine"
	"github.com/agentic-research/facade/internal/fault"
	"github.com/agentic-research/facade/internal/layout"
	"github.com/agentic-research/facade/internal/locator"
)

// Extensions are the application hooks shared by every command.
type Extensions struct {
	Controllers *dispatch.Registry
	Filters     *layout.Filters
	ViewPlugins *layout.Plugins
	InitPlugins *engine.InitPlugins
}

// NewExtensions returns registries holding only the built-ins.
func NewExtensions() *Extensions {
	return &Extensions{
		Controllers: dispatch.NewRegistry(),
		Filters:     layout.NewFilters(),
		ViewPlugins: layout.NewPlugins(),
		InitPlugins: engine.NewInitPlugins(),
	}
}

// Ext is where applications register controllers and plugins before
// calling Execute.
var Ext = NewExtensions()

var (
	rootDir    string
	configPath string
	namespace  string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "facade",
	Short: "Facade: a namespaced MVC web framework",
	Long: `Facade serves hierarchical view templates through controller chains.
Views and layouts live under <root>/views/<namespace> and
<root>/layouts/<namespace>; namespaces override each other as configured.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(newLogger(level))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", ".", "Site root holding views/ and layouts/")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: facade.{hcl,toml,yaml,json} in the root)")
	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", locator.DefaultNamespace, "Namespace for hosts that match no configured namespace")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

// loadSite reads the configuration file. Without one every namespace runs
// on defaults.
func loadSite() (*api.Site, error) {
	path := configPath
	if path == "" {
		found, ok := config.Find(rootDir)
		if !ok {
			slog.Debug("no configuration file", "root", rootDir)
			return &api.Site{}, nil
		}
		path = found
	}
	site, err := config.Load(path)
	if err != nil {
		return nil, fault.FatalInit("config", err)
	}
	slog.Debug("configuration loaded", "file", path, "namespaces", len(site.Namespaces))
	return site, nil
}

func siteFS() (billy.Filesystem, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fault.FatalInit("site root", err)
	}
	if !fi.IsDir() {
		return nil, fault.FatalInit("site root", fmt.Errorf("%s is not a directory", abs))
	}
	return osfs.New(abs), nil
}

// newEngine builds the engine of one namespace for the one-shot commands.
func newEngine(ns string) (*engine.Engine, error) {
	site, err := loadSite()
	if err != nil {
		return nil, err
	}
	fsys, err := siteFS()
	if err != nil {
		return nil, err
	}
	settings, err := config.Resolve(site, ns)
	if err != nil {
		return nil, fault.FatalInit("namespace "+ns, err)
	}
	return engine.New(engine.Options{
		FS:          fsys,
		Settings:    settings,
		Controllers: Ext.Controllers,
		Filters:     Ext.Filters,
		ViewPlugins: Ext.ViewPlugins,
		InitPlugins: Ext.InitPlugins,
		Logger:      slog.Default(),
		Debug:       debug,
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
