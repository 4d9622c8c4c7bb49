// Package engine ties one namespace together: it runs the init plugins and
// the controller chain for a request, renders the resulting view, and maps
// every failure onto the matching fallback page.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	billy "github.com/go-git/go-billy/v5"
	"github.com/spf13/cast"

	"github.com/agentic-research/facade/internal/builtin"
	"github.com/agentic-research/facade/internal/config"
	"github.com/agentic-research/facade/internal/dispatch"
	"github.com/agentic-research/facade/internal/fault"
	"github.com/agentic-research/facade/internal/layout"
	"github.com/agentic-research/facade/internal/locator"
	"github.com/agentic-research/facade/internal/meta"
	"github.com/agentic-research/facade/internal/pagecache"
	"github.com/agentic-research/facade/internal/view"
)

// Directories holding each kind of resource, one subdirectory per namespace.
const (
	ViewsDir   = "views"
	LayoutsDir = "layouts"
)

// Views rendered when a request fails.
const (
	NotFoundView     = "404"
	RequestErrorView = "rerror"
)

// Options configure an Engine. Only FS and Settings are required.
type Options struct {
	// FS is the site tree, holding ViewsDir and LayoutsDir.
	FS          billy.Filesystem
	Settings    *config.Settings
	Controllers *dispatch.Registry
	Filters     *layout.Filters
	ViewPlugins *layout.Plugins
	InitPlugins *InitPlugins
	// Cache, when set, stores GET responses of views marked cacheable.
	Cache  *pagecache.Cache
	Logger *slog.Logger
	// Debug logs debug records whatever the namespace log_level says.
	Debug bool
}

// Engine serves the requests of one namespace. It is safe for concurrent
// use.
type Engine struct {
	fs          billy.Filesystem
	settings    *config.Settings
	views       *view.HotSwap
	dispatcher  *dispatch.Dispatcher
	renderer    *layout.Renderer
	initPlugins *InitPlugins
	cache       *pagecache.Cache
	log         *slog.Logger
}

// New builds the engine for opts.Settings.Namespace. Every failure is a
// fault.FatalInitError.
func New(opts Options) (*Engine, error) {
	if opts.FS == nil || opts.Settings == nil {
		return nil, fault.FatalInit("engine", errors.New("site filesystem and settings are required"))
	}
	if opts.Controllers == nil {
		opts.Controllers = dispatch.NewRegistry()
	}
	if opts.Filters == nil {
		opts.Filters = layout.NewFilters()
	}
	if opts.InitPlugins == nil {
		opts.InitPlugins = NewInitPlugins()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := opts.Settings
	level := s.LogLevel
	if opts.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(newLevelHandler(opts.Logger.Handler(), level)).With("namespace", s.Namespace)

	globals := layout.SpecsFromConfig(s.Filters)
	if _, err := opts.Filters.Chain(globals); err != nil {
		return nil, fault.FatalInit("filters", err)
	}

	renderer, err := layout.NewRenderer(
		locator.NamespaceRoots(opts.FS, LayoutsDir, s.Chain, builtin.Layouts()),
		layout.Options{
			Filters:       opts.Filters,
			Plugins:       opts.ViewPlugins,
			GlobalFilters: globals,
			ViewPlugins:   s.ViewPlugins,
			Logger:        log,
		})
	if err != nil {
		return nil, fault.FatalInit("renderer", err)
	}

	e := &Engine{
		fs:          opts.FS,
		settings:    s,
		renderer:    renderer,
		initPlugins: opts.InitPlugins,
		cache:       opts.Cache,
		log:         log,
	}
	e.views = view.NewHotSwap(e.newRegistry())
	e.dispatcher = dispatch.New(opts.Controllers, e.views, dispatch.Options{
		Chain:   s.Chain,
		Charset: s.Charset,
		Logger:  log,
	})
	log.Debug("engine ready", "chain", s.Chain, "views", e.Views().Roots().Namespaces())
	return e, nil
}

func (e *Engine) newRegistry() *view.Registry {
	roots := locator.NamespaceRoots(e.fs, ViewsDir, e.settings.Chain, builtin.Views())
	return view.NewRegistry(roots, view.WithLogger(e.log))
}

func (e *Engine) Settings() *config.Settings { return e.settings }

// Views returns the current view registry.
func (e *Engine) Views() *view.Registry { return e.views.Current() }

func (e *Engine) Renderer() *layout.Renderer { return e.renderer }

// Reload discards every resolved view and parsed template, and the cached
// pages of this namespace.
func (e *Engine) Reload(ctx context.Context) {
	e.views.Swap(e.newRegistry())
	e.renderer.Purge()
	if e.cache != nil {
		if _, err := e.cache.Purge(ctx, e.settings.Namespace, ""); err != nil {
			e.log.Warn("page cache purge failed", "error", err)
		}
	}
	e.log.Info("reloaded")
}

// Handle answers req. The returned response is complete: errors have
// already been turned into the matching fallback page.
func (e *Engine) Handle(ctx context.Context, req *dispatch.Request) *Response {
	log := e.log.With("request_id", req.ID, "path", req.Path)

	cacheable := e.cache != nil && e.settings.Cache && req.IsGet()
	var key string
	if cacheable {
		key = pagecache.Key(e.settings.Namespace, req.Path, req.Query)
		if hit, err := e.cache.Get(ctx, key); err == nil {
			log.Debug("page cache hit")
			return &Response{Status: hit.Status, Header: hit.Header, Body: hit.Body, Cached: true}
		} else if !errors.Is(err, pagecache.ErrMiss) {
			log.Warn("page cache read failed", "error", err)
		}
	}

	if err := e.runInit(ctx, log, req); err != nil {
		return e.fail(ctx, log, req, err)
	}
	res, err := e.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return e.fail(ctx, log, req, err)
	}
	log.Debug("dispatched", "view", res.View.Name(), "controllers", res.Trace)

	resp, err := e.render(ctx, req, res.View, res.Data, res.Header, res.Status)
	if err != nil {
		return e.fail(ctx, log, req, err)
	}

	if cacheable && resp.Status == http.StatusOK && cast.ToBool(res.View.Get("cache")) {
		entry := &pagecache.Entry{Status: resp.Status, Header: resp.Header, Body: resp.Body}
		if err := e.cache.Put(ctx, key, e.settings.Namespace, req.Path, entry); err != nil {
			log.Warn("page cache write failed", "error", err)
		}
	}
	return resp
}

// runInit runs the configured init plugins in order. Unknown names are
// skipped.
func (e *Engine) runInit(ctx context.Context, log *slog.Logger, req *dispatch.Request) error {
	for _, name := range e.settings.InitPlugins {
		ip, ok := e.initPlugins.Lookup(name)
		if !ok {
			log.Debug("init plugin not registered", "plugin", name)
			continue
		}
		if err := ip.Process(ctx, e.settings, req); err != nil {
			return fault.FatalInit("init plugin "+name, err)
		}
	}
	return nil
}

func (e *Engine) render(ctx context.Context, req *dispatch.Request, node *view.Node, data *meta.Map, header http.Header, status int) (*Response, error) {
	if data == nil {
		data = meta.New()
	}
	if !data.Has("charset") {
		data.Set("charset", e.settings.Charset)
	}
	if !e.settings.Debug {
		data.Delete("stack_trace")
	}
	env := &layout.Env{
		Namespace: e.settings.Namespace,
		Path:      req.Path,
		Query:     req.Query,
		SiteBase:  e.settings.SiteBase,
		Start:     req.Start,
		Location:  e.settings.Location,
	}

	var buf bytes.Buffer
	if err := e.renderer.Render(ctx, &buf, node, data, env); err != nil {
		return nil, err
	}

	h := make(http.Header, len(header)+1)
	for k, v := range header {
		h[k] = v
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "text/html; charset="+e.settings.Charset)
	}
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{Status: status, Header: h, Body: buf.Bytes()}, nil
}

// fail maps err onto a response.
func (e *Engine) fail(ctx context.Context, log *slog.Logger, req *dispatch.Request, err error) *Response {
	var (
		halt *dispatch.Halt
		re   *fault.RequestError
		fe   *fault.FatalInitError
	)
	switch {
	case errors.As(err, &halt):
		return &Response{Status: halt.Status, Header: halt.Header, Body: halt.Body}

	case errors.As(err, &fe):
		log.Error("init failed", "error", err)
		return InitErrorResponse(err)

	case isMissingView(err) || fault.IsParse(err):
		if fault.IsParse(err) {
			log.Warn("malformed view", "error", err)
		} else {
			log.Debug("not found", "error", err)
		}
		return e.fallback(ctx, log, req, NotFoundView, http.StatusNotFound, nil, "Cannot render 404 page!")

	case errors.As(err, &re):
		log.Info("request error", "error", err, "status", re.StatusCode())
		data := meta.FromPairs("error", re.Msg, "stack_trace", fault.StackTrace(err))
		return e.fallback(ctx, log, req, RequestErrorView, re.StatusCode(), data, "Cannot render request error page!")

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Debug("request abandoned", "error", err)
		return textResponse(http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable))

	default:
		log.Error("request failed", "error", err)
		data := meta.FromPairs("error", err.Error(), "stack_trace", fault.StackTrace(err))
		return e.fallback(ctx, log, req, dispatch.ErrorView, http.StatusInternalServerError, data, http.StatusText(http.StatusInternalServerError))
	}
}

// fallback renders one of the error views, or answers with text when that
// fails too.
func (e *Engine) fallback(ctx context.Context, log *slog.Logger, req *dispatch.Request, name string, status int, data *meta.Map, text string) *Response {
	node, err := e.views.GetContext(ctx, name)
	if err == nil {
		var resp *Response
		resp, err = e.render(ctx, req, node, data, nil, status)
		if err == nil {
			return resp
		}
	}
	log.Error("fallback page failed", "view", name, "error", err)
	return textResponse(status, text)
}

func isMissingView(err error) bool {
	var nf *fault.NotFoundError
	return errors.As(err, &nf) && nf.Kind == "view"
}

// Render dispatches req and returns the rendered body, without fallbacks.
// The CLI uses it to surface errors directly.
func (e *Engine) Render(ctx context.Context, req *dispatch.Request) (*Response, error) {
	if err := e.runInit(ctx, e.log, req); err != nil {
		return nil, err
	}
	res, err := e.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := e.render(ctx, req, res.View, res.Data, res.Header, res.Status)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", res.View.Name(), err)
	}
	return resp, nil
}
