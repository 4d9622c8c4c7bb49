// Package layout renders a view inside its layout template and runs the
// output filters over the result.
package layout

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/cast"

	"github.com/agentic-research/facade/internal/fault"
	"github.com/agentic-research/facade/internal/locator"
	"github.com/agentic-research/facade/internal/meta"
	"github.com/agentic-research/facade/internal/view"
)

// ErrNoLayout is returned for a view without layout metadata.
var ErrNoLayout = errors.New("view has no layout")

// PartialDir holds partial templates inside the layout roots.
const PartialDir = "partials"

// Options configure a Renderer.
type Options struct {
	// Ext is the template extension (default ".html").
	Ext string
	// Filters and Plugins default to the built-in sets.
	Filters *Filters
	Plugins *Plugins
	// GlobalFilters run on every render of this namespace.
	GlobalFilters []FilterSpec
	// ViewPlugins names the plugins to run, in order. Unknown names are
	// skipped.
	ViewPlugins []string
	// CacheSize bounds the number of parsed templates kept (default 256).
	CacheSize int
	Logger    *slog.Logger
}

// Renderer applies layouts from a set of layout roots.
type Renderer struct {
	layouts     *locator.Overlay
	ext         string
	filters     *Filters
	plugins     *Plugins
	globals     []FilterSpec
	viewPlugins []string
	cache       *lru.Cache[string, *template.Template]
	log         *slog.Logger
}

// NewRenderer returns a Renderer reading templates from roots.
func NewRenderer(roots locator.Roots, opts Options) (*Renderer, error) {
	if opts.Ext == "" {
		opts.Ext = view.DefaultExt
	}
	if opts.Filters == nil {
		opts.Filters = NewFilters()
	}
	if opts.Plugins == nil {
		opts.Plugins = NewPlugins()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cache, err := lru.New[string, *template.Template](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("template cache: %w", err)
	}
	return &Renderer{
		layouts:     locator.NewOverlay(roots),
		ext:         opts.Ext,
		filters:     opts.Filters,
		plugins:     opts.Plugins,
		globals:     opts.GlobalFilters,
		viewPlugins: opts.ViewPlugins,
		cache:       cache,
		log:         opts.Logger,
	}, nil
}

// Layouts returns the layout filesystem.
func (r *Renderer) Layouts() *locator.Overlay { return r.layouts }

// Purge drops every parsed template.
func (r *Renderer) Purge() { r.cache.Purge() }

// Render writes node, wrapped in its layout and filtered, to w. data is the
// request data; it overlays the view metadata for this render only. Nothing
// is written unless the whole render succeeds.
func (r *Renderer) Render(ctx context.Context, w io.Writer, node *view.Node, data *meta.Map, env *Env) error {
	page, err := newPage(node, data, env)
	if err != nil {
		return err
	}

	for _, name := range r.viewPlugins {
		vp, ok := r.plugins.Lookup(name)
		if !ok {
			r.log.Debug("view plugin not registered", "plugin", name)
			continue
		}
		if err := vp.Process(ctx, page); err != nil {
			return fmt.Errorf("view plugin %s: %w", name, err)
		}
	}

	layoutName := cast.ToString(page.Get(view.KeyLayout))
	if layoutName == "" {
		return fmt.Errorf("%s: %w", node.Name(), ErrNoLayout)
	}

	chain, err := r.filters.Chain(Order(r.globals, viewFilters(page.Get(view.KeyFilters))))
	if err != nil {
		return fmt.Errorf("%s: %w", node.Name(), err)
	}

	base, err := r.template(layoutName + r.ext)
	if err != nil {
		return err
	}
	t, err := base.Clone()
	if err != nil {
		return fmt.Errorf("clone layout %s: %w", layoutName, err)
	}
	tdata := page.data()
	t.Funcs(r.renderFuncs(page, tdata))

	body, err := node.Content()
	if err != nil {
		return err
	}
	bodyName := "view:" + node.Name()
	if _, err := t.New(bodyName).Parse(body); err != nil {
		return fmt.Errorf("parse view %s: %w", node.Name(), err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	content, err := executeToString(t, bodyName, tdata)
	if err != nil {
		return fmt.Errorf("execute view %s: %w", node.Name(), err)
	}
	tdata["content"] = template.HTML(content)

	out, err := executeToString(t, base.Name(), tdata)
	if err != nil {
		return fmt.Errorf("execute layout %s: %w", layoutName, err)
	}
	for _, f := range chain {
		out = f(out, page.Env)
	}
	_, err = io.WriteString(w, out)
	return err
}

// template returns the parsed template for a file in the layout roots.
// Parsed templates are shared and must only be used through Clone.
func (r *Renderer) template(file string) (*template.Template, error) {
	if t, ok := r.cache.Get(file); ok {
		return t, nil
	}
	src, err := r.layouts.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fault.NotFound("layout", file)
		}
		return nil, fmt.Errorf("read layout %s: %w", file, err)
	}
	t, err := template.New(file).Funcs(placeholderFuncs()).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", file, err)
	}
	r.cache.Add(file, t)
	return t, nil
}

func (r *Renderer) partial(p *Page, name string, data any) (template.HTML, error) {
	base, err := r.template(PartialDir + "/" + name + r.ext)
	if err != nil {
		return "", err
	}
	t, err := base.Clone()
	if err != nil {
		return "", err
	}
	t.Funcs(r.renderFuncs(p, p.data()))
	out, err := executeToString(t, base.Name(), data)
	if err != nil {
		return "", fmt.Errorf("execute partial %s: %w", name, err)
	}
	return template.HTML(out), nil
}
