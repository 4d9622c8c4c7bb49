package layout

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/spf13/cast"

	"github.com/agentic-research/facade/internal/view"
)

// DefaultTimeFormat is the tztime layout when none is given.
const DefaultTimeFormat = "2006/01/02 15:04:05"

// funcNames lists every template function. Templates are parsed once with
// placeholders and get the real, per-render functions after cloning.
var funcNames = []string{
	"partial", "breadcrumbs", "menu", "title", "selfURL", "timer",
	"tztime", "pluck", "children", "parent", "meta",
}

func placeholderFuncs() template.FuncMap {
	fm := make(template.FuncMap, len(funcNames))
	for _, name := range funcNames {
		fm[name] = func(...any) string { return "" }
	}
	return fm
}

// renderFuncs returns the functions bound to one render.
func (r *Renderer) renderFuncs(p *Page, data map[string]any) template.FuncMap {
	return template.FuncMap{
		"partial": func(name string, args ...any) (template.HTML, error) {
			var d any = data
			if len(args) > 0 {
				d = args[0]
			}
			return r.partial(p, name, d)
		},
		"breadcrumbs": func() ([]*view.Node, error) {
			crumbs, err := Breadcrumbs(p.Node)
			return crumbs, hierarchyErr("breadcrumbs", err)
		},
		"menu": func(location ...string) (*view.Tree, error) {
			loc := ""
			if len(location) > 0 {
				loc = location[0]
			}
			tree, err := Menu(p.Node, loc)
			return tree, hierarchyErr("menu", err)
		},
		"title": func(nodes ...*view.Node) string {
			if len(nodes) > 0 && nodes[0] != nil {
				return Title(nodes[0].Get("title"), nodes[0].Get("subtitle"))
			}
			return Title(p.Get("title"), p.Get("subtitle"))
		},
		"selfURL": func(params ...string) string { return SelfURL(p.Env, params...) },
		"timer": func() template.HTML {
			return template.HTML(fmt.Sprintf("<!-- Request time : %dms -->", time.Since(p.Env.Start).Milliseconds()))
		},
		"tztime": func(ts any, format ...string) (string, error) { return TzTime(ts, p.Env.Location, format...) },
		"pluck":  func(expr string) (any, error) { return Pluck(p.Meta.ToMap(), expr) },
		"children": func(n *view.Node) ([]*view.Node, error) {
			if n == nil {
				n = p.Node
			}
			children, err := n.Children(nil, nil)
			return children, hierarchyErr("children", err)
		},
		"parent": func(n *view.Node) (*view.Node, error) {
			if n == nil {
				n = p.Node
			}
			parent, err := n.Parent()
			return parent, hierarchyErr("parent", err)
		},
		"meta": func(key string) any { return p.Get(key) },
	}
}

// hierarchyErr flattens a failed hierarchy lookup so a missing ancestor is
// not mistaken for a missing requested view.
func hierarchyErr(fn string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %v", fn, err)
}

// Breadcrumbs returns the path from the top level down to n, root excluded.
func Breadcrumbs(n *view.Node) ([]*view.Node, error) {
	if n.IsRoot() {
		return nil, nil
	}
	ancestors, err := n.Ancestors()
	if err != nil {
		return nil, err
	}
	return append(ancestors[1:], n), nil
}

// Menu returns the site tree filtered to views whose location metadata
// matches location (every view when empty) and sorted by their order
// metadata.
func Menu(n *view.Node, location string) (*view.Tree, error) {
	root := n
	if !n.IsRoot() {
		ancestors, err := n.Ancestors()
		if err != nil {
			return nil, err
		}
		root = ancestors[0]
	}
	keep := func(c *view.Node) bool {
		return location == "" || cast.ToString(c.Get("location")) == location
	}
	byOrder := func(a, b *view.Node) int {
		return cast.ToInt(a.Get("order")) - cast.ToInt(b.Get("order"))
	}
	return view.NewTree(root, byOrder, keep), nil
}

// Title joins title and subtitle.
func Title(title, subtitle any) string {
	return cast.ToString(title) + cast.ToString(subtitle)
}

// SelfURL rebuilds the current URL. Plain names keep the matching query
// parameters; name=value pairs add or replace one.
func SelfURL(env *Env, params ...string) string {
	q := url.Values{}
	for _, p := range params {
		if k, v, ok := strings.Cut(p, "="); ok {
			q.Set(k, v)
			continue
		}
		if vals, ok := env.Query[p]; ok {
			q[p] = append([]string(nil), vals...)
		}
	}
	u := env.Path
	if u == "" {
		u = "/"
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// TzTime formats ts, a time or a unix timestamp, in loc.
func TzTime(ts any, loc *time.Location, format ...string) (string, error) {
	t, err := cast.ToTimeE(ts)
	if err != nil {
		return "", err
	}
	if loc == nil {
		loc = time.UTC
	}
	layout := DefaultTimeFormat
	if len(format) > 0 && format[0] != "" {
		layout = format[0]
	}
	return t.In(loc).Format(layout), nil
}

// Pluck evaluates a JSONPath expression against the page metadata and
// returns the first match, or nil.
func Pluck(data map[string]any, expr string) (any, error) {
	if !strings.HasPrefix(expr, "$") {
		expr = "$." + expr
	}
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("pluck %q: %w", expr, err)
	}
	return x.First(data), nil
}

func executeToString(t *template.Template, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
