package layout

import (
	"net/url"
	"time"

	"github.com/agentic-research/facade/internal/meta"
	"github.com/agentic-research/facade/internal/view"
)

// Env is the request context a render needs.
type Env struct {
	Namespace string
	Path      string
	Query     url.Values
	SiteBase  string
	Start     time.Time
	Location  *time.Location
}

// Page is the render-local state of one view: a private copy of the view
// metadata overlaid with request data. Plugins and templates write here,
// never to the shared node.
type Page struct {
	Node *view.Node
	Meta *meta.Map
	Env  *Env
}

func newPage(n *view.Node, data *meta.Map, env *Env) (*Page, error) {
	m, err := n.Meta()
	if err != nil {
		return nil, err
	}
	local := m.Clone()
	local.Merge(data)
	local.Set(view.KeyName, n.Name())
	local.Set(view.KeyNamespace, n.Namespace())
	if env == nil {
		env = &Env{Start: time.Now(), Location: time.UTC}
	}
	return &Page{Node: n, Meta: local, Env: env}, nil
}

func (p *Page) Get(key string) any        { return p.Meta.Value(key) }
func (p *Page) Set(key string, value any) { p.Meta.Set(key, value) }

// data builds the template data: every metadata key plus view and request.
func (p *Page) data() map[string]any {
	d := p.Meta.ToMap()
	d["view"] = p.Node
	d["page"] = p
	d["request"] = p.Env
	return d
}
