// Package view holds the view hierarchy: an arena of flyweight nodes keyed by
// canonical name, resolved lazily from namespace roots.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/singleflight"

	"github.com/agentic-research/facade/internal/fault"
	"github.com/agentic-research/facade/internal/locator"
)

// DefaultExt is the view template extension.
const DefaultExt = ".html"

// Source resolves canonical names to nodes.
type Source interface {
	GetContext(ctx context.Context, name string) (*Node, error)
}

// Registry is the flyweight arena for one namespace chain. A name is
// resolved at most once per registry; the node it produced is then shared by
// every caller.
type Registry struct {
	roots      locator.Roots
	ext        string
	candidates []locator.Candidate
	log        *slog.Logger

	mu    sync.RWMutex
	nodes map[string]*Node
	group singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithExt sets the template extension (default ".html").
func WithExt(ext string) Option {
	return func(r *Registry) { r.ext = ext }
}

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry over roots.
func NewRegistry(roots locator.Roots, opts ...Option) *Registry {
	r := &Registry{
		roots: roots,
		ext:   DefaultExt,
		log:   slog.Default(),
		nodes: make(map[string]*Node),
	}
	for _, opt := range opts {
		opt(r)
	}
	// Index files win over sibling files regardless of namespace order.
	r.candidates = []locator.Candidate{locator.Index(r.ext), locator.Sibling(r.ext)}
	return r
}

// Roots returns the namespace roots the registry resolves against.
func (r *Registry) Roots() locator.Roots { return r.roots }

// Ext returns the template extension.
func (r *Registry) Ext() string { return r.ext }

// Get returns the node for name, resolving it on first use.
func (r *Registry) Get(name string) (*Node, error) {
	return r.GetContext(context.Background(), name)
}

// GetContext is Get with cancellation. A cancelled lookup never publishes a
// node.
func (r *Registry) GetContext(ctx context.Context, name string) (*Node, error) {
	cname := Canonical(name)
	if n, ok := r.Lookup(cname); ok {
		return n, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := r.group.DoChan(cname, func() (any, error) {
		if n, ok := r.Lookup(cname); ok {
			return n, nil
		}
		n, err := r.build(cname)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.nodes[cname]; ok {
			return existing, nil
		}
		r.nodes[cname] = n
		return n, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Node), nil
	}
}

func (r *Registry) build(cname string) (*Node, error) {
	hit, err := locator.ResolveByForm(cname, r.roots, r.candidates...)
	if err != nil {
		if errors.Is(err, locator.ErrNotFound) {
			return nil, fault.NotFound("view", cname)
		}
		return nil, fmt.Errorf("resolve view %s: %w", cname, err)
	}
	r.log.Debug("view resolved", "name", cname, "namespace", hit.Namespace, "file", hit.Path, "form", hit.Form)
	return &Node{
		name:      cname,
		namespace: hit.Namespace,
		filename:  hit.Path,
		form:      hit.Form,
		root:      hit.Root,
		reg:       r,
	}, nil
}

// Lookup returns an already resolved node without touching the roots.
func (r *Registry) Lookup(name string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[Canonical(name)]
	return n, ok
}

// Len returns the number of resolved nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Names returns the resolved canonical names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.nodes))
	for k := range r.nodes {
		names = append(names, k)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Coverage reports which roots can back name.
func (r *Registry) Coverage(name string) *roaring.Bitmap {
	return locator.Coverage(Canonical(name), r.roots, r.candidates...)
}

// Walk visits the hierarchy depth first from the root, children in scan
// order. Returning an error from fn stops the walk.
func (r *Registry) Walk(fn func(n *Node, depth int) error) error {
	root, err := r.Get("/")
	if err != nil {
		return err
	}
	return r.walk(root, 0, fn)
}

func (r *Registry) walk(n *Node, depth int, fn func(*Node, int) error) error {
	if err := fn(n, depth); err != nil {
		return err
	}
	children, err := n.Children(nil, nil)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := r.walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}
