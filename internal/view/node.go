package view

import (
	"fmt"
	"io"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/agentic-research/facade/internal/fault"
	"github.com/agentic-research/facade/internal/locator"
	"github.com/agentic-research/facade/internal/meta"
)

// SortFunc orders children; it follows the slices.SortFunc convention.
type SortFunc func(a, b *Node) int

// FilterFunc keeps a child when it returns true.
type FilterFunc func(n *Node) bool

// Node is one view: a template file plus its header metadata. Nodes are
// flyweights owned by a Registry, so every holder of a name shares the same
// Node. Parent and children are stored as canonical names and resolved
// through the registry on demand.
type Node struct {
	name      string
	namespace string
	filename  string
	form      locator.Form
	root      int
	reg       *Registry

	parseOnce sync.Once
	meta      *meta.Map
	content   string
	parseErr  error

	childOnce sync.Once
	children  []string
	childErr  error
}

// Name returns the canonical name, e.g. "/blog/2024/".
func (n *Node) Name() string { return n.name }

// Namespace returns the namespace whose root backs the node.
func (n *Node) Namespace() string { return n.namespace }

// Root returns the index of the root backing the node.
func (n *Node) Root() int { return n.root }

// Filename returns the backing file, relative to its namespace root.
func (n *Node) Filename() string { return n.filename }

// Form reports whether the node is backed by an index or a sibling file.
func (n *Node) Form() locator.Form { return n.form }

// IsRoot reports whether n is the top of the hierarchy.
func (n *Node) IsRoot() bool { return n.name == "/" }

// Depth returns the number of segments in the node name.
func (n *Node) Depth() int { return Depth(n.name) }

// IsAncestorOf reports whether n is a strict ancestor of other.
func (n *Node) IsAncestorOf(other *Node) bool {
	return other != nil && IsAncestor(n.name, other.name)
}

// Content returns the view body with the header removed.
func (n *Node) Content() (string, error) {
	n.parse()
	return n.content, n.parseErr
}

// Meta returns the header metadata. The returned map is shared: writes are
// visible to every holder of this node. Renderers must clone it.
func (n *Node) Meta() (*meta.Map, error) {
	n.parse()
	if n.parseErr != nil {
		return nil, n.parseErr
	}
	return n.meta, nil
}

// Get returns a metadata value, or nil when absent or unparsable.
func (n *Node) Get(key string) any {
	m, err := n.Meta()
	if err != nil {
		return nil
	}
	return m.Value(key)
}

// Has reports whether the header defines key.
func (n *Node) Has(key string) bool {
	m, err := n.Meta()
	return err == nil && m.Has(key)
}

// AddMeta stores key on the shared node.
func (n *Node) AddMeta(key string, value any) error {
	m, err := n.Meta()
	if err != nil {
		return err
	}
	m.Set(key, value)
	return nil
}

func (n *Node) parse() {
	n.parseOnce.Do(func() {
		raw, err := n.reg.readFile(n.root, n.filename)
		if err != nil {
			n.parseErr = fmt.Errorf("read view %s: %w", n.name, err)
			return
		}
		n.meta, n.content, n.parseErr = parseView(path.Join(n.namespace, n.filename), raw)
	})
}

// Parent returns the view one level up. It returns (nil, nil) for the root
// and an error when an intermediate level has no backing file.
func (n *Node) Parent() (*Node, error) {
	if n.IsRoot() {
		return nil, nil
	}
	return n.reg.Get(ParentName(n.name))
}

// Ancestors returns the chain of parents from the root down to n's parent.
func (n *Node) Ancestors() ([]*Node, error) {
	var chain []*Node
	for cur := n; !cur.IsRoot(); {
		p, err := cur.Parent()
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
		cur = p
	}
	slices.Reverse(chain)
	return chain, nil
}

// Children returns the direct children. The list is computed once; sortFn
// and filterFn, both optional, apply to a fresh copy on every call.
func (n *Node) Children(sortFn SortFunc, filterFn FilterFunc) ([]*Node, error) {
	names, err := n.childNames()
	if err != nil {
		return nil, err
	}
	out := make([]*Node, 0, len(names))
	for _, name := range names {
		c, err := n.reg.Get(name)
		if err != nil {
			if fault.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if filterFn != nil && !filterFn(c) {
			continue
		}
		out = append(out, c)
	}
	if sortFn != nil {
		slices.SortStableFunc(out, sortFn)
	}
	return out, nil
}

func (n *Node) childNames() ([]string, error) {
	n.childOnce.Do(func() {
		n.children, n.childErr = n.reg.scanChildren(n.name)
	})
	return n.children, n.childErr
}

// scanChildren lists the child names of name across every root. Dot files
// and directories named index are skipped; files other than the index count as children, and so do
// directories that contain an index file. The first root to mention a name
// decides its position.
func (r *Registry) scanChildren(name string) ([]string, error) {
	dir := locator.Rel(name)
	index := "index" + r.ext
	seen := make(map[string]bool)
	var out []string
	for _, root := range r.roots {
		entries, err := root.FS.ReadDir(dir)
		if err != nil {
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			base := e.Name()
			if strings.HasPrefix(base, ".") {
				continue
			}
			var child string
			if e.IsDir() {
				if base == "index" {
					continue
				}
				fi, err := root.FS.Stat(path.Join(dir, base, index))
				if err != nil || fi.IsDir() {
					continue
				}
				child = ChildName(name, base)
			} else {
				if base == index || !strings.HasSuffix(base, r.ext) {
					continue
				}
				child = ChildName(name, strings.TrimSuffix(base, r.ext))
			}
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
		}
	}
	return out, nil
}

func (r *Registry) readFile(root int, filename string) ([]byte, error) {
	if root < 0 || root >= len(r.roots) {
		return nil, fmt.Errorf("root %d out of range", root)
	}
	f, err := r.roots[root].FS.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	return fmt.Sprintf("%s (%s:%s)", n.name, n.namespace, n.filename)
}
