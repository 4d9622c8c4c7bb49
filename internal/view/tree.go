package view

// Tree wraps a node with a sort and a filter that follow it through the
// hierarchy: children and parents of a Tree are Trees with the same rules.
// Menus use it to present a filtered site map.
type Tree struct {
	*Node
	sort SortFunc
	keep FilterFunc
}

// NewTree decorates n. Both functions are optional.
func NewTree(n *Node, sortFn SortFunc, keep FilterFunc) *Tree {
	return &Tree{Node: n, sort: sortFn, keep: keep}
}

// Children returns the filtered, sorted children wrapped with the same rules.
func (t *Tree) Children() ([]*Tree, error) {
	nodes, err := t.Node.Children(t.sort, t.keep)
	if err != nil {
		return nil, err
	}
	out := make([]*Tree, len(nodes))
	for i, n := range nodes {
		out[i] = &Tree{Node: n, sort: t.sort, keep: t.keep}
	}
	return out, nil
}

// Parent returns the wrapped parent, or nil at the root.
func (t *Tree) Parent() (*Tree, error) {
	p, err := t.Node.Parent()
	if err != nil || p == nil {
		return nil, err
	}
	return &Tree{Node: p, sort: t.sort, keep: t.keep}, nil
}
