package tree

import "rhizome/internal/model"

// Children returns shallow snapshots of a node's direct children in display
// order. uid may be a page or a block.
func (t *Tree) Children(uid string) []model.Block {
	n, ok := t.nodes[uid]
	if !ok {
		return nil
	}
	out := make([]model.Block, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, t.shallow(t.nodes[c]))
	}
	return out
}

// PrevSibling returns the sibling immediately before uid, if any.
func (t *Tree) PrevSibling(uid string) (model.Block, bool) {
	n, ok := t.nodes[uid]
	if !ok || n.isPage {
		return model.Block{}, false
	}
	sibs := t.nodes[n.parent].children
	i := indexOf(sibs, uid)
	if i <= 0 {
		return model.Block{}, false
	}
	return t.shallow(t.nodes[sibs[i-1]]), true
}

// CollapsedUIDs lists every collapsed block on a page, including ones
// hidden under collapsed ancestors.
func (t *Tree) CollapsedUIDs(pageUID string) []string {
	var out []string
	var walk func(uid string)
	walk = func(uid string) {
		n, ok := t.nodes[uid]
		if !ok {
			return
		}
		if !n.isPage && n.collapsed {
			out = append(out, n.uid)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(pageUID)
	return out
}

// LastChildOrder returns the order of uid's final child, or -1 when it
// has none, so callers append at LastChildOrder+1.
func (t *Tree) LastChildOrder(uid string) int {
	n, ok := t.nodes[uid]
	if !ok || len(n.children) == 0 {
		return -1
	}
	last := t.nodes[n.children[len(n.children)-1]]
	return last.order
}
