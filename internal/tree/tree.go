// Package tree owns the in-memory outline: every loaded page and block lives
// in a single uid-keyed arena with parent links, so moves and deletes are
// cheap re-parenting operations and ancestor walks never chase pointers into
// shared structures. All snapshots handed out are copies; the arena is only
// ever mutated through the methods here.
package tree

import (
	"sort"
	"strings"
	"time"

	"rhizome/internal/markdown"
	"rhizome/internal/model"
)

type node struct {
	uid       string
	parent    string // owning page or block uid; "" only for page roots
	text      string
	order     int
	collapsed bool
	dirty     bool
	rev       uint64
	refs      []string
	children  []string // display order; kept consistent with child order values
	isPage    bool
	title     string
	date      time.Time
}

// Tree is the block-tree model. It is not safe for concurrent use: exactly
// one goroutine (the program's mutator loop) may call its methods.
type Tree struct {
	nodes     map[string]*node
	pageOrder []string
}

func New() *Tree {
	return &Tree{nodes: map[string]*node{}}
}

// Row is one line of the navigable view.
type Row struct {
	Block       model.Block
	PageUID     string
	Depth       int
	HasChildren bool
}

// --- Loading and merging ---

// LoadPage inserts or refreshes a page. For an already-cached page the merge
// is dirty-aware: clean blocks are replaced wholesale by the incoming version
// (the backend is authoritative for unmodified data), dirty blocks keep their
// local payload and position, and locally created blocks missing from the
// snapshot are re-attached. Reconciling dirty state is the sync engine's job,
// not the merge's.
func (t *Tree) LoadPage(p model.Page) {
	if p.UID == "" {
		return
	}
	type preserved struct {
		n      *node
		parent string
		index  int
	}
	var keep []preserved
	if old, ok := t.nodes[p.UID]; ok && old.isPage {
		for _, uid := range t.collectPage(p.UID) {
			n := t.nodes[uid]
			if n == nil || !n.dirty {
				continue
			}
			parent := n.parent
			idx := indexOf(t.nodes[parent].children, uid)
			keep = append(keep, preserved{n: n, parent: parent, index: idx})
		}
		t.dropPage(p.UID)
	} else {
		t.pageOrder = append(t.pageOrder, p.UID)
	}

	pn := &node{uid: p.UID, isPage: true, title: p.Title, date: p.Date}
	t.nodes[p.UID] = pn
	blocks := append([]model.Block(nil), p.Blocks...)
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Order < blocks[j].Order })
	for _, b := range blocks {
		t.attachSnapshot(p.UID, b)
	}

	// Re-apply preserved dirty blocks in their original document order so a
	// dirty parent is restored before its dirty children.
	for _, pr := range keep {
		if existing, ok := t.nodes[pr.n.uid]; ok {
			// Incoming snapshot still has the block: discard the incoming
			// version's payload and position in favor of the local one.
			existing.text = pr.n.text
			existing.refs = pr.n.refs
			existing.collapsed = pr.n.collapsed
			existing.dirty = true
			existing.rev = pr.n.rev
			existing.order = pr.n.order
			t.reattach(existing, pr.parent, pr.index)
			continue
		}
		// Local create the backend has not confirmed yet.
		n := &node{
			uid:       pr.n.uid,
			text:      pr.n.text,
			order:     pr.n.order,
			collapsed: pr.n.collapsed,
			dirty:     true,
			rev:       pr.n.rev,
			refs:      pr.n.refs,
		}
		t.nodes[n.uid] = n
		parent := pr.parent
		if _, ok := t.nodes[parent]; !ok {
			parent = p.UID
		}
		t.insertChildAt(parent, n, pr.index)
	}
}

func (t *Tree) attachSnapshot(parentUID string, b model.Block) {
	if b.UID == "" {
		return
	}
	if _, exists := t.nodes[b.UID]; exists {
		// Duplicate uid in a remote snapshot; keep the first occurrence.
		return
	}
	n := &node{
		uid:       b.UID,
		parent:    parentUID,
		text:      b.Text,
		order:     b.Order,
		collapsed: b.Collapsed,
		refs:      markdown.RefValues(b.Text),
	}
	t.nodes[b.UID] = n
	pn := t.nodes[parentUID]
	pn.children = append(pn.children, b.UID)
	children := append([]model.Block(nil), b.Children...)
	sort.SliceStable(children, func(i, j int) bool { return children[i].Order < children[j].Order })
	for _, c := range children {
		t.attachSnapshot(b.UID, c)
	}
}

// DropPage evicts a page and its blocks from the cache.
func (t *Tree) DropPage(pageUID string) {
	if n, ok := t.nodes[pageUID]; !ok || !n.isPage {
		return
	}
	t.dropPage(pageUID)
	for i, uid := range t.pageOrder {
		if uid == pageUID {
			t.pageOrder = append(t.pageOrder[:i], t.pageOrder[i+1:]...)
			break
		}
	}
}

func (t *Tree) dropPage(pageUID string) {
	for _, uid := range t.collectPage(pageUID) {
		delete(t.nodes, uid)
	}
	delete(t.nodes, pageUID)
}

func (t *Tree) collectPage(pageUID string) []string {
	var out []string
	var walk func(uid string)
	walk = func(uid string) {
		for _, c := range t.nodes[uid].children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(pageUID)
	return out
}

// --- Queries ---

func (t *Tree) HasPage(uid string) bool {
	n, ok := t.nodes[uid]
	return ok && n.isPage
}

func (t *Tree) PageUIDs() []string {
	return append([]string(nil), t.pageOrder...)
}

func (t *Tree) Page(uid string) (model.Page, bool) {
	n, ok := t.nodes[uid]
	if !ok || !n.isPage {
		return model.Page{}, false
	}
	p := model.Page{UID: n.uid, Title: n.title, Date: n.date}
	for _, c := range n.children {
		p.Blocks = append(p.Blocks, t.snapshot(c))
	}
	return p, true
}

// Block returns a shallow snapshot (no children) of one block.
func (t *Tree) Block(uid string) (model.Block, bool) {
	n, ok := t.nodes[uid]
	if !ok || n.isPage {
		return model.Block{}, false
	}
	return t.shallow(n), true
}

// Subtree returns a deep copy of a block and all its descendants.
func (t *Tree) Subtree(uid string) (model.Block, bool) {
	n, ok := t.nodes[uid]
	if !ok || n.isPage {
		return model.Block{}, false
	}
	return t.snapshot(uid), true
}

// Parent returns the uid of the block's parent (a block or page uid).
func (t *Tree) Parent(uid string) (string, bool) {
	n, ok := t.nodes[uid]
	if !ok || n.isPage {
		return "", false
	}
	return n.parent, true
}

// PageOf walks parent links up to the containing page.
func (t *Tree) PageOf(uid string) (string, bool) {
	n, ok := t.nodes[uid]
	if !ok {
		return "", false
	}
	for !n.isPage {
		p, ok := t.nodes[n.parent]
		if !ok {
			return "", false
		}
		n = p
	}
	return n.uid, true
}

// RootOf returns the top-level ancestor block of uid (the depth-1 block under
// its page). Pending writes touching the same root form one causal chain.
func (t *Tree) RootOf(uid string) string {
	n, ok := t.nodes[uid]
	if !ok || n.isPage {
		return uid
	}
	for {
		p, ok := t.nodes[n.parent]
		if !ok || p.isPage {
			return n.uid
		}
		n = p
	}
}

func (t *Tree) Revision(uid string) uint64 {
	if n, ok := t.nodes[uid]; ok {
		return n.rev
	}
	return 0
}

func (t *Tree) IsDirty(uid string) bool {
	n, ok := t.nodes[uid]
	return ok && n.dirty
}

func (t *Tree) DirtyCount() int {
	c := 0
	for _, n := range t.nodes {
		if n.dirty {
			c++
		}
	}
	return c
}

// --- Mutations ---

// Insert attaches a snapshot (block plus any children it carries) under
// parentUID. The block is placed before the first sibling whose order value
// is >= the block's, so sibling lists are never renumbered; equal order
// values are tolerated and resolved by insertion sequence.
func (t *Tree) Insert(parentUID string, b model.Block) error {
	if _, ok := t.nodes[parentUID]; !ok {
		return ErrNotFound
	}
	if b.UID == "" {
		return ErrNotFound
	}
	if _, exists := t.nodes[b.UID]; exists {
		return ErrDuplicateUID
	}
	pn := t.nodes[parentUID]
	idx := len(pn.children)
	for i, c := range pn.children {
		if t.nodes[c].order >= b.Order {
			idx = i
			break
		}
	}
	n := &node{
		uid:       b.UID,
		text:      b.Text,
		order:     b.Order,
		collapsed: b.Collapsed,
		dirty:     true,
		rev:       1,
		refs:      markdown.RefValues(b.Text),
	}
	t.nodes[b.UID] = n
	t.insertChildAt(parentUID, n, idx)
	children := append([]model.Block(nil), b.Children...)
	sort.SliceStable(children, func(i, j int) bool { return children[i].Order < children[j].Order })
	for _, c := range children {
		t.attachSnapshot(b.UID, c)
	}
	return nil
}

// Delete detaches uid and its whole subtree, returning a deep snapshot so
// the caller (the undo history) can restore it verbatim.
func (t *Tree) Delete(uid string) (model.Block, error) {
	n, ok := t.nodes[uid]
	if !ok {
		return model.Block{}, ErrNotFound
	}
	if n.isPage {
		return model.Block{}, ErrIsPage
	}
	removed := t.snapshot(uid)
	t.detach(n)
	var drop func(string)
	drop = func(u string) {
		for _, c := range t.nodes[u].children {
			drop(c)
		}
		delete(t.nodes, u)
	}
	drop(uid)
	return removed, nil
}

// Move relocates the subtree rooted at uid under newParentUID at newOrder.
// Moves that would place a block under itself or one of its descendants are
// rejected with ErrCycle and leave the tree untouched; the cycle check is an
// ancestor walk from the target parent up to its page root.
func (t *Tree) Move(uid, newParentUID string, newOrder int) (oldParent string, oldOrder int, err error) {
	n, ok := t.nodes[uid]
	if !ok {
		return "", 0, ErrNotFound
	}
	if n.isPage {
		return "", 0, ErrIsPage
	}
	np, ok := t.nodes[newParentUID]
	if !ok {
		return "", 0, ErrNotFound
	}
	for cur := np; cur != nil; {
		if cur.uid == uid {
			return "", 0, ErrCycle
		}
		if cur.parent == "" {
			break
		}
		cur = t.nodes[cur.parent]
	}
	oldParent, oldOrder = n.parent, n.order
	t.detach(n)
	n.order = newOrder
	idx := len(np.children)
	for i, c := range np.children {
		if t.nodes[c].order >= newOrder {
			idx = i
			break
		}
	}
	t.insertChildAt(newParentUID, n, idx)
	n.dirty = true
	n.rev++
	return oldParent, oldOrder, nil
}

// SetText replaces a block's text, recomputing its derived refs. A failed
// ref parse degrades to an empty ref set; the text itself is always kept.
func (t *Tree) SetText(uid, text string) error {
	n, ok := t.nodes[uid]
	if !ok || n.isPage {
		return ErrNotFound
	}
	n.text = text
	n.refs = markdown.RefValues(text)
	n.dirty = true
	n.rev++
	return nil
}

func (t *Tree) SetCollapsed(uid string, collapsed bool) error {
	n, ok := t.nodes[uid]
	if !ok || n.isPage {
		return ErrNotFound
	}
	n.collapsed = collapsed
	return nil
}

// ClearDirty drops the dirty flag only when rev still matches the revision
// the caller observed at enqueue time. A later local mutation keeps the
// block dirty until its own write confirms.
func (t *Tree) ClearDirty(uid string, rev uint64) bool {
	n, ok := t.nodes[uid]
	if !ok || n.isPage {
		return false
	}
	if n.rev != rev {
		return false
	}
	n.dirty = false
	return true
}

// ReplaceUID renames a block in place, typically swapping a temporary uid
// for the permanent one the backend assigned on create confirmation.
func (t *Tree) ReplaceUID(oldUID, newUID string) error {
	n, ok := t.nodes[oldUID]
	if !ok || n.isPage {
		return ErrNotFound
	}
	if oldUID == newUID {
		return nil
	}
	if _, exists := t.nodes[newUID]; exists {
		return ErrDuplicateUID
	}
	delete(t.nodes, oldUID)
	n.uid = newUID
	t.nodes[newUID] = n
	p := t.nodes[n.parent]
	p.children[indexOf(p.children, oldUID)] = newUID
	for _, c := range n.children {
		t.nodes[c].parent = newUID
	}
	return nil
}

// --- Navigable view ---

// FlattenVisible is the depth-first, order-respecting traversal of one page,
// skipping subtrees under a collapsed ancestor. This is the sequence the
// rest of the program treats as the navigable list.
func (t *Tree) FlattenVisible(pageUID string) []Row {
	pn, ok := t.nodes[pageUID]
	if !ok || !pn.isPage {
		return nil
	}
	var rows []Row
	var walk func(uid string, depth int)
	walk = func(uid string, depth int) {
		n := t.nodes[uid]
		rows = append(rows, Row{
			Block:       t.shallow(n),
			PageUID:     pageUID,
			Depth:       depth,
			HasChildren: len(n.children) > 0,
		})
		if n.collapsed {
			return
		}
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	for _, c := range pn.children {
		walk(c, 0)
	}
	return rows
}

// FlattenAll concatenates the navigable views of every loaded page in load
// order.
func (t *Tree) FlattenAll() []Row {
	var rows []Row
	for _, p := range t.pageOrder {
		rows = append(rows, t.FlattenVisible(p)...)
	}
	return rows
}

// SearchBlocks returns up to limit cached blocks whose text contains the
// query, case-insensitively, in navigable order across all loaded pages.
// An empty query matches every non-empty block.
func (t *Tree) SearchBlocks(query string, limit int) []model.Candidate {
	q := strings.ToLower(query)
	var out []model.Candidate
	for _, p := range t.pageOrder {
		var walk func(uid string)
		walk = func(uid string) {
			if len(out) >= limit {
				return
			}
			n := t.nodes[uid]
			if !n.isPage && n.text != "" && (q == "" || strings.Contains(strings.ToLower(n.text), q)) {
				out = append(out, model.Candidate{UID: n.uid, Text: n.text})
			}
			for _, c := range n.children {
				walk(c)
			}
		}
		walk(p)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// --- internals ---

func (t *Tree) shallow(n *node) model.Block {
	return model.Block{
		UID:       n.uid,
		Text:      n.text,
		Order:     n.order,
		Collapsed: n.collapsed,
		Refs:      append([]string(nil), n.refs...),
		Dirty:     n.dirty,
	}
}

func (t *Tree) snapshot(uid string) model.Block {
	n := t.nodes[uid]
	b := t.shallow(n)
	for _, c := range n.children {
		b.Children = append(b.Children, t.snapshot(c))
	}
	return b
}

func (t *Tree) detach(n *node) {
	p := t.nodes[n.parent]
	if p == nil {
		return
	}
	if i := indexOf(p.children, n.uid); i >= 0 {
		p.children = append(p.children[:i], p.children[i+1:]...)
	}
	n.parent = ""
}

func (t *Tree) insertChildAt(parentUID string, n *node, idx int) {
	p := t.nodes[parentUID]
	if idx < 0 || idx > len(p.children) {
		idx = len(p.children)
	}
	p.children = append(p.children, "")
	copy(p.children[idx+1:], p.children[idx:])
	p.children[idx] = n.uid
	n.parent = parentUID
}

// reattach moves an existing node to the given parent/index, used by the
// merge to restore a dirty block's local position.
func (t *Tree) reattach(n *node, parentUID string, idx int) {
	if _, ok := t.nodes[parentUID]; !ok {
		return
	}
	t.detach(n)
	t.insertChildAt(parentUID, n, idx)
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
