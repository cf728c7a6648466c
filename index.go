package colada

// node is one slot in the hierarchical key index. A node may hold an entry,
// children, or both. Children are kept in insertion order so enumeration
// (and therefore serialization) is deterministic. Nodes are exclusively
// owned by their parent; the tree is rooted at a single node with an empty
// path.
type node struct {
	entry    *Entry
	children map[string]*node
	order    []string
}

func newNode() *node {
	return &node{}
}

// child returns the child node for seg, creating it when create is set.
func (n *node) child(seg string, create bool) *node {
	if c, ok := n.children[seg]; ok {
		return c
	}
	if !create {
		return nil
	}
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	c := newNode()
	n.children[seg] = c
	n.order = append(n.order, seg)
	return c
}

// lookup follows path from n and returns the terminal node, or nil if any
// segment is missing.
func (n *node) lookup(path []string) *node {
	cur := n
	for _, seg := range path {
		cur = cur.child(seg, false)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// ensure follows path from n, creating intermediate nodes as needed, and
// returns the terminal node.
func (n *node) ensure(path []string) *node {
	cur := n
	for _, seg := range path {
		cur = cur.child(seg, true)
	}
	return cur
}

// walk visits n and its subtree depth-first in insertion order, reporting
// each node's full path relative to the walk root. The path slice is reused
// between visits; callers that retain it must copy.
func (n *node) walk(prefix []string, visit func(path []string, n *node)) {
	visit(prefix, n)
	for _, seg := range n.order {
		n.children[seg].walk(append(prefix, seg), visit)
	}
}

// prunable reports whether the node holds no entry and no children.
func (n *node) prunable() bool {
	return n.entry == nil && len(n.children) == 0
}

// prune removes the node at path if it is prunable, then unwinds, removing
// any ancestors left prunable by the removal. Returns whether this node
// itself became prunable.
func (n *node) prune(path []string) bool {
	if len(path) > 0 {
		c := n.child(path[0], false)
		if c != nil && c.prune(path[1:]) {
			n.removeChild(path[0])
		}
	}
	return n.prunable()
}

func (n *node) removeChild(seg string) {
	delete(n.children, seg)
	for i, s := range n.order {
		if s == seg {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}
