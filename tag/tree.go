package tag

import "slices"

// NodeID addresses a node inside a Tree.
type NodeID int32

const (
	// Root is the id of the implicit root node (tag None).
	Root NodeID = 0
	// NoNode marks a missing node.
	NoNode NodeID = -1
)

type node struct {
	tag      Tag
	parent   NodeID
	children []NodeID
}

// Tree is an arena of tag nodes addressed by integer id. Nodes never own each
// other; parent/child relations are plain indices into the arena, so a Tree
// can be rebuilt, copied or discarded without cyclic references.
//
// Children are kept in taxonomy (string) order. Removed nodes are unlinked
// from their parent and their ids are not reused.
type Tree struct {
	nodes []node
	byTag map[Tag]NodeID
}

// NewTree builds a tree holding tags and all of their ancestors.
func NewTree(tags ...Tag) *Tree {
	t := &Tree{
		nodes: []node{{tag: None, parent: NoNode}},
		byTag: map[Tag]NodeID{None: Root},
	}
	for _, tg := range tags {
		t.Insert(tg)
	}
	return t
}

// Insert adds tg and any missing ancestors, returning the node of tg.
// Malformed tags return NoNode.
func (t *Tree) Insert(tg Tag) NodeID {
	if !tg.Valid() {
		return NoNode
	}
	if id, ok := t.byTag[tg]; ok {
		return id
	}
	parent := Root
	if p := tg.Parent(); p != None {
		parent = t.Insert(p)
	}

	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{tag: tg, parent: parent})
	t.byTag[tg] = id

	siblings := t.nodes[parent].children
	pos, _ := slices.BinarySearchFunc(siblings, tg, func(n NodeID, target Tag) int {
		return Compare(t.nodes[n].tag, target)
	})
	t.nodes[parent].children = slices.Insert(siblings, pos, id)
	return id
}

// Remove unlinks the node of tg and its whole subtree.
func (t *Tree) Remove(tg Tag) bool {
	id, ok := t.byTag[tg]
	if !ok || id == Root {
		return false
	}
	t.Walk(id, func(n NodeID) bool {
		delete(t.byTag, t.nodes[n].tag)
		return true
	})
	parent := t.nodes[id].parent
	t.nodes[parent].children = slices.DeleteFunc(t.nodes[parent].children, func(n NodeID) bool { return n == id })
	t.nodes[id].parent = NoNode
	return true
}

// Find returns the node of tg.
func (t *Tree) Find(tg Tag) (NodeID, bool) {
	id, ok := t.byTag[tg]
	return id, ok
}

// Tag returns the tag of a node.
func (t *Tree) Tag(id NodeID) Tag {
	return t.nodes[id].tag
}

// Parent returns the parent node, NoNode for the root.
func (t *Tree) Parent(id NodeID) NodeID {
	return t.nodes[id].parent
}

// HasValidParent reports whether the node has a parent other than the root.
func (t *Tree) HasValidParent(id NodeID) bool {
	p := t.nodes[id].parent
	return p != NoNode && p != Root
}

// Children returns the direct children of a node in taxonomy order.
// The returned slice must not be modified.
func (t *Tree) Children(id NodeID) []NodeID {
	return t.nodes[id].children
}

// Len returns the number of live, non-root nodes.
func (t *Tree) Len() int {
	return len(t.byTag) - 1
}

// Walk visits id and, for every visit returning true, its subtree in
// depth-first pre-order.
func (t *Tree) Walk(id NodeID, visit func(NodeID) bool) {
	if visit(id) {
		t.WalkChildren(id, visit)
	}
}

// WalkChildren walks every child subtree of id, skipping id itself.
func (t *Tree) WalkChildren(id NodeID, visit func(NodeID) bool) {
	for _, c := range t.nodes[id].children {
		t.Walk(c, visit)
	}
}

// Preorder returns every live non-root node in depth-first pre-order, so each
// node appears after all of its ancestors.
func (t *Tree) Preorder() []NodeID {
	out := make([]NodeID, 0, t.Len())
	t.WalkChildren(Root, func(n NodeID) bool {
		out = append(out, n)
		return true
	})
	return out
}
