package pagemodules

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// rootKey indexes the root sibling group in Tree.children.
var rootKey = uuid.Nil

// Node is one module of a tree with its resolved type and data.
type Node struct {
	Module PageModule
	Type   *ModuleType
	Data   map[string]interface{}
}

// Tree is the ordered, nested module composition of one content entity.
//
// Nodes are stored flat and hold their parent identifier; a child index keyed
// by parent (uuid.Nil for the root group) gives ordered child access. A Tree is
// treated as an immutable value: mutations return a new Tree and leave the
// receiver untouched, so a tree handed to a caller never changes under it.
type Tree struct {
	contentID uuid.UUID
	nodes     map[uuid.UUID]*Node
	children  map[uuid.UUID][]uuid.UUID
}

// NewTree returns an empty tree for a content entity.
func NewTree(contentID uuid.UUID) *Tree {
	return &Tree{
		contentID: contentID,
		nodes:     make(map[uuid.UUID]*Node),
		children:  make(map[uuid.UUID][]uuid.UUID),
	}
}

// BuildTree assembles a tree from persisted rows. Children are sorted by order
// ascending; gaps and duplicates in stored orders are kept as they are.
// Modules belonging to other content are rejected. A module whose parent is
// not part of the set is placed in the root group and reported in orphans.
func BuildTree(contentID uuid.UUID, modules []*PageModule, data []*ModuleData, types map[uuid.UUID]*ModuleType) (tree *Tree, orphans []uuid.UUID, err error) {
	t := NewTree(contentID)
	for _, m := range modules {
		if m.ContentID != contentID {
			return nil, nil, fmt.Errorf("%w: module %s belongs to content %s", ErrInvalidParent, m.ID, m.ContentID)
		}
		t.nodes[m.ID] = &Node{
			Module: cloneModule(*m),
			Type:   types[m.ModuleTypeID],
			Data:   make(map[string]interface{}),
		}
	}
	for _, d := range data {
		if n, ok := t.nodes[d.PageModuleID]; ok {
			n.Data[d.DataKey] = d.DataValue
		}
	}
	for id, n := range t.nodes {
		key := rootKey
		if n.Module.ParentID != nil {
			if _, ok := t.nodes[*n.Module.ParentID]; ok {
				key = *n.Module.ParentID
			} else {
				orphans = append(orphans, id)
				n.Module.ParentID = nil
			}
		}
		t.children[key] = append(t.children[key], id)
	}
	for key := range t.children {
		t.sortGroup(key)
	}
	if reached := len(t.Walk()); reached != len(t.nodes) {
		return nil, nil, fmt.Errorf("%w: %d modules of content %s form a parent cycle", ErrInvalidParent, len(t.nodes)-reached, contentID)
	}
	return t, orphans, nil
}

func (t *Tree) sortGroup(key uuid.UUID) {
	ids := t.children[key]
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := t.nodes[ids[i]].Module, t.nodes[ids[j]].Module
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// ContentID returns the owning content entity.
func (t *Tree) ContentID() uuid.UUID {
	return t.contentID
}

// Len returns the number of modules in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns a copy of the node with the given id.
func (t *Tree) Node(id uuid.UUID) (*Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, false
	}
	return n.clone(), true
}

// Children returns copies of the children of parent in order. A nil parent
// selects the root group.
func (t *Tree) Children(parent *uuid.UUID) []*Node {
	ids := t.children[groupKey(parent)]
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.nodes[id].clone())
	}
	return out
}

// Roots returns the root group in order.
func (t *Tree) Roots() []*Node {
	return t.Children(nil)
}

// Walk returns every module id reachable from the root group, pre-order.
func (t *Tree) Walk() []uuid.UUID {
	var out []uuid.UUID
	var visit func(key uuid.UUID)
	visit = func(key uuid.UUID) {
		for _, id := range t.children[key] {
			out = append(out, id)
			visit(id)
		}
	}
	visit(rootKey)
	return out
}

// Descendants returns the ids of every descendant of id, pre-order.
func (t *Tree) Descendants(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	var visit func(key uuid.UUID)
	visit = func(key uuid.UUID) {
		for _, child := range t.children[key] {
			out = append(out, child)
			visit(child)
		}
	}
	visit(id)
	return out
}

// IsAncestor reports whether ancestor appears on the parent chain of id.
func (t *Tree) IsAncestor(ancestor, id uuid.UUID) bool {
	n, ok := t.nodes[id]
	for steps := 0; ok && n.Module.ParentID != nil && steps <= len(t.nodes); steps++ {
		if *n.Module.ParentID == ancestor {
			return true
		}
		n, ok = t.nodes[*n.Module.ParentID]
	}
	return false
}

// Snapshot returns the nested view of the tree.
func (t *Tree) Snapshot() *TreeSnapshot {
	var build func(key uuid.UUID) []*NodeSnapshot
	build = func(key uuid.UUID) []*NodeSnapshot {
		ids := t.children[key]
		out := make([]*NodeSnapshot, 0, len(ids))
		for _, id := range ids {
			n := t.nodes[id].clone()
			out = append(out, &NodeSnapshot{
				PageModule: n.Module,
				ModuleType: n.Type,
				Data:       n.Data,
				Children:   build(id),
			})
		}
		return out
	}
	return &TreeSnapshot{ContentID: t.contentID, Modules: build(rootKey)}
}

// Clone returns a deep copy of the tree structure. Module types are shared.
func (t *Tree) Clone() *Tree {
	out := &Tree{
		contentID: t.contentID,
		nodes:     make(map[uuid.UUID]*Node, len(t.nodes)),
		children:  make(map[uuid.UUID][]uuid.UUID, len(t.children)),
	}
	for id, n := range t.nodes {
		out.nodes[id] = n.clone()
	}
	for key, ids := range t.children {
		out.children[key] = append([]uuid.UUID(nil), ids...)
	}
	return out
}

func (n *Node) clone() *Node {
	out := &Node{
		Module: cloneModule(n.Module),
		Type:   n.Type,
		Data:   make(map[string]interface{}, len(n.Data)),
	}
	for k, v := range n.Data {
		out.Data[k] = v
	}
	return out
}

func groupKey(parent *uuid.UUID) uuid.UUID {
	if parent == nil {
		return rootKey
	}
	return *parent
}
