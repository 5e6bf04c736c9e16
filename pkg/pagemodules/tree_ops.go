package pagemodules

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var now = func() time.Time { return time.Now().UTC() }

// Mutation is the result of a structural edit of a Tree.
type Mutation struct {
	// Tree is the tree after the edit.
	Tree *Tree

	// Created is set by Insert.
	Created *PageModule

	// Updated is set by SetAttributes.
	Updated *PageModule

	// Removed lists the deleted module and its descendants, pre-order.
	Removed []uuid.UUID

	// Placements lists every surviving, pre-existing module whose parent or
	// order changed.
	Placements []Placement
}

// AttributeEdit is a partial update of a module's presentation attributes.
// Nil fields are left unchanged; an empty non-nil slice or map clears the
// value.
type AttributeEdit struct {
	CSSClasses       []string
	CustomAttributes map[string]interface{}
	IsActive         *bool
}

// Insert places module in the sibling group of module.ParentID at position and
// renumbers the group. typ must be the active type referenced by the module.
// A zero module ID is replaced by a new one.
func (t *Tree) Insert(module PageModule, typ *ModuleType, position int) (*Mutation, error) {
	if typ == nil || typ.ID != module.ModuleTypeID {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, module.ModuleTypeID)
	}
	if !typ.IsActive {
		return nil, fmt.Errorf("%w: %s is not active", ErrInvalidType, typ.Name)
	}
	if module.ID == uuid.Nil {
		module.ID = uuid.New()
	}
	if _, exists := t.nodes[module.ID]; exists {
		return nil, fmt.Errorf("module %s already exists in content %s", module.ID, t.contentID)
	}
	if module.ContentID == uuid.Nil {
		module.ContentID = t.contentID
	}
	if module.ContentID != t.contentID {
		return nil, fmt.Errorf("%w: module targets content %s, tree is %s", ErrInvalidParent, module.ContentID, t.contentID)
	}
	if err := t.checkParent(module.ParentID); err != nil {
		return nil, err
	}

	out := t.Clone()
	key := groupKey(module.ParentID)
	ids := out.children[key]
	position = clamp(position, len(ids))

	ts := now()
	if module.CreatedAt.IsZero() {
		module.CreatedAt = ts
	}
	module.UpdatedAt = ts
	module.Order = position
	module.CSSClasses = NormalizeCSSClasses(module.CSSClasses)
	if module.CustomAttributes == nil {
		module.CustomAttributes = map[string]interface{}{}
	}
	out.nodes[module.ID] = &Node{Module: cloneModule(module), Type: typ, Data: map[string]interface{}{}}
	out.children[key] = insertAt(ids, position, module.ID)
	out.renumber(key)

	created := cloneModule(out.nodes[module.ID].Module)
	return &Mutation{
		Tree:       out,
		Created:    &created,
		Placements: placementsChanged(t, out),
	}, nil
}

// Remove deletes the module and its entire subtree, then closes the gap in
// the former sibling group.
func (t *Tree) Remove(id uuid.UUID) (*Mutation, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, notFound("module", id)
	}
	removed := append([]uuid.UUID{id}, t.Descendants(id)...)

	out := t.Clone()
	for _, rid := range removed {
		delete(out.nodes, rid)
		delete(out.children, rid)
	}
	key := groupKey(n.Module.ParentID)
	out.children[key] = without(out.children[key], id)
	out.renumber(key)

	return &Mutation{
		Tree:       out,
		Removed:    removed,
		Placements: placementsChanged(t, out),
	}, nil
}

// Move detaches the module from its sibling group and inserts it under
// newParent at position. Both groups are renumbered in the same edit. Moving a
// module under itself or one of its descendants fails with ErrInvalidParent.
func (t *Tree) Move(id uuid.UUID, newParent *uuid.UUID, position int) (*Mutation, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, notFound("module", id)
	}
	if newParent != nil {
		if *newParent == id {
			return nil, fmt.Errorf("%w: module %s cannot be its own parent", ErrInvalidParent, id)
		}
		if err := t.checkParent(newParent); err != nil {
			return nil, err
		}
		if t.IsAncestor(id, *newParent) {
			return nil, fmt.Errorf("%w: %s is a descendant of %s", ErrInvalidParent, *newParent, id)
		}
	}

	out := t.Clone()
	oldKey, newKey := groupKey(n.Module.ParentID), groupKey(newParent)
	out.children[oldKey] = without(out.children[oldKey], id)
	ids := out.children[newKey]
	position = clamp(position, len(ids))
	out.children[newKey] = insertAt(ids, position, id)
	out.nodes[id].Module.ParentID = cloneParentID(newParent)
	out.renumber(oldKey)
	out.renumber(newKey)

	return &Mutation{
		Tree:       out,
		Placements: placementsChanged(t, out),
	}, nil
}

// SetAttributes applies a partial attribute edit. It has no ordering effect.
func (t *Tree) SetAttributes(id uuid.UUID, edit AttributeEdit) (*Mutation, error) {
	if _, ok := t.nodes[id]; !ok {
		return nil, notFound("module", id)
	}
	out := t.Clone()
	m := &out.nodes[id].Module
	if edit.CSSClasses != nil {
		m.CSSClasses = NormalizeCSSClasses(edit.CSSClasses)
	}
	if edit.CustomAttributes != nil {
		m.CustomAttributes = make(map[string]interface{}, len(edit.CustomAttributes))
		for k, v := range edit.CustomAttributes {
			m.CustomAttributes[k] = v
		}
	}
	if edit.IsActive != nil {
		m.IsActive = *edit.IsActive
	}
	m.UpdatedAt = now()

	updated := cloneModule(*m)
	return &Mutation{Tree: out, Updated: &updated}, nil
}

// withData returns a copy of the tree with one data value of a module set.
func (t *Tree) withData(moduleID uuid.UUID, key string, value interface{}) *Tree {
	if _, ok := t.nodes[moduleID]; !ok {
		return t
	}
	out := t.Clone()
	out.nodes[moduleID].Data[key] = value
	return out
}

func (t *Tree) checkParent(parent *uuid.UUID) error {
	if parent == nil {
		return nil
	}
	p, ok := t.nodes[*parent]
	if !ok {
		return fmt.Errorf("%w: %s is not a module of content %s", ErrInvalidParent, *parent, t.contentID)
	}
	if p.Module.ContentID != t.contentID {
		return fmt.Errorf("%w: %s belongs to content %s", ErrInvalidParent, *parent, p.Module.ContentID)
	}
	return nil
}

// renumber assigns contiguous zero-based orders to a sibling group in its
// current sequence.
func (t *Tree) renumber(key uuid.UUID) {
	ids := t.children[key]
	if len(ids) == 0 {
		delete(t.children, key)
		return
	}
	ts := now()
	for i, id := range ids {
		m := &t.nodes[id].Module
		if m.Order != i {
			m.Order = i
			m.UpdatedAt = ts
		}
	}
}

// placementsChanged lists modules present in both trees whose parent or order
// differs, in pre-order of the after tree.
func placementsChanged(before, after *Tree) []Placement {
	var out []Placement
	for _, id := range after.Walk() {
		prev, ok := before.nodes[id]
		if !ok {
			continue
		}
		cur := after.nodes[id].Module
		if prev.Module.Order != cur.Order || !sameParent(prev.Module.ParentID, cur.ParentID) {
			out = append(out, Placement{ModuleID: id, ParentID: cloneParentID(cur.ParentID), Order: cur.Order})
		}
	}
	return out
}

func clamp(position, size int) int {
	if position < 0 {
		return 0
	}
	if position > size {
		return size
	}
	return position
}

func insertAt(ids []uuid.UUID, position int, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids)+1)
	out = append(out, ids[:position]...)
	out = append(out, id)
	return append(out, ids[position:]...)
}

func without(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
