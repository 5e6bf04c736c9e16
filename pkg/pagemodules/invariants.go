package pagemodules

import (
	"fmt"

	"github.com/google/uuid"
)

// Validate checks the structural invariants of the tree: every module belongs
// to the tree's content, every parent exists, the parent relation is acyclic,
// and every sibling group is ordered 0..n-1 without duplicates.
//
// Trees loaded from storage may legitimately fail the ordering check after a
// partially failed reorder; trees produced by Insert, Remove and Move never do.
func (t *Tree) Validate() error {
	for id, n := range t.nodes {
		if n.Module.ID != id {
			return fmt.Errorf("node indexed as %s holds module %s", id, n.Module.ID)
		}
		if n.Module.ContentID != t.contentID {
			return fmt.Errorf("%w: module %s belongs to content %s", ErrInvalidParent, id, n.Module.ContentID)
		}
		if n.Module.ParentID != nil {
			if _, ok := t.nodes[*n.Module.ParentID]; !ok {
				return fmt.Errorf("%w: module %s references missing parent %s", ErrInvalidParent, id, *n.Module.ParentID)
			}
		}
	}
	if reached := len(t.Walk()); reached != len(t.nodes) {
		return fmt.Errorf("%w: %d modules unreachable from the root group", ErrInvalidParent, len(t.nodes)-reached)
	}
	for key, ids := range t.children {
		for i, id := range ids {
			n := t.nodes[id]
			if groupKey(n.Module.ParentID) != key {
				return fmt.Errorf("module %s indexed under %s but has parent %v", id, key, n.Module.ParentID)
			}
			if n.Module.Order != i {
				return fmt.Errorf("sibling group %s is not contiguous: module %s at index %d has order %d", groupLabel(key), id, i, n.Module.Order)
			}
		}
	}
	return nil
}

func groupLabel(key uuid.UUID) string {
	if key == rootKey {
		return "root"
	}
	return key.String()
}
