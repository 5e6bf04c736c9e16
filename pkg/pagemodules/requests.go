package pagemodules

import "github.com/google/uuid"

// Request DTOs

// ListModuleTypesRequest contains parameters for listing the type catalog
type ListModuleTypesRequest struct {
	IsActive *bool
	Skip     int
	Limit    int
}

// InsertModuleRequest contains parameters for placing a new module.
//
// A nil ParentID targets the root group. Position is the zero-based index in
// the target sibling group; it is clamped to [0, sibling count], so a large
// value appends. ID is optional and generated when zero. IsActive defaults to
// true.
type InsertModuleRequest struct {
	ContentID        uuid.UUID
	ID               uuid.UUID
	ParentID         *uuid.UUID
	ModuleTypeID     uuid.UUID
	Position         int
	CSSClasses       []string
	CustomAttributes map[string]interface{}
	IsActive         *bool
}

// RemoveModuleRequest contains parameters for removing a module and its subtree
type RemoveModuleRequest struct {
	ContentID uuid.UUID
	ModuleID  uuid.UUID
}

// MoveModuleRequest contains parameters for a drag-and-drop move
type MoveModuleRequest struct {
	ContentID   uuid.UUID
	ModuleID    uuid.UUID
	NewParentID *uuid.UUID
	Position    int
}

// EditAttributesRequest contains parameters for a partial attribute edit
type EditAttributesRequest struct {
	ContentID uuid.UUID
	ModuleID  uuid.UUID
	Edit      AttributeEdit
}

// UpsertModuleDataRequest contains parameters for writing one data value
type UpsertModuleDataRequest struct {
	ModuleID uuid.UUID
	Key      string
	Value    interface{}
}
