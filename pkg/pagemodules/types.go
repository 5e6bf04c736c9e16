package pagemodules

import (
	"time"

	"github.com/google/uuid"
)

// ModuleType is a registered, schema-bearing kind of content block
// (e.g. "hero", "gallery").
type ModuleType struct {
	ID           uuid.UUID              `json:"id"`
	Name         string                 `json:"name"`
	DisplayName  string                 `json:"display_name"`
	Description  string                 `json:"description,omitempty"`
	IconClass    string                 `json:"icon_class,omitempty"`
	Schema       map[string]interface{} `json:"schema"`
	TemplatePath string                 `json:"template_path,omitempty"`
	IsActive     bool                   `json:"is_active"`
	SortOrder    int                    `json:"sort_order"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// PageModule is one placed instance of a module type on one content entity.
//
// ParentID is nil for modules in the root group. Order is the zero-based rank
// of the module among its siblings.
type PageModule struct {
	ID               uuid.UUID              `json:"id"`
	ContentID        uuid.UUID              `json:"content_id"`
	ModuleTypeID     uuid.UUID              `json:"module_type_id"`
	ParentID         *uuid.UUID             `json:"parent_id,omitempty"`
	Order            int                    `json:"order"`
	CSSClasses       []string               `json:"css_classes"`
	CustomAttributes map[string]interface{} `json:"custom_attributes"`
	IsActive         bool                   `json:"is_active"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// ModuleData is an extension field attached to a PageModule. DataKey is unique
// within the owning module.
type ModuleData struct {
	ID           uuid.UUID   `json:"id"`
	PageModuleID uuid.UUID   `json:"page_module_id"`
	DataKey      string      `json:"data_key"`
	DataValue    interface{} `json:"data_value"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Placement is the position of one module after a mutation. A mutation
// reports one Placement for every module whose parent or order changed, which
// is exactly the set of rows that must be written.
type Placement struct {
	ModuleID uuid.UUID  `json:"module_id"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Order    int        `json:"order"`
}

// ModuleTypeFilter narrows a module type listing.
type ModuleTypeFilter struct {
	IsActive *bool
	Offset   int
	Limit    int
}

// TreeSnapshot is the nested, serializable view of a module tree handed to
// editing surfaces and renderers.
type TreeSnapshot struct {
	ContentID uuid.UUID       `json:"content_id"`
	Modules   []*NodeSnapshot `json:"modules"`
}

// NodeSnapshot is one module of a TreeSnapshot with its resolved type, data,
// and children sorted by order.
type NodeSnapshot struct {
	PageModule
	ModuleType *ModuleType            `json:"module_type,omitempty"`
	Data       map[string]interface{} `json:"data"`
	Children   []*NodeSnapshot        `json:"children"`
}

func cloneParentID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneModule(m PageModule) PageModule {
	out := m
	out.ParentID = cloneParentID(m.ParentID)
	if m.CSSClasses != nil {
		out.CSSClasses = append([]string(nil), m.CSSClasses...)
	}
	if m.CustomAttributes != nil {
		out.CustomAttributes = make(map[string]interface{}, len(m.CustomAttributes))
		for k, v := range m.CustomAttributes {
			out.CustomAttributes[k] = v
		}
	}
	return out
}
