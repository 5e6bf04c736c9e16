package pagemodules

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface of the module composition engine
type Service interface {
	// Module type catalog
	ListActiveModuleTypes(ctx context.Context) ([]*ModuleType, error)
	ListModuleTypes(ctx context.Context, req ListModuleTypesRequest) ([]*ModuleType, error)
	GetModuleType(ctx context.Context, id uuid.UUID) (*ModuleType, error)

	// Editing sessions
	GetTree(ctx context.Context, contentID uuid.UUID) (*Tree, error)
	ReloadTree(ctx context.Context, contentID uuid.UUID) (*Tree, error)
	CloseSession(contentID uuid.UUID)
	GetModule(ctx context.Context, contentID, moduleID uuid.UUID) (*Node, error)

	// Structural mutations. A failed reorder batch returns the reloaded tree
	// together with a *ReorderError.
	ApplyInsert(ctx context.Context, req InsertModuleRequest) (*Node, *Tree, error)
	ApplyRemove(ctx context.Context, req RemoveModuleRequest) (*Tree, error)
	ApplyMove(ctx context.Context, req MoveModuleRequest) (*Tree, error)
	ApplyAttributeEdit(ctx context.Context, req EditAttributesRequest) (*Tree, error)

	// Module data
	UpsertModuleData(ctx context.Context, req UpsertModuleDataRequest) (*ModuleData, error)
	ListModuleData(ctx context.Context, moduleID uuid.UUID) (map[string]interface{}, error)

	// Renderer hand-off
	PublishTree(ctx context.Context, contentID uuid.UUID) error
}
