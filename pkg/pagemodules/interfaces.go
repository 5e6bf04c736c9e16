package pagemodules

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// TypeStore reads the module type catalog. Writes to the catalog belong to an
// external collaborator.
type TypeStore interface {
	ListModuleTypes(ctx context.Context, filter ModuleTypeFilter) ([]*ModuleType, error)
	GetModuleType(ctx context.Context, id uuid.UUID) (*ModuleType, error)
}

// ContentChecker answers whether a content entity exists.
type ContentChecker interface {
	ContentExists(ctx context.Context, contentID uuid.UUID) (bool, error)
}

// ModuleStore persists page modules. Each call is independently atomic; no
// multi-row transaction is assumed.
type ModuleStore interface {
	ListModulesByContent(ctx context.Context, contentID uuid.UUID) ([]*PageModule, error)
	GetModule(ctx context.Context, id uuid.UUID) (*PageModule, error)
	CreateModule(ctx context.Context, module *PageModule) error
	UpdateModule(ctx context.Context, module *PageModule) error

	// DeleteModuleTree deletes the module, every descendant, and their data.
	// It returns the number of modules deleted.
	DeleteModuleTree(ctx context.Context, id uuid.UUID) (int64, error)
}

// ModuleDataStore persists module data rows.
type ModuleDataStore interface {
	ListModuleData(ctx context.Context, moduleIDs []uuid.UUID) ([]*ModuleData, error)

	// UpsertModuleData replaces the value of an existing (page_module_id,
	// data_key) pair or creates a new row, and returns the stored row.
	UpsertModuleData(ctx context.Context, data *ModuleData) (*ModuleData, error)
}

// Repository defines the persistence API consumed by the engine
type Repository interface {
	TypeStore
	ContentChecker
	ModuleStore
	ModuleDataStore
}

// EventSink defines the interface for domain event handling
type EventSink interface {
	// ModuleInserted is fired when a module is created
	ModuleInserted(ctx context.Context, module *PageModule) error

	// ModuleRemoved is fired when a module and its subtree are deleted
	ModuleRemoved(ctx context.Context, contentID uuid.UUID, removed []uuid.UUID) error

	// ModulesReordered is fired when a batch of placements is confirmed
	ModulesReordered(ctx context.Context, contentID uuid.UUID, placements []Placement) error

	// ModuleUpdated is fired when module attributes change
	ModuleUpdated(ctx context.Context, module *PageModule) error

	// ModuleDataUpserted is fired when a data row is written
	ModuleDataUpserted(ctx context.Context, data *ModuleData) error

	// ReorderFailed is fired when a batch failed and the tree was reloaded
	ReorderFailed(ctx context.Context, contentID uuid.UUID, cause error) error
}

// SnapshotStore is a blob store receiving published tree snapshots
type SnapshotStore interface {
	// Put writes the snapshot under key, replacing any previous one
	Put(ctx context.Context, key string, reader io.Reader) error

	// Get reads the snapshot stored under key
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the snapshot stored under key
	Delete(ctx context.Context, key string) error
}
