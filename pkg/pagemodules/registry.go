package pagemodules

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Listing limits for the module type catalog.
const (
	DefaultTypeListLimit = 50
	MaxTypeListLimit     = 100
)

// TypeRegistry is the read-only view of the module type catalog used to
// validate type references.
type TypeRegistry struct {
	store TypeStore
}

// NewTypeRegistry wraps a type store.
func NewTypeRegistry(store TypeStore) *TypeRegistry {
	return &TypeRegistry{store: store}
}

// ListActive returns every active module type in palette order.
func (r *TypeRegistry) ListActive(ctx context.Context) ([]*ModuleType, error) {
	active := true
	types, err := r.store.ListModuleTypes(ctx, ModuleTypeFilter{IsActive: &active})
	if err != nil {
		return nil, &PersistenceError{Op: "list module types", Err: err}
	}
	sortTypes(types)
	return types, nil
}

// List returns one page of the catalog in palette order. A non-positive limit
// selects DefaultTypeListLimit; limits above MaxTypeListLimit are capped.
func (r *TypeRegistry) List(ctx context.Context, filter ModuleTypeFilter) ([]*ModuleType, error) {
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultTypeListLimit
	case filter.Limit > MaxTypeListLimit:
		filter.Limit = MaxTypeListLimit
	}
	types, err := r.store.ListModuleTypes(ctx, filter)
	if err != nil {
		return nil, &PersistenceError{Op: "list module types", Err: err}
	}
	sortTypes(types)
	return types, nil
}

// Get returns a module type by id, active or not.
func (r *TypeRegistry) Get(ctx context.Context, id uuid.UUID) (*ModuleType, error) {
	mt, err := r.store.GetModuleType(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("module type", id)
		}
		return nil, &PersistenceError{Op: "get module type", Err: err}
	}
	return mt, nil
}

// ResolveForPlacement returns the module type for a new placement. Unknown and
// inactive types fail with ErrInvalidType.
func (r *TypeRegistry) ResolveForPlacement(ctx context.Context, id uuid.UUID) (*ModuleType, error) {
	mt, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown module type %s", ErrInvalidType, id)
	}
	if err != nil {
		return nil, err
	}
	if !mt.IsActive {
		return nil, fmt.Errorf("%w: module type %s is not active", ErrInvalidType, mt.Name)
	}
	return mt, nil
}

// index returns every catalog entry keyed by id.
func (r *TypeRegistry) index(ctx context.Context) (map[uuid.UUID]*ModuleType, error) {
	types, err := r.store.ListModuleTypes(ctx, ModuleTypeFilter{})
	if err != nil {
		return nil, &PersistenceError{Op: "list module types", Err: err}
	}
	out := make(map[uuid.UUID]*ModuleType, len(types))
	for _, mt := range types {
		out[mt.ID] = mt
	}
	return out, nil
}

func sortTypes(types []*ModuleType) {
	sort.SliceStable(types, func(i, j int) bool {
		if types[i].SortOrder != types[j].SortOrder {
			return types[i].SortOrder < types[j].SortOrder
		}
		return types[i].DisplayName < types[j].DisplayName
	})
}
