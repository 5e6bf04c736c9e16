package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/page-modules/pkg/pagemodules"
)

// Repository implements pagemodules.Repository using in-memory storage. It
// also plays the content-entity and type-catalog collaborators through
// RegisterContent and SaveModuleType.
type Repository struct {
	mu       sync.RWMutex
	contents map[uuid.UUID]struct{}
	types    map[uuid.UUID]*pagemodules.ModuleType
	modules  map[uuid.UUID]*pagemodules.PageModule
	data     map[uuid.UUID]map[string]*pagemodules.ModuleData // page_module_id -> data_key -> row
}

var _ pagemodules.Repository = (*Repository)(nil)

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		contents: make(map[uuid.UUID]struct{}),
		types:    make(map[uuid.UUID]*pagemodules.ModuleType),
		modules:  make(map[uuid.UUID]*pagemodules.PageModule),
		data:     make(map[uuid.UUID]map[string]*pagemodules.ModuleData),
	}
}

// Collaborator fixtures

// RegisterContent marks a content entity as existing
func (r *Repository) RegisterContent(contentID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contents[contentID] = struct{}{}
}

// SaveModuleType creates or replaces a catalog entry
func (r *Repository) SaveModuleType(mt *pagemodules.ModuleType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	typeCopy := *mt
	r.types[mt.ID] = &typeCopy
}

// Content operations

func (r *Repository) ContentExists(ctx context.Context, contentID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.contents[contentID]
	return ok, nil
}

// Module type operations

func (r *Repository) ListModuleTypes(ctx context.Context, filter pagemodules.ModuleTypeFilter) ([]*pagemodules.ModuleType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*pagemodules.ModuleType
	for _, mt := range r.types {
		if filter.IsActive != nil && mt.IsActive != *filter.IsActive {
			continue
		}
		typeCopy := *mt
		result = append(result, &typeCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].DisplayName < result[j].DisplayName
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*pagemodules.ModuleType{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *Repository) GetModuleType(ctx context.Context, id uuid.UUID) (*pagemodules.ModuleType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mt, exists := r.types[id]
	if !exists {
		return nil, fmt.Errorf("module type %s: %w", id, pagemodules.ErrNotFound)
	}
	typeCopy := *mt
	return &typeCopy, nil
}

// Module operations

func (r *Repository) ListModulesByContent(ctx context.Context, contentID uuid.UUID) ([]*pagemodules.PageModule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*pagemodules.PageModule
	for _, m := range r.modules {
		if m.ContentID == contentID {
			result = append(result, copyModule(m))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *Repository) GetModule(ctx context.Context, id uuid.UUID) (*pagemodules.PageModule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.modules[id]
	if !exists {
		return nil, fmt.Errorf("module %s: %w", id, pagemodules.ErrNotFound)
	}
	return copyModule(m), nil
}

func (r *Repository) CreateModule(ctx context.Context, module *pagemodules.PageModule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[module.ID]; exists {
		return fmt.Errorf("module %s already exists", module.ID)
	}
	if err := r.checkReferences(module); err != nil {
		return err
	}
	r.modules[module.ID] = copyModule(module)
	return nil
}

func (r *Repository) UpdateModule(ctx context.Context, module *pagemodules.PageModule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[module.ID]; !exists {
		return fmt.Errorf("module %s: %w", module.ID, pagemodules.ErrNotFound)
	}
	if err := r.checkReferences(module); err != nil {
		return err
	}
	r.modules[module.ID] = copyModule(module)
	return nil
}

func (r *Repository) DeleteModuleTree(ctx context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[id]; !exists {
		return 0, fmt.Errorf("module %s: %w", id, pagemodules.ErrNotFound)
	}

	doomed := map[uuid.UUID]struct{}{id: {}}
	for grew := true; grew; {
		grew = false
		for mid, m := range r.modules {
			if _, done := doomed[mid]; done || m.ParentID == nil {
				continue
			}
			if _, parentDoomed := doomed[*m.ParentID]; parentDoomed {
				doomed[mid] = struct{}{}
				grew = true
			}
		}
	}
	for mid := range doomed {
		delete(r.modules, mid)
		delete(r.data, mid)
	}
	return int64(len(doomed)), nil
}

// Module data operations

func (r *Repository) ListModuleData(ctx context.Context, moduleIDs []uuid.UUID) ([]*pagemodules.ModuleData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*pagemodules.ModuleData
	for _, mid := range moduleIDs {
		for _, d := range r.data[mid] {
			dataCopy := *d
			result = append(result, &dataCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].PageModuleID != result[j].PageModuleID {
			return result[i].PageModuleID.String() < result[j].PageModuleID.String()
		}
		return result[i].DataKey < result[j].DataKey
	})
	return result, nil
}

func (r *Repository) UpsertModuleData(ctx context.Context, data *pagemodules.ModuleData) (*pagemodules.ModuleData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[data.PageModuleID]; !exists {
		return nil, fmt.Errorf("module %s: %w", data.PageModuleID, pagemodules.ErrInvalidParent)
	}

	dataCopy := *data
	rows := r.data[data.PageModuleID]
	if rows == nil {
		rows = make(map[string]*pagemodules.ModuleData)
		r.data[data.PageModuleID] = rows
	}
	if existing, ok := rows[data.DataKey]; ok {
		dataCopy.ID = existing.ID
		dataCopy.CreatedAt = existing.CreatedAt
	}
	rows[data.DataKey] = &dataCopy

	out := dataCopy
	return &out, nil
}

// checkReferences enforces the foreign keys a relational store would.
func (r *Repository) checkReferences(module *pagemodules.PageModule) error {
	if _, ok := r.contents[module.ContentID]; !ok {
		return fmt.Errorf("content %s: %w", module.ContentID, pagemodules.ErrNotFound)
	}
	if _, ok := r.types[module.ModuleTypeID]; !ok {
		return fmt.Errorf("module type %s: %w", module.ModuleTypeID, pagemodules.ErrInvalidType)
	}
	if module.ParentID != nil {
		parent, ok := r.modules[*module.ParentID]
		if !ok || parent.ContentID != module.ContentID {
			return fmt.Errorf("parent %s: %w", *module.ParentID, pagemodules.ErrInvalidParent)
		}
	}
	return nil
}

func copyModule(m *pagemodules.PageModule) *pagemodules.PageModule {
	out := *m
	if m.ParentID != nil {
		parent := *m.ParentID
		out.ParentID = &parent
	}
	out.CSSClasses = append(make([]string, 0, len(m.CSSClasses)), m.CSSClasses...)
	out.CustomAttributes = make(map[string]interface{}, len(m.CustomAttributes))
	for k, v := range m.CustomAttributes {
		out.CustomAttributes[k] = v
	}
	return &out
}
