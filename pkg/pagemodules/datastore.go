package pagemodules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxDataKeyLength is the longest data key, in characters, the data_key
// column holds.
const MaxDataKeyLength = 100

// DataStore manages the extension fields of module instances.
type DataStore struct {
	modules  ModuleStore
	data     ModuleDataStore
	registry *TypeRegistry
}

// NewDataStore creates a data store validating against the given registry.
func NewDataStore(modules ModuleStore, data ModuleDataStore, registry *TypeRegistry) *DataStore {
	return &DataStore{modules: modules, data: data, registry: registry}
}

// upsert writes one data value. The owning module must exist in storage and
// the value must satisfy the schema of the module's type.
func (d *DataStore) upsert(ctx context.Context, moduleID uuid.UUID, key string, value interface{}) (*ModuleData, *PageModule, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil, fmt.Errorf("%w: data key is required", ErrInvalidData)
	}
	if n := utf8.RuneCountInString(key); n > MaxDataKeyLength {
		return nil, nil, fmt.Errorf("%w: data key is %d characters, at most %d allowed", ErrInvalidData, n, MaxDataKeyLength)
	}
	module, err := d.modules.GetModule(ctx, moduleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: module %s does not exist", ErrInvalidParent, moduleID)
		}
		return nil, nil, &PersistenceError{Op: "get module", Err: err}
	}
	mt, err := d.registry.Get(ctx, module.ModuleTypeID)
	if err != nil {
		return nil, nil, err
	}
	schema, err := schemaFor(mt)
	if err != nil {
		return nil, nil, err
	}
	if err := schema.ValidateData(key, value); err != nil {
		return nil, nil, &ModuleError{ModuleID: moduleID, Op: "upsert data", Err: err}
	}

	ts := now()
	stored, err := d.data.UpsertModuleData(ctx, &ModuleData{
		ID:           uuid.New(),
		PageModuleID: moduleID,
		DataKey:      key,
		DataValue:    value,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	})
	if err != nil {
		return nil, nil, &PersistenceError{Op: "upsert module data", Err: err}
	}
	return stored, module, nil
}

// ListFor returns the data of one module keyed by data key.
func (d *DataStore) ListFor(ctx context.Context, moduleID uuid.UUID) (map[string]interface{}, error) {
	if _, err := d.modules.GetModule(ctx, moduleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("module", moduleID)
		}
		return nil, &PersistenceError{Op: "get module", Err: err}
	}
	rows, err := d.data.ListModuleData(ctx, []uuid.UUID{moduleID})
	if err != nil {
		return nil, &PersistenceError{Op: "list module data", Err: err}
	}
	out := make(map[string]interface{}, len(rows))
	for _, row := range rows {
		out[row.DataKey] = row.DataValue
	}
	return out, nil
}
