package pagemodules

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// treeLoader reads the authoritative tree of a content entity from storage.
type treeLoader struct {
	content  ContentChecker
	modules  ModuleStore
	data     ModuleDataStore
	registry *TypeRegistry
	logger   *slog.Logger
}

// Load fetches every module of the content entity with its data and type and
// assembles the tree. A content entity without modules yields an empty tree.
func (l *treeLoader) Load(ctx context.Context, contentID uuid.UUID) (*Tree, error) {
	exists, err := l.content.ContentExists(ctx, contentID)
	if err != nil {
		return nil, &PersistenceError{Op: "check content", Err: err}
	}
	if !exists {
		return nil, notFound("content", contentID)
	}

	modules, err := l.modules.ListModulesByContent(ctx, contentID)
	if err != nil {
		return nil, &PersistenceError{Op: "list modules", Err: err}
	}
	var data []*ModuleData
	if len(modules) > 0 {
		ids := make([]uuid.UUID, 0, len(modules))
		for _, m := range modules {
			ids = append(ids, m.ID)
		}
		if data, err = l.data.ListModuleData(ctx, ids); err != nil {
			return nil, &PersistenceError{Op: "list module data", Err: err}
		}
	}
	types, err := l.registry.index(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		if _, ok := types[m.ModuleTypeID]; !ok {
			l.logger.Warn("module references unknown module type",
				"content_id", contentID, "module_id", m.ID, "module_type_id", m.ModuleTypeID)
		}
	}

	tree, orphans, err := BuildTree(contentID, modules, data, types)
	if err != nil {
		return nil, err
	}
	for _, id := range orphans {
		l.logger.Warn("module parent missing, placed at root", "content_id", contentID, "module_id", id)
	}
	l.logger.Debug("tree loaded", "content_id", contentID, "modules", tree.Len())
	return tree, nil
}
