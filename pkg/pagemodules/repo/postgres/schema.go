package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS module_types (
		id UUID PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		display_name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		icon_class VARCHAR(100) NOT NULL DEFAULT '',
		schema JSONB NOT NULL DEFAULT '{}',
		template_path VARCHAR(255) NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT module_types_name_key UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS page_modules (
		id UUID PRIMARY KEY,
		content_id UUID NOT NULL,
		module_type_id UUID NOT NULL,
		parent_id UUID,
		module_order INTEGER NOT NULL DEFAULT 0,
		css_classes TEXT[] NOT NULL DEFAULT '{}',
		custom_attributes JSONB NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT page_modules_module_type_fkey FOREIGN KEY (module_type_id) REFERENCES module_types(id),
		CONSTRAINT page_modules_parent_fkey FOREIGN KEY (parent_id) REFERENCES page_modules(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_page_modules_content ON page_modules (content_id, parent_id, module_order)`,
	`CREATE TABLE IF NOT EXISTS module_data (
		id UUID PRIMARY KEY,
		page_module_id UUID NOT NULL,
		data_key VARCHAR(100) NOT NULL,
		data_value JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT module_data_page_module_fkey FOREIGN KEY (page_module_id) REFERENCES page_modules(id) ON DELETE CASCADE,
		CONSTRAINT module_data_module_key UNIQUE (page_module_id, data_key)
	)`,
}

// EnsureSchema creates the module tables in the current search_path when
// they do not exist. The content table belongs to its own collaborator and
// is not created here.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
