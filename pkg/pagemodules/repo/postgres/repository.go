package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/page-modules/pkg/pagemodules"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DefaultContentTable is the table owned by the content-entity collaborator
const DefaultContentTable = "content"

// Repository implements pagemodules.Repository using PostgreSQL
type Repository struct {
	db           DBTX
	contentTable string
}

var _ pagemodules.Repository = (*Repository)(nil)

// Option configures a Repository
type Option func(*Repository)

// WithContentTable sets the table checked for content existence. A qualified
// "schema.table" name is accepted.
func WithContentTable(name string) Option {
	return func(r *Repository) {
		if name != "" {
			r.contentTable = name
		}
	}
}

// New creates a new PostgreSQL repository
func New(db DBTX, opts ...Option) *Repository {
	r := &Repository{db: db, contentTable: DefaultContentTable}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool, opts ...Option) *Repository {
	return New(pool, opts...)
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "module_types") {
				return fmt.Errorf("module type already exists")
			}
			if strings.Contains(pgErr.ConstraintName, "page_modules") {
				return fmt.Errorf("module already exists")
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			if strings.Contains(pgErr.ConstraintName, "module_type") {
				return fmt.Errorf("%s: %w", operation, pagemodules.ErrInvalidType)
			}
			return fmt.Errorf("%s: %w", operation, pagemodules.ErrInvalidParent)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, pagemodules.ErrNotFound)
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Content operations

func (r *Repository) ContentExists(ctx context.Context, contentID uuid.UUID) (bool, error) {
	table := pgx.Identifier(strings.Split(r.contentTable, ".")).Sanitize()
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)

	var exists bool
	if err := r.db.QueryRow(ctx, query, contentID).Scan(&exists); err != nil {
		return false, r.handlePostgresError("check content", err)
	}
	return exists, nil
}

// Module type operations

const moduleTypeColumns = `id, name, display_name, description, icon_class, schema,
		template_path, is_active, sort_order, created_at, updated_at`

func scanModuleType(row pgx.Row) (*pagemodules.ModuleType, error) {
	var mt pagemodules.ModuleType
	var schema []byte
	err := row.Scan(&mt.ID, &mt.Name, &mt.DisplayName, &mt.Description, &mt.IconClass, &schema,
		&mt.TemplatePath, &mt.IsActive, &mt.SortOrder, &mt.CreatedAt, &mt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(schema, &mt.Schema); err != nil {
		return nil, fmt.Errorf("decode schema of module type %s: %w", mt.ID, err)
	}
	return &mt, nil
}

func (r *Repository) ListModuleTypes(ctx context.Context, filter pagemodules.ModuleTypeFilter) ([]*pagemodules.ModuleType, error) {
	query := `SELECT ` + moduleTypeColumns + ` FROM module_types`
	var args []interface{}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		query += fmt.Sprintf(" WHERE is_active = $%d", len(args))
	}
	query += " ORDER BY sort_order, display_name"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list module types", err)
	}
	defer rows.Close()

	var result []*pagemodules.ModuleType
	for rows.Next() {
		mt, err := scanModuleType(rows)
		if err != nil {
			return nil, r.handlePostgresError("list module types", err)
		}
		result = append(result, mt)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list module types", err)
	}
	return result, nil
}

func (r *Repository) GetModuleType(ctx context.Context, id uuid.UUID) (*pagemodules.ModuleType, error) {
	query := `SELECT ` + moduleTypeColumns + ` FROM module_types WHERE id = $1`
	mt, err := scanModuleType(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get module type", err)
	}
	return mt, nil
}

// SaveModuleType creates or replaces a catalog entry. The engine never writes
// types; this serves seeding and the registry-management collaborator.
func (r *Repository) SaveModuleType(ctx context.Context, mt *pagemodules.ModuleType) error {
	schema, err := encodeJSON(mt.Schema, "{}")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	query := `
		INSERT INTO module_types (` + moduleTypeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, display_name = EXCLUDED.display_name,
			description = EXCLUDED.description, icon_class = EXCLUDED.icon_class,
			schema = EXCLUDED.schema, template_path = EXCLUDED.template_path,
			is_active = EXCLUDED.is_active, sort_order = EXCLUDED.sort_order,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		mt.ID, mt.Name, mt.DisplayName, mt.Description, mt.IconClass, schema,
		mt.TemplatePath, mt.IsActive, mt.SortOrder, mt.CreatedAt, mt.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("save module type", err)
	}
	return nil
}

// Module operations

const moduleColumns = `id, content_id, module_type_id, parent_id, module_order,
		css_classes, custom_attributes, is_active, created_at, updated_at`

func scanModule(row pgx.Row) (*pagemodules.PageModule, error) {
	var m pagemodules.PageModule
	var attrs []byte
	err := row.Scan(&m.ID, &m.ContentID, &m.ModuleTypeID, &m.ParentID, &m.Order,
		&m.CSSClasses, &attrs, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if m.CSSClasses == nil {
		m.CSSClasses = []string{}
	}
	if err := decodeJSON(attrs, &m.CustomAttributes); err != nil {
		return nil, fmt.Errorf("decode custom attributes of module %s: %w", m.ID, err)
	}
	if m.CustomAttributes == nil {
		m.CustomAttributes = map[string]interface{}{}
	}
	return &m, nil
}

func (r *Repository) ListModulesByContent(ctx context.Context, contentID uuid.UUID) ([]*pagemodules.PageModule, error) {
	query := `SELECT ` + moduleColumns + ` FROM page_modules
		WHERE content_id = $1
		ORDER BY module_order, created_at`

	rows, err := r.db.Query(ctx, query, contentID)
	if err != nil {
		return nil, r.handlePostgresError("list modules", err)
	}
	defer rows.Close()

	var result []*pagemodules.PageModule
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, r.handlePostgresError("list modules", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list modules", err)
	}
	return result, nil
}

func (r *Repository) GetModule(ctx context.Context, id uuid.UUID) (*pagemodules.PageModule, error) {
	query := `SELECT ` + moduleColumns + ` FROM page_modules WHERE id = $1`
	m, err := scanModule(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get module", err)
	}
	return m, nil
}

func (r *Repository) CreateModule(ctx context.Context, module *pagemodules.PageModule) error {
	attrs, err := encodeJSON(module.CustomAttributes, "{}")
	if err != nil {
		return fmt.Errorf("encode custom attributes: %w", err)
	}
	query := `
		INSERT INTO page_modules (` + moduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.Exec(ctx, query,
		module.ID, module.ContentID, module.ModuleTypeID, module.ParentID, module.Order,
		classes(module.CSSClasses), attrs, module.IsActive, module.CreatedAt, module.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create module", err)
	}
	return nil
}

func (r *Repository) UpdateModule(ctx context.Context, module *pagemodules.PageModule) error {
	attrs, err := encodeJSON(module.CustomAttributes, "{}")
	if err != nil {
		return fmt.Errorf("encode custom attributes: %w", err)
	}
	query := `
		UPDATE page_modules SET
			parent_id = $2, module_order = $3, css_classes = $4,
			custom_attributes = $5, is_active = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		module.ID, module.ParentID, module.Order, classes(module.CSSClasses),
		attrs, module.IsActive, module.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update module", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update module %s: %w", module.ID, pagemodules.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteModuleTree(ctx context.Context, id uuid.UUID) (int64, error) {
	// One statement, so the subtree and its data go atomically.
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM page_modules WHERE id = $1
			UNION ALL
			SELECT pm.id FROM page_modules pm JOIN subtree s ON pm.parent_id = s.id
		)
		DELETE FROM page_modules WHERE id IN (SELECT id FROM subtree)`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return 0, r.handlePostgresError("delete module", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("delete module %s: %w", id, pagemodules.ErrNotFound)
	}
	return tag.RowsAffected(), nil
}

// Module data operations

const moduleDataColumns = `id, page_module_id, data_key, data_value, created_at, updated_at`

func scanModuleData(row pgx.Row) (*pagemodules.ModuleData, error) {
	var d pagemodules.ModuleData
	var value []byte
	if err := row.Scan(&d.ID, &d.PageModuleID, &d.DataKey, &value, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(value, &d.DataValue); err != nil {
		return nil, fmt.Errorf("decode data %s of module %s: %w", d.DataKey, d.PageModuleID, err)
	}
	return &d, nil
}

func (r *Repository) ListModuleData(ctx context.Context, moduleIDs []uuid.UUID) ([]*pagemodules.ModuleData, error) {
	if len(moduleIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + moduleDataColumns + ` FROM module_data
		WHERE page_module_id = ANY($1)
		ORDER BY page_module_id, data_key`

	rows, err := r.db.Query(ctx, query, moduleIDs)
	if err != nil {
		return nil, r.handlePostgresError("list module data", err)
	}
	defer rows.Close()

	var result []*pagemodules.ModuleData
	for rows.Next() {
		d, err := scanModuleData(rows)
		if err != nil {
			return nil, r.handlePostgresError("list module data", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list module data", err)
	}
	return result, nil
}

func (r *Repository) UpsertModuleData(ctx context.Context, data *pagemodules.ModuleData) (*pagemodules.ModuleData, error) {
	value, err := encodeJSON(data.DataValue, "null")
	if err != nil {
		return nil, fmt.Errorf("encode data value: %w", err)
	}
	query := `
		INSERT INTO module_data (` + moduleDataColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (page_module_id, data_key) DO UPDATE SET
			data_value = EXCLUDED.data_value,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + moduleDataColumns

	stored, err := scanModuleData(r.db.QueryRow(ctx, query,
		data.ID, data.PageModuleID, data.DataKey, value, data.CreatedAt, data.UpdatedAt))
	if err != nil {
		return nil, r.handlePostgresError("upsert module data", err)
	}
	return stored, nil
}

// JSONB columns travel as encoded text so scalar values are never mistaken
// for raw JSON by the driver.
func encodeJSON(v interface{}, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(b []byte, v interface{}) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

func classes(c []string) []string {
	if c == nil {
		return []string{}
	}
	return c
}
